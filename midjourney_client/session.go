package midjourney_client

import (
	"context"
	"net/http"

	"github.com/bwmarrin/discordgo"
	"github.com/m-mizutani/goerr/v2"

	"midjourney_bot/entities"
)

type discordVerifier struct {
	httpClient *http.Client
}

// NewDiscordVerifier checks the session token against the Discord REST API
// and makes sure the configured channel lives in the configured server.
func NewDiscordVerifier(httpClient *http.Client) SessionVerifier {
	return &discordVerifier{httpClient: httpClient}
}

func (v *discordVerifier) Verify(ctx context.Context, prefs entities.Preferences) error {
	if err := ctx.Err(); err != nil {
		return goerr.Wrap(err, "session verification aborted")
	}

	session, err := discordgo.New(prefs.SessionToken)
	if err != nil {
		return goerr.Wrap(err, "failed to create Discord session")
	}

	if v.httpClient != nil {
		session.Client = v.httpClient
	}

	channel, err := session.Channel(prefs.ChannelID)
	if err != nil {
		return goerr.Wrap(err, "failed to verify Discord session", goerr.V("channel_id", prefs.ChannelID))
	}

	if channel.GuildID != prefs.ServerID {
		return goerr.New("channel does not belong to the configured server",
			goerr.V("channel_id", prefs.ChannelID),
			goerr.V("server_id", prefs.ServerID))
	}

	return nil
}
