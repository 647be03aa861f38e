package discord_bot

import "context"

type Bot interface {
	// Start connects to Discord and serves interactions until ctx is done.
	Start(ctx context.Context) error
}
