package preferences

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/m-mizutani/goerr/v2"

	"midjourney_bot/clock"
	"midjourney_bot/entities"
	"midjourney_bot/repositories"
)

const upsertPreferences string = `
INSERT OR REPLACE INTO preferences (profile, session_token, server_id, channel_id, updated_at) VALUES (?, ?, ?, ?, ?);
`

const getPreferencesByProfile string = `
SELECT session_token, server_id, channel_id FROM preferences WHERE profile = ?;
`

type sqliteRepo struct {
	dbConn *sql.DB
	clock  clock.Clock
}

type Config struct {
	DB    *sql.DB
	Clock clock.Clock
}

func NewRepository(cfg *Config) (Repository, error) {
	if cfg.DB == nil {
		return nil, errors.New("missing DB parameter")
	}

	if cfg.Clock == nil {
		cfg.Clock = clock.NewClock()
	}

	return &sqliteRepo{
		dbConn: cfg.DB,
		clock:  cfg.Clock,
	}, nil
}

func (repo *sqliteRepo) Upsert(ctx context.Context, profile string, prefs *entities.Preferences) (*entities.Preferences, error) {
	if profile == "" {
		profile = DefaultProfile
	}

	trimmed := prefs.Trimmed()

	_, err := repo.dbConn.ExecContext(ctx, upsertPreferences,
		profile, trimmed.SessionToken, trimmed.ServerID, trimmed.ChannelID, repo.clock.Now())
	if err != nil {
		return nil, goerr.Wrap(err, "failed to save preferences", goerr.V("profile", profile))
	}

	return &trimmed, nil
}

func (repo *sqliteRepo) GetByProfile(ctx context.Context, profile string) (*entities.Preferences, error) {
	if profile == "" {
		profile = DefaultProfile
	}

	var prefs entities.Preferences

	err := repo.dbConn.QueryRowContext(ctx, getPreferencesByProfile, profile).Scan(
		&prefs.SessionToken, &prefs.ServerID, &prefs.ChannelID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.NewNotFoundError(fmt.Sprintf("preferences for profile %s", profile))
		}

		return nil, goerr.Wrap(err, "failed to load preferences", goerr.V("profile", profile))
	}

	return &prefs, nil
}
