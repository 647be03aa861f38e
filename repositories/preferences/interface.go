package preferences

import (
	"context"

	"midjourney_bot/entities"
)

const DefaultProfile = "default"

type Repository interface {
	Upsert(ctx context.Context, profile string, prefs *entities.Preferences) (*entities.Preferences, error)
	GetByProfile(ctx context.Context, profile string) (*entities.Preferences, error)
}
