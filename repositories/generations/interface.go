package generations

import (
	"context"

	"midjourney_bot/entities"
)

type Repository interface {
	Upsert(ctx context.Context, generation *entities.Generation) (*entities.Generation, error)
	GetByGUID(ctx context.Context, guid string) (*entities.Generation, error)
	GetByMessageID(ctx context.Context, messageID string) (*entities.Generation, error)
	List(ctx context.Context, limit int) ([]*entities.Generation, error)
	Delete(ctx context.Context, guid string) error
}
