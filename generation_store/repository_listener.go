package generation_store

import (
	"context"

	"go.uber.org/zap"

	"midjourney_bot/repositories/generations"
)

// NewRepositoryListener mirrors every store mutation into repo so that the
// history survives restarts.
func NewRepositoryListener(ctx context.Context, repo generations.Repository, logger *zap.Logger) Listener {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(event Event) {
		gen := event.Generation

		var err error

		switch event.Kind {
		case EventAdded, EventUpdated:
			_, err = repo.Upsert(ctx, &gen)
		case EventRemoved:
			err = repo.Delete(ctx, gen.GUID)
		}

		if err != nil {
			logger.Error("failed to persist generation",
				zap.String("guid", gen.GUID),
				zap.String("event", string(event.Kind)),
				zap.Error(err))
		}
	}
}
