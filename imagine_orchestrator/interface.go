package imagine_orchestrator

import (
	"context"

	"midjourney_bot/entities"
	"midjourney_bot/midjourney_client"
)

// OnCreated is invoked with the placeholder record before the backend is
// contacted, so callers can start tracking it right away.
type OnCreated func(gen entities.Generation)

type VaryOptions struct {
	// Custom is the backend action id, e.g. the "Vary (Strong)" option.
	Custom string
}

type ZoomOptions struct {
	Custom string
}

type Orchestrator interface {
	CreateGeneration(ctx context.Context, prompt string, onCreated OnCreated) (*entities.Generation, error)
	CreateVariation(ctx context.Context, gen entities.Generation, target int, onCreated OnCreated) (*entities.Generation, error)
	CreateUpscale(ctx context.Context, gen entities.Generation, target int, onCreated OnCreated) (*entities.Generation, error)
	CreateVary(ctx context.Context, gen entities.Generation, options VaryOptions, onCreated OnCreated) (*entities.Generation, error)
	CreateZoomOut(ctx context.Context, gen entities.Generation, zoomStrength float64, options ZoomOptions, onCreated OnCreated) (*entities.Generation, error)
	Reconfigure(prefs entities.Preferences, client midjourney_client.Client) error
}
