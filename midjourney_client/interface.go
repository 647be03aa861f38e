package midjourney_client

import (
	"context"

	"midjourney_bot/entities"
)

// ProgressFunc receives the latest preview location and status text. It is
// called sequentially, in the order the backend reports progress.
type ProgressFunc func(uri, progress string)

type ActionRequest struct {
	Index   int
	MsgID   string
	Hash    string
	Flags   int
	Content string
	Loading ProgressFunc
}

type CustomRequest struct {
	MsgID    string
	Flags    int
	Content  string
	CustomID string
	Loading  ProgressFunc
}

// Client is the imagine backend. A nil result with a nil error means the
// backend finished without delivering anything.
type Client interface {
	Init(ctx context.Context) error
	Imagine(ctx context.Context, prompt string, onProgress ProgressFunc) (*entities.Result, error)
	Variation(ctx context.Context, req *ActionRequest) (*entities.Result, error)
	Upscale(ctx context.Context, req *ActionRequest) (*entities.Result, error)
	Custom(ctx context.Context, req *CustomRequest) (*entities.Result, error)
}

type SessionVerifier interface {
	Verify(ctx context.Context, prefs entities.Preferences) error
}
