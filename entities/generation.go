package entities

import "time"

type GenerationType string

const (
	GenerationTypeImage   GenerationType = "image"
	GenerationTypeUpscale GenerationType = "upscale"
)

type Command string

const (
	CommandImagine   Command = "imagine"
	CommandVariation Command = "variation"
	CommandVary      Command = "vary"
	CommandUpscale   Command = "upscale"
	CommandZoomOut   Command = "zoomout"
)

type GenerationStatus string

const (
	StatusCreated   GenerationStatus = "created"
	StatusCompleted GenerationStatus = "completed"
	StatusFailed    GenerationStatus = "failed"
)

// IsTerminal reports whether no further status transition is allowed.
func (s GenerationStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

const ProgressFailed = "Failed"

// Labels of the backend options that derived operations look up.
const (
	OptionVaryStrong = "Vary (Strong)"
	OptionVarySubtle = "Vary (Subtle)"
	OptionCustomZoom = "Custom Zoom"
)

// ActionOption is a follow-up action offered by the backend alongside a
// delivered result, e.g. "Vary (Strong)" or "Custom Zoom".
type ActionOption struct {
	Label    string `json:"label"`
	CustomID string `json:"custom_id"`
}

type Generation struct {
	GUID          string           `json:"guid"`
	ParentGUID    string           `json:"parent_guid,omitempty"`
	ID            string           `json:"id,omitempty"`
	Hash          string           `json:"hash,omitempty"`
	Prompt        string           `json:"prompt"`
	Content       string           `json:"content,omitempty"`
	Type          GenerationType   `json:"type"`
	Command       Command          `json:"command"`
	Flags         int              `json:"flags"`
	URI           string           `json:"uri,omitempty"`
	Progress      string           `json:"progress,omitempty"`
	Status        GenerationStatus `json:"status"`
	Error         string           `json:"error,omitempty"`
	ErrorCategory string           `json:"error_category,omitempty"`
	Options       []ActionOption   `json:"options,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// Clone returns a copy that shares no mutable state with g.
func (g Generation) Clone() Generation {
	if g.Options != nil {
		options := make([]ActionOption, len(g.Options))
		copy(options, g.Options)
		g.Options = options
	}

	return g
}

// HasBackendIdentity reports whether derived operations can address g.
func (g Generation) HasBackendIdentity() bool {
	return g.ID != "" && g.Hash != ""
}

// FindOption looks up a backend action by its label.
func (g Generation) FindOption(label string) (ActionOption, bool) {
	for _, option := range g.Options {
		if option.Label == label {
			return option, true
		}
	}

	return ActionOption{}, false
}

// GenerationUpdate carries a partial set of fields. Nil fields are left untouched.
type GenerationUpdate struct {
	ID            *string
	Hash          *string
	Content       *string
	Flags         *int
	URI           *string
	Progress      *string
	Status        *GenerationStatus
	Error         *string
	ErrorCategory *string
	Options       []ActionOption
}

// ProgressUpdate is the update applied on every progress tick.
func ProgressUpdate(uri, progress string) GenerationUpdate {
	return GenerationUpdate{
		URI:      &uri,
		Progress: &progress,
	}
}

// FailedUpdate marks a generation as failed with a classified message.
func FailedUpdate(category, message string) GenerationUpdate {
	progress := ProgressFailed
	status := StatusFailed

	return GenerationUpdate{
		Progress:      &progress,
		Status:        &status,
		Error:         &message,
		ErrorCategory: &category,
	}
}
