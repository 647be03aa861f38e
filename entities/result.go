package entities

const progressDone = "done"

// Result is the terminal payload returned by the imagine backend.
type Result struct {
	ID       string         `json:"id"`
	Hash     string         `json:"hash"`
	URI      string         `json:"uri"`
	Progress string         `json:"progress"`
	Content  string         `json:"content"`
	// Flags is nil when the backend did not report any.
	Flags    *int           `json:"flags,omitempty"`
	Options  []ActionOption `json:"options,omitempty"`
}

// Update converts r into the update that completes a generation.
func (r *Result) Update() GenerationUpdate {
	progress := r.Progress
	if progress == "" {
		progress = progressDone
	}

	status := StatusCompleted
	update := GenerationUpdate{
		Progress: &progress,
		Status:   &status,
	}

	// absent fields keep what the record already has
	if r.URI != "" {
		update.URI = &r.URI
	}

	if r.Flags != nil {
		flags := *r.Flags
		update.Flags = &flags
	}

	if r.ID != "" {
		update.ID = &r.ID
	}

	if r.Hash != "" {
		update.Hash = &r.Hash
	}

	if r.Content != "" {
		update.Content = &r.Content
	}

	if r.Options != nil {
		update.Options = make([]ActionOption, len(r.Options))
		copy(update.Options, r.Options)
	}

	return update
}
