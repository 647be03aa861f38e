package commands

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"

	"midjourney_bot/entities"
	"midjourney_bot/generation_store"
)

var (
	headerColor  = color.New(color.FgCyan, color.Bold)
	successColor = color.New(color.FgGreen)
	failColor    = color.New(color.FgRed)
	pendingColor = color.New(color.FgYellow)
	dimColor     = color.New(color.FgHiBlack)
)

func statusColor(status entities.GenerationStatus) *color.Color {
	switch status {
	case entities.StatusCompleted:
		return successColor
	case entities.StatusFailed:
		return failColor
	}

	return pendingColor
}

func printGeneration(w io.Writer, gen entities.Generation) {
	headerColor.Fprintf(w, "%s", gen.GUID)
	fmt.Fprintf(w, "  %s/%s  ", gen.Command, gen.Type)
	statusColor(gen.Status).Fprintf(w, "%s", gen.Status)

	if gen.Progress != "" {
		dimColor.Fprintf(w, " (%s)", gen.Progress)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "  prompt: %s\n", gen.Prompt)

	if gen.ParentGUID != "" {
		fmt.Fprintf(w, "  parent: %s\n", gen.ParentGUID)
	}

	if gen.URI != "" {
		fmt.Fprintf(w, "  uri:    %s\n", gen.URI)
	}

	if gen.HasBackendIdentity() {
		dimColor.Fprintf(w, "  message %s, hash %s, flags %d\n", gen.ID, gen.Hash, gen.Flags)
	}

	for _, option := range gen.Options {
		dimColor.Fprintf(w, "  option: %s\n", option.Label)
	}

	if gen.Error != "" {
		failColor.Fprintf(w, "  error:  %s\n", gen.Error)
	}
}

// progressPrinter reports progress ticks of the generations created in this run.
type progressPrinter struct {
	w io.Writer

	mu      sync.Mutex
	tracked map[string]bool
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	return &progressPrinter{w: w, tracked: make(map[string]bool)}
}

func (p *progressPrinter) onCreated(gen entities.Generation) {
	p.mu.Lock()
	p.tracked[gen.GUID] = true
	p.mu.Unlock()

	pendingColor.Fprintf(p.w, "Created %s (%s)\n", gen.GUID, gen.Command)
}

func (p *progressPrinter) listener(event generation_store.Event) {
	if event.Kind != generation_store.EventUpdated || event.Generation.Status.IsTerminal() {
		return
	}

	p.mu.Lock()
	tracked := p.tracked[event.Generation.GUID]
	p.mu.Unlock()

	if !tracked {
		return
	}

	dimColor.Fprintf(p.w, "  %s %s\n", event.Generation.Progress, event.Generation.URI)
}
