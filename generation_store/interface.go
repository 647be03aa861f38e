package generation_store

import "midjourney_bot/entities"

type Store interface {
	Add(partial entities.Generation) entities.Generation
	Update(guid string, fields entities.GenerationUpdate) (entities.Generation, error)
	Remove(guid string) bool
	Get(guid string) (entities.Generation, error)
	List() []entities.Generation
	Subscribe(listener Listener) (unsubscribe func())
}

type EventKind string

const (
	EventAdded   EventKind = "added"
	EventUpdated EventKind = "updated"
	EventRemoved EventKind = "removed"
)

// Event describes one mutation. Generations is the full ordered snapshot
// taken right after it.
type Event struct {
	Kind        EventKind
	Generation  entities.Generation
	Generations []entities.Generation
}

// Listener is called synchronously after every mutation, in mutation order.
// It may read from the store but must not mutate it, and must not call
// Subscribe or an unsubscribe func either: both wait on the mutation that
// is delivering the event.
type Listener func(event Event)
