package generation_store

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"midjourney_bot/clock"
	"midjourney_bot/entities"
	"midjourney_bot/repositories"
)

type storeImpl struct {
	// writeMu serializes mutations together with their notifications so that
	// listeners observe events in mutation order.
	writeMu sync.Mutex
	mu      sync.RWMutex

	generations []entities.Generation
	index       map[string]int

	listeners      map[int]Listener
	nextListenerID int

	clock  clock.Clock
	logger *zap.Logger
}

type Config struct {
	// History seeds the store with previously persisted generations, in order.
	History []entities.Generation
	Clock   clock.Clock
	Logger  *zap.Logger
}

func New(cfg Config) Store {
	if cfg.Clock == nil {
		cfg.Clock = clock.NewClock()
	}

	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	store := &storeImpl{
		generations: make([]entities.Generation, 0, len(cfg.History)),
		index:       make(map[string]int, len(cfg.History)),
		listeners:   make(map[int]Listener),
		clock:       cfg.Clock,
		logger:      cfg.Logger,
	}

	for _, gen := range cfg.History {
		if gen.GUID == "" {
			continue
		}

		if _, exists := store.index[gen.GUID]; exists {
			continue
		}

		seeded := gen.Clone()
		if !seeded.Status.IsTerminal() {
			markInterrupted(&seeded)
		}

		store.index[gen.GUID] = len(store.generations)
		store.generations = append(store.generations, seeded)
	}

	return store
}

// Seeded records that never reached a terminal status belong to a process
// that is gone; nothing will ever finish them.
const (
	InterruptedCategory = "InterruptedError"
	InterruptedMessage  = "Interrupted before completion"
)

func markInterrupted(gen *entities.Generation) {
	gen.Status = entities.StatusFailed
	gen.Progress = entities.ProgressFailed
	gen.Error = InterruptedMessage
	gen.ErrorCategory = InterruptedCategory
}

func (s *storeImpl) Add(partial entities.Generation) entities.Generation {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	gen := partial.Clone()
	gen.GUID = uuid.NewString()

	if gen.Type == "" {
		gen.Type = entities.GenerationTypeImage
	}

	if gen.Command == "" {
		gen.Command = entities.CommandImagine
	}

	if gen.Status == "" {
		gen.Status = entities.StatusCreated
	}

	now := s.clock.Now()
	gen.CreatedAt = now
	gen.UpdatedAt = now

	s.mu.Lock()
	s.index[gen.GUID] = len(s.generations)
	s.generations = append(s.generations, gen)
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.Debug("generation added",
		zap.String("guid", gen.GUID),
		zap.String("command", string(gen.Command)))

	s.notify(Event{Kind: EventAdded, Generation: gen.Clone(), Generations: snapshot})

	return gen.Clone()
}

func (s *storeImpl) Update(guid string, fields entities.GenerationUpdate) (entities.Generation, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	idx, ok := s.index[guid]
	if !ok {
		s.mu.Unlock()

		return entities.Generation{}, notFound(guid)
	}

	gen := applyUpdate(s.generations[idx], fields)
	gen.UpdatedAt = s.clock.Now()
	s.generations[idx] = gen
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(Event{Kind: EventUpdated, Generation: gen.Clone(), Generations: snapshot})

	return gen.Clone(), nil
}

func (s *storeImpl) Remove(guid string) bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	idx, ok := s.index[guid]
	if !ok {
		s.mu.Unlock()

		return false
	}

	removed := s.generations[idx]

	generations := make([]entities.Generation, 0, len(s.generations)-1)
	generations = append(generations, s.generations[:idx]...)
	generations = append(generations, s.generations[idx+1:]...)
	s.generations = generations

	delete(s.index, guid)
	for i := idx; i < len(s.generations); i++ {
		s.index[s.generations[i].GUID] = i
	}

	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(Event{Kind: EventRemoved, Generation: removed.Clone(), Generations: snapshot})

	return true
}

func (s *storeImpl) Get(guid string) (entities.Generation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.index[guid]
	if !ok {
		return entities.Generation{}, notFound(guid)
	}

	return s.generations[idx].Clone(), nil
}

func (s *storeImpl) List() []entities.Generation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.snapshotLocked()
}

func (s *storeImpl) Subscribe(listener Listener) func() {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	id := s.nextListenerID
	s.nextListenerID++
	s.listeners[id] = listener

	return func() {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()

		delete(s.listeners, id)
	}
}

func (s *storeImpl) snapshotLocked() []entities.Generation {
	snapshot := make([]entities.Generation, len(s.generations))
	for i, gen := range s.generations {
		snapshot[i] = gen.Clone()
	}

	return snapshot
}

// notify must be called with writeMu held.
func (s *storeImpl) notify(event Event) {
	for _, listener := range s.listeners {
		listener(event)
	}
}

func applyUpdate(gen entities.Generation, fields entities.GenerationUpdate) entities.Generation {
	// id and hash are frozen once the backend assigned them
	if fields.ID != nil && gen.ID == "" {
		gen.ID = *fields.ID
	}

	if fields.Hash != nil && gen.Hash == "" {
		gen.Hash = *fields.Hash
	}

	if fields.Content != nil {
		gen.Content = *fields.Content
	}

	if fields.Flags != nil {
		gen.Flags = *fields.Flags
	}

	if fields.URI != nil {
		gen.URI = *fields.URI
	}

	if fields.Progress != nil {
		gen.Progress = *fields.Progress
	}

	if fields.Status != nil && !gen.Status.IsTerminal() {
		gen.Status = *fields.Status
	}

	if fields.Error != nil {
		gen.Error = *fields.Error
	}

	if fields.ErrorCategory != nil {
		gen.ErrorCategory = *fields.ErrorCategory
	}

	if fields.Options != nil {
		gen.Options = make([]entities.ActionOption, len(fields.Options))
		copy(gen.Options, fields.Options)
	}

	return gen
}

func notFound(guid string) error {
	return repositories.NewNotFoundError(fmt.Sprintf("generation %s", guid))
}
