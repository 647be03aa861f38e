package commands

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/m-mizutani/goerr/v2"
	"go.uber.org/zap"

	"midjourney_bot/config"
	"midjourney_bot/databases/sqlite"
	"midjourney_bot/entities"
	"midjourney_bot/error_classifier"
	"midjourney_bot/generation_store"
	"midjourney_bot/imagine_orchestrator"
	"midjourney_bot/logging"
	"midjourney_bot/midjourney_client"
	"midjourney_bot/repositories"
	"midjourney_bot/repositories/generations"
	"midjourney_bot/repositories/preferences"
)

// historyLimit bounds how many records are loaded into memory at startup.
// Older records stay reachable through the repository.
var historyLimit = 500

// app holds everything a command needs, wired from one config.
type app struct {
	cfg             *config.Config
	logger          *zap.Logger
	db              *sql.DB
	generationRepo  generations.Repository
	preferencesRepo preferences.Repository
	store           generation_store.Store
	orchestrator    imagine_orchestrator.Orchestrator
	prefs           entities.Preferences
}

func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Log.Level,
		File:        cfg.Log.File,
		Development: cfg.Log.Development,
	})
	if err != nil {
		return nil, err
	}

	db, err := sqlite.New(ctx, cfg.Database.Path, logger)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, db: db}

	err = a.wire(ctx)
	if err != nil {
		a.close()

		return nil, err
	}

	return a, nil
}

func (a *app) wire(ctx context.Context) error {
	generationRepo, err := generations.NewRepository(&generations.Config{DB: a.db})
	if err != nil {
		return err
	}

	preferencesRepo, err := preferences.NewRepository(&preferences.Config{DB: a.db})
	if err != nil {
		return err
	}

	history, err := generationRepo.List(ctx, historyLimit)
	if err != nil {
		return err
	}

	seed := make([]entities.Generation, 0, len(history))
	for _, gen := range history {
		seed = append(seed, *gen)
	}

	store := generation_store.New(generation_store.Config{
		History: seed,
		Logger:  a.logger,
	})
	store.Subscribe(generation_store.NewRepositoryListener(ctx, generationRepo, a.logger))

	err = persistInterrupted(ctx, generationRepo, store, history)
	if err != nil {
		return err
	}

	prefs, err := resolvePreferences(ctx, a.cfg.Preferences, preferencesRepo)
	if err != nil {
		return err
	}

	client, err := newClient(a.cfg, prefs, a.logger)
	if err != nil {
		return err
	}

	orchestrator, err := imagine_orchestrator.New(imagine_orchestrator.Config{
		Store:       store,
		Classifier:  error_classifier.New(),
		Client:      client,
		Preferences: prefs,
		Logger:      a.logger,
	})
	if err != nil {
		return err
	}

	a.generationRepo = generationRepo
	a.preferencesRepo = preferencesRepo
	a.store = store
	a.orchestrator = orchestrator
	a.prefs = prefs

	return nil
}

func newClient(cfg *config.Config, prefs entities.Preferences, logger *zap.Logger) (midjourney_client.Client, error) {
	return midjourney_client.New(midjourney_client.Config{
		Host:         cfg.Bridge.Host,
		Preferences:  prefs,
		PollInterval: cfg.Bridge.PollInterval,
		HTTPClient:   &http.Client{Timeout: cfg.Bridge.Timeout},
		Logger:       logger,
	})
}

// resolvePreferences falls back to the stored default profile when the
// config carries no preferences at all.
func resolvePreferences(ctx context.Context, configured entities.Preferences,
	repo preferences.Repository,
) (entities.Preferences, error) {
	if !configured.IsEmpty() {
		return configured, nil
	}

	stored, err := repo.GetByProfile(ctx, preferences.DefaultProfile)
	if err != nil {
		if repositories.IsNotFound(err) {
			return configured, nil
		}

		return entities.Preferences{}, goerr.Wrap(err, "failed to load stored preferences")
	}

	return *stored, nil
}

func (a *app) close() {
	if a.db != nil {
		err := a.db.Close()
		if err != nil {
			a.logger.Warn("failed to close database", zap.Error(err))
		}
	}

	_ = a.logger.Sync()
}

// persistInterrupted writes back the records the store failed on load.
func persistInterrupted(ctx context.Context, repo generations.Repository,
	store generation_store.Store, history []*entities.Generation,
) error {
	for _, gen := range history {
		if gen.Status.IsTerminal() {
			continue
		}

		failed, err := store.Get(gen.GUID)
		if err != nil {
			continue
		}

		_, err = repo.Upsert(ctx, &failed)
		if err != nil {
			return err
		}
	}

	return nil
}

// findGeneration looks in memory first, then in the repository for records
// older than the loaded history.
func (a *app) findGeneration(ctx context.Context, guid string) (entities.Generation, error) {
	gen, err := a.store.Get(guid)
	if err == nil {
		return gen, nil
	}

	stored, err := a.generationRepo.GetByGUID(ctx, guid)
	if err != nil {
		if repositories.IsNotFound(err) {
			return entities.Generation{}, goerr.New("unknown generation", goerr.V("guid", guid))
		}

		return entities.Generation{}, err
	}

	return *stored, nil
}

// removeGeneration drops a record from memory, or straight from the
// repository when it was never loaded.
func (a *app) removeGeneration(ctx context.Context, guid string) error {
	if a.store.Remove(guid) {
		return nil
	}

	_, err := a.findGeneration(ctx, guid)
	if err != nil {
		return err
	}

	return a.generationRepo.Delete(ctx, guid)
}
