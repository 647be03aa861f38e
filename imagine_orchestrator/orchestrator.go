package imagine_orchestrator

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"midjourney_bot/entities"
	"midjourney_bot/error_classifier"
	"midjourney_bot/generation_store"
	"midjourney_bot/midjourney_client"
	"midjourney_bot/preference_validator"
)

const (
	minTarget = 1
	maxTarget = 4

	minZoomStrength = 1.0
	maxZoomStrength = 2.0
)

var (
	ErrMissingParentIdentity = errors.New("generation has no message id or hash yet")
	ErrInvalidTarget         = errors.New("target must be between 1 and 4")
	ErrInvalidZoomStrength   = errors.New("zoom strength must be between 1 and 2")
	ErrMissingOption         = errors.New("missing custom option id")
)

type orchestratorImpl struct {
	store      generation_store.Store
	classifier error_classifier.Classifier
	logger     *zap.Logger

	mu     sync.RWMutex
	client midjourney_client.Client
	prefs  entities.Preferences
}

type Config struct {
	Store       generation_store.Store
	Classifier  error_classifier.Classifier
	Client      midjourney_client.Client
	Preferences entities.Preferences
	Logger      *zap.Logger
}

func New(cfg Config) (Orchestrator, error) {
	if cfg.Store == nil {
		return nil, errors.New("missing generation store")
	}

	if cfg.Classifier == nil {
		return nil, errors.New("missing error classifier")
	}

	if cfg.Client == nil {
		return nil, errors.New("missing midjourney client")
	}

	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &orchestratorImpl{
		store:      cfg.Store,
		classifier: cfg.Classifier,
		logger:     cfg.Logger,
		client:     cfg.Client,
		prefs:      cfg.Preferences.Trimmed(),
	}, nil
}

// Reconfigure swaps the preferences and the client built from them.
// Operations already in flight keep the client they started with.
func (o *orchestratorImpl) Reconfigure(prefs entities.Preferences, client midjourney_client.Client) error {
	if client == nil {
		return errors.New("missing midjourney client")
	}

	prefs = prefs.Trimmed()

	result := preference_validator.Validate(prefs)
	if !result.Valid {
		return error_classifier.NewConfigurationError(result.Errors)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	o.prefs = prefs
	o.client = client

	o.logger.Info("orchestrator reconfigured",
		zap.String("server_id", prefs.ServerID),
		zap.String("channel_id", prefs.ChannelID))

	return nil
}

func (o *orchestratorImpl) current() (midjourney_client.Client, entities.Preferences) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	return o.client, o.prefs
}

func (o *orchestratorImpl) CreateGeneration(ctx context.Context, prompt string, onCreated OnCreated) (*entities.Generation, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, error_classifier.NewValidationError("Prompt cannot be empty")
	}

	client, prefs := o.current()

	validation := preference_validator.Validate(prefs)
	if !validation.Valid {
		o.logger.Warn("preferences rejected", zap.Strings("errors", validation.Errors))

		return nil, error_classifier.NewConfigurationError(validation.Errors)
	}

	gen := o.store.Add(entities.Generation{
		Prompt:  prompt,
		Type:    entities.GenerationTypeImage,
		Command: entities.CommandImagine,
	})

	notifyCreated(onCreated, gen)

	err := client.Init(ctx)
	if err != nil {
		return o.fail(gen.GUID, error_classifier.Wrap(o.classifier, err))
	}

	result, err := client.Imagine(ctx, prompt, o.progressHandler(gen.GUID))

	return o.finish(gen.GUID, result, err)
}

func (o *orchestratorImpl) CreateVariation(ctx context.Context, gen entities.Generation, target int, onCreated OnCreated) (*entities.Generation, error) {
	if err := checkParent(gen); err != nil {
		return nil, err
	}

	if err := checkTarget(target); err != nil {
		return nil, err
	}

	client, _ := o.current()

	child := o.addDerived(gen, entities.GenerationTypeImage, entities.CommandVariation, onCreated)

	result, err := client.Variation(ctx, &midjourney_client.ActionRequest{
		Index:   target,
		MsgID:   gen.ID,
		Hash:    gen.Hash,
		Flags:   gen.Flags,
		Content: gen.Content,
		Loading: o.progressHandler(child.GUID),
	})

	return o.finish(child.GUID, result, err)
}

func (o *orchestratorImpl) CreateUpscale(ctx context.Context, gen entities.Generation, target int, onCreated OnCreated) (*entities.Generation, error) {
	if err := checkParent(gen); err != nil {
		return nil, err
	}

	if err := checkTarget(target); err != nil {
		return nil, err
	}

	client, _ := o.current()

	child := o.addDerived(gen, entities.GenerationTypeUpscale, entities.CommandUpscale, onCreated)

	err := client.Init(ctx)
	if err != nil {
		return o.fail(child.GUID, error_classifier.Wrap(o.classifier, err))
	}

	result, err := client.Upscale(ctx, &midjourney_client.ActionRequest{
		Index:   target,
		MsgID:   gen.ID,
		Hash:    gen.Hash,
		Flags:   gen.Flags,
		Content: gen.Content,
		Loading: o.progressHandler(child.GUID),
	})

	return o.finish(child.GUID, result, err)
}

func (o *orchestratorImpl) CreateVary(ctx context.Context, gen entities.Generation, options VaryOptions, onCreated OnCreated) (*entities.Generation, error) {
	if err := checkParent(gen); err != nil {
		return nil, err
	}

	if options.Custom == "" {
		return nil, ErrMissingOption
	}

	client, _ := o.current()

	child := o.addDerived(gen, entities.GenerationTypeImage, entities.CommandVary, onCreated)

	result, err := client.Custom(ctx, &midjourney_client.CustomRequest{
		MsgID:    gen.ID,
		Flags:    gen.Flags,
		Content:  gen.Prompt,
		CustomID: options.Custom,
		Loading:  o.progressHandler(child.GUID),
	})

	return o.finish(child.GUID, result, err)
}

func (o *orchestratorImpl) CreateZoomOut(ctx context.Context, gen entities.Generation, zoomStrength float64, options ZoomOptions, onCreated OnCreated) (*entities.Generation, error) {
	if err := checkParent(gen); err != nil {
		return nil, err
	}

	if zoomStrength < minZoomStrength || zoomStrength > maxZoomStrength {
		return nil, ErrInvalidZoomStrength
	}

	if options.Custom == "" {
		return nil, ErrMissingOption
	}

	client, _ := o.current()

	child := o.addDerived(gen, entities.GenerationTypeImage, entities.CommandZoomOut, onCreated)

	result, err := client.Custom(ctx, &midjourney_client.CustomRequest{
		MsgID:    gen.ID,
		Flags:    gen.Flags,
		Content:  ZoomContent(gen.Prompt, zoomStrength),
		CustomID: options.Custom,
		Loading:  o.progressHandler(child.GUID),
	})

	return o.finish(child.GUID, result, err)
}

// ZoomContent appends the zoom parameter to prompt, e.g. "a cat --zoom 1.5".
func ZoomContent(prompt string, zoomStrength float64) string {
	return prompt + " --zoom " + strconv.FormatFloat(zoomStrength, 'f', -1, 64)
}

func checkParent(gen entities.Generation) error {
	if !gen.HasBackendIdentity() {
		return ErrMissingParentIdentity
	}

	return nil
}

func checkTarget(target int) error {
	if target < minTarget || target > maxTarget {
		return ErrInvalidTarget
	}

	return nil
}

// addDerived copies the parent's request parameters into a new record.
// The parent itself is not referenced afterwards.
func (o *orchestratorImpl) addDerived(parent entities.Generation, genType entities.GenerationType,
	command entities.Command, onCreated OnCreated,
) entities.Generation {
	child := o.store.Add(entities.Generation{
		ParentGUID: parent.GUID,
		Prompt:     parent.Prompt,
		Content:    parent.Content,
		Flags:      parent.Flags,
		Type:       genType,
		Command:    command,
	})

	o.logger.Debug("derived generation created",
		zap.String("guid", child.GUID),
		zap.String("parent_guid", parent.GUID),
		zap.String("command", string(command)))

	notifyCreated(onCreated, child)

	return child
}

func notifyCreated(onCreated OnCreated, gen entities.Generation) {
	if onCreated != nil {
		onCreated(gen.Clone())
	}
}

func (o *orchestratorImpl) progressHandler(guid string) midjourney_client.ProgressFunc {
	return func(uri, progress string) {
		_, err := o.store.Update(guid, entities.ProgressUpdate(uri, progress))
		if err != nil {
			o.logger.Debug("dropping progress for missing generation", zap.String("guid", guid))
		}
	}
}

func (o *orchestratorImpl) finish(guid string, result *entities.Result, err error) (*entities.Generation, error) {
	if err != nil {
		return o.fail(guid, error_classifier.Wrap(o.classifier, err))
	}

	if result == nil {
		return o.fail(guid, error_classifier.NewEmptyResponseError())
	}

	updated, err := o.store.Update(guid, result.Update())
	if err != nil {
		o.logger.Warn("generation removed before completion", zap.String("guid", guid))

		return nil, nil
	}

	o.logger.Info("generation completed",
		zap.String("guid", guid),
		zap.String("command", string(updated.Command)),
		zap.String("message_id", updated.ID))

	return &updated, nil
}

func (o *orchestratorImpl) fail(guid string, genErr *error_classifier.GenerationError) (*entities.Generation, error) {
	o.logger.Error("generation failed",
		zap.String("guid", guid),
		zap.String("category", string(genErr.Category)),
		zap.Error(genErr.Err))

	updated, err := o.store.Update(guid, entities.FailedUpdate(string(genErr.Category), genErr.Message))
	if err != nil {
		return nil, genErr
	}

	return &updated, genErr
}
