package discord_bot

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/m-mizutani/goerr/v2"
	"go.uber.org/zap"

	"midjourney_bot/entities"
	"midjourney_bot/generation_store"
	"midjourney_bot/imagine_orchestrator"
)

type trackedInteraction struct {
	interaction *discordgo.Interaction
	userID      string
}

type botImpl struct {
	botSession         *discordgo.Session
	guildID            string
	orchestrator       imagine_orchestrator.Orchestrator
	store              generation_store.Store
	logger             *zap.Logger
	registeredCommands []*discordgo.ApplicationCommand

	mu      sync.Mutex
	tracked map[string]trackedInteraction

	// pending holds the latest unrendered state per guid, in arrival order.
	pendingMu    sync.Mutex
	pending      map[string]entities.Generation
	pendingOrder []string
	renderWake   chan struct{}
}

type Config struct {
	BotToken     string
	GuildID      string
	Orchestrator imagine_orchestrator.Orchestrator
	Store        generation_store.Store
	Logger       *zap.Logger
}

func New(cfg Config) (Bot, error) {
	if cfg.BotToken == "" {
		return nil, errors.New("missing bot token")
	}

	if cfg.GuildID == "" {
		return nil, errors.New("missing guild ID")
	}

	if cfg.Orchestrator == nil {
		return nil, errors.New("missing imagine orchestrator")
	}

	if cfg.Store == nil {
		return nil, errors.New("missing generation store")
	}

	botSession, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create bot session")
	}

	return newBot(botSession, cfg), nil
}

func newBot(botSession *discordgo.Session, cfg Config) *botImpl {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &botImpl{
		botSession:         botSession,
		guildID:            cfg.GuildID,
		orchestrator:       cfg.Orchestrator,
		store:              cfg.Store,
		logger:             cfg.Logger,
		registeredCommands: make([]*discordgo.ApplicationCommand, 0),
		tracked:            make(map[string]trackedInteraction),
		pending:            make(map[string]entities.Generation),
		renderWake:         make(chan struct{}, 1),
	}
}

func (b *botImpl) Start(ctx context.Context) error {
	b.botSession.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		b.logger.Info("logged in", zap.String("user", s.State.User.Username))
	})

	b.botSession.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		b.handleInteraction(ctx, s, i)
	})

	err := b.botSession.Open()
	if err != nil {
		return goerr.Wrap(err, "failed to open bot session")
	}

	err = b.addImagineCommand()
	if err != nil {
		_ = b.botSession.Close()

		return err
	}

	unsubscribe := b.store.Subscribe(b.onStoreEvent)

	b.logger.Info("bot started, press Ctrl+C to exit")

	b.renderLoop(ctx)

	unsubscribe()

	return b.teardown()
}

func (b *botImpl) teardown() error {
	for _, cmd := range b.registeredCommands {
		err := b.botSession.ApplicationCommandDelete(b.botSession.State.User.ID, b.guildID, cmd.ID)
		if err != nil {
			b.logger.Warn("failed to delete command", zap.String("command", cmd.Name), zap.Error(err))
		}
	}

	return b.botSession.Close()
}

func (b *botImpl) addImagineCommand() error {
	b.logger.Info("adding command 'imagine'")

	cmd, err := b.botSession.ApplicationCommandCreate(b.botSession.State.User.ID, b.guildID, &discordgo.ApplicationCommand{
		Name:        "imagine",
		Description: "Ask the bot to imagine something",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "prompt",
				Description: "The text prompt to imagine",
				Required:    true,
			},
		},
	})
	if err != nil {
		return goerr.Wrap(err, "failed to create 'imagine' command")
	}

	b.registeredCommands = append(b.registeredCommands, cmd)

	return nil
}

func (b *botImpl) handleInteraction(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		switch i.ApplicationCommandData().Name {
		case "imagine":
			b.processImagineCommand(ctx, s, i)
		default:
			b.logger.Warn("unknown command", zap.String("command", i.ApplicationCommandData().Name))
		}
	case discordgo.InteractionMessageComponent:
		action, err := parseComponentID(i.MessageComponentData().CustomID)
		if err != nil {
			b.logger.Warn("unknown message component", zap.String("custom_id", i.MessageComponentData().CustomID))

			return
		}

		b.processComponent(ctx, s, i, action)
	}
}

func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}

	if i.User != nil {
		return i.User.ID
	}

	return ""
}

func (b *botImpl) processImagineCommand(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	prompt := ""

	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "prompt" {
			prompt = opt.StringValue()
		}
	}

	userID := interactionUserID(i)

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: fmt.Sprintf("<@%s> asked me to imagine \"%s\". I'm dreaming something up for you.", userID, prompt),
		},
	})
	if err != nil {
		b.logger.Error("failed to respond to interaction", zap.Error(err))

		return
	}

	go func() {
		gen, err := b.orchestrator.CreateGeneration(ctx, prompt, b.trackCallback(i.Interaction, userID))
		b.reportResult(s, i.Interaction, gen, err)
	}()
}

func (b *botImpl) processComponent(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate,
	action componentAction,
) {
	userID := interactionUserID(i)

	parent, err := b.store.Get(action.GUID)
	if err != nil {
		b.respond(s, i.Interaction, "I can't find that image anymore.")

		return
	}

	b.respond(s, i.Interaction, fmt.Sprintf("<@%s> I'm working on that for you...", userID))

	go func() {
		gen, err := b.dispatch(ctx, action, parent, b.trackCallback(i.Interaction, userID))
		b.reportResult(s, i.Interaction, gen, err)
	}()
}

// dispatch runs the orchestrator operation a button stands for.
func (b *botImpl) dispatch(ctx context.Context, action componentAction, parent entities.Generation,
	onCreated imagine_orchestrator.OnCreated,
) (*entities.Generation, error) {
	switch action.Action {
	case actionVariation:
		return b.orchestrator.CreateVariation(ctx, parent, action.Index, onCreated)
	case actionUpscale:
		return b.orchestrator.CreateUpscale(ctx, parent, action.Index, onCreated)
	case actionVary:
		label := entities.OptionVaryStrong
		if action.Index == varySubtle {
			label = entities.OptionVarySubtle
		}

		option, _ := parent.FindOption(label)

		return b.orchestrator.CreateVary(ctx, parent, imagine_orchestrator.VaryOptions{Custom: option.CustomID}, onCreated)
	case actionZoom:
		option, _ := parent.FindOption(entities.OptionCustomZoom)

		return b.orchestrator.CreateZoomOut(ctx, parent, zoomStrength(action.Index),
			imagine_orchestrator.ZoomOptions{Custom: option.CustomID}, onCreated)
	}

	return nil, errInvalidComponentID
}

func (b *botImpl) respond(s *discordgo.Session, interaction *discordgo.Interaction, content string) {
	err := s.InteractionRespond(interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
		},
	})
	if err != nil {
		b.logger.Error("failed to respond to interaction", zap.Error(err))
	}
}

// reportResult covers failures that never produced a record. Everything
// else is rendered from store events.
func (b *botImpl) reportResult(s *discordgo.Session, interaction *discordgo.Interaction,
	gen *entities.Generation, err error,
) {
	if gen != nil || err == nil {
		return
	}

	content := "I'm sorry, but I had a problem with that request.\n" + err.Error()

	_, editErr := s.InteractionResponseEdit(interaction, &discordgo.WebhookEdit{
		Content: &content,
	})
	if editErr != nil {
		b.logger.Error("failed to edit interaction", zap.Error(editErr))
	}
}

func (b *botImpl) trackCallback(interaction *discordgo.Interaction, userID string) imagine_orchestrator.OnCreated {
	return func(gen entities.Generation) {
		b.track(gen.GUID, interaction, userID)
		b.enqueue(gen)
	}
}

func (b *botImpl) track(guid string, interaction *discordgo.Interaction, userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.tracked[guid] = trackedInteraction{interaction: interaction, userID: userID}
}

func (b *botImpl) lookup(guid string) (trackedInteraction, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tracked, ok := b.tracked[guid]

	return tracked, ok
}

func (b *botImpl) untrack(guid string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.tracked, guid)
}

func (b *botImpl) onStoreEvent(event generation_store.Event) {
	switch event.Kind {
	case generation_store.EventUpdated:
		if _, ok := b.lookup(event.Generation.GUID); ok {
			b.enqueue(event.Generation)
		}
	case generation_store.EventRemoved:
		b.untrack(event.Generation.GUID)
	}
}

// enqueue must not block: store listeners run while the store is locked.
// Updates for the same guid coalesce into the latest one, and a terminal
// state is never replaced by an older progress state.
func (b *botImpl) enqueue(gen entities.Generation) {
	b.pendingMu.Lock()

	current, exists := b.pending[gen.GUID]

	switch {
	case !exists:
		b.pending[gen.GUID] = gen
		b.pendingOrder = append(b.pendingOrder, gen.GUID)
	case current.Status.IsTerminal() && !gen.Status.IsTerminal():
	default:
		b.pending[gen.GUID] = gen
	}

	b.pendingMu.Unlock()

	select {
	case b.renderWake <- struct{}{}:
	default:
	}
}

// takePending returns the queued states and empties the queue.
func (b *botImpl) takePending() []entities.Generation {
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()

	gens := make([]entities.Generation, 0, len(b.pendingOrder))
	for _, guid := range b.pendingOrder {
		gens = append(gens, b.pending[guid])
	}

	b.pending = make(map[string]entities.Generation)
	b.pendingOrder = nil

	return gens
}

func (b *botImpl) renderLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.renderWake:
			for _, gen := range b.takePending() {
				b.render(gen)
			}
		}
	}
}

func (b *botImpl) render(gen entities.Generation) {
	tracked, ok := b.lookup(gen.GUID)
	if !ok {
		return
	}

	content := messageContent(gen, tracked.userID)
	embeds := messageEmbeds(gen)
	components := messageComponents(gen)

	_, err := b.botSession.InteractionResponseEdit(tracked.interaction, &discordgo.WebhookEdit{
		Content:    &content,
		Embeds:     &embeds,
		Components: &components,
	})
	if err != nil {
		b.logger.Error("failed to edit interaction", zap.String("guid", gen.GUID), zap.Error(err))
	}

	if gen.Status.IsTerminal() {
		b.untrack(gen.GUID)
	}
}
