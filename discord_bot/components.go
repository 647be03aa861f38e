package discord_bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"

	"midjourney_bot/entities"
)

const (
	componentPrefix = "imagine_"

	actionVariation = "variation"
	actionUpscale   = "upscale"
	actionVary      = "vary"
	actionZoom      = "zoom"

	varyStrong = 1
	varySubtle = 2

	zoom2x  = 1
	zoom15x = 2
)

var errInvalidComponentID = errors.New("invalid component ID")

type componentAction struct {
	Action string
	Index  int
	GUID   string
}

// componentID encodes a button as imagine_<action>_<n>:<guid>.
func componentID(action string, index int, guid string) string {
	return fmt.Sprintf("%s%s_%d:%s", componentPrefix, action, index, guid)
}

func parseComponentID(customID string) (componentAction, error) {
	head, guid, found := strings.Cut(customID, ":")
	if !found || guid == "" || !strings.HasPrefix(head, componentPrefix) {
		return componentAction{}, errInvalidComponentID
	}

	head = strings.TrimPrefix(head, componentPrefix)

	sep := strings.LastIndex(head, "_")
	if sep <= 0 {
		return componentAction{}, errInvalidComponentID
	}

	action := head[:sep]

	index, err := strconv.Atoi(head[sep+1:])
	if err != nil {
		return componentAction{}, errInvalidComponentID
	}

	switch action {
	case actionVariation, actionUpscale:
		if index < 1 || index > 4 {
			return componentAction{}, errInvalidComponentID
		}
	case actionVary:
		if index != varyStrong && index != varySubtle {
			return componentAction{}, errInvalidComponentID
		}
	case actionZoom:
		if index != zoom2x && index != zoom15x {
			return componentAction{}, errInvalidComponentID
		}
	default:
		return componentAction{}, errInvalidComponentID
	}

	return componentAction{Action: action, Index: index, GUID: guid}, nil
}

func zoomStrength(index int) float64 {
	if index == zoom15x {
		return 1.5
	}

	return 2
}

var commandVerbs = map[entities.Command]string{
	entities.CommandImagine:   "imagine",
	entities.CommandVariation: "make variations of",
	entities.CommandVary:      "vary",
	entities.CommandUpscale:   "upscale",
	entities.CommandZoomOut:   "zoom out on",
}

func messageContent(gen entities.Generation, userID string) string {
	verb, ok := commandVerbs[gen.Command]
	if !ok {
		verb = "imagine"
	}

	switch gen.Status {
	case entities.StatusCompleted:
		return fmt.Sprintf("<@%s> asked me to %s \"%s\", here is what I imagined for them.", userID, verb, gen.Prompt)
	case entities.StatusFailed:
		return fmt.Sprintf("<@%s> asked me to %s \"%s\", but it failed.\n%s", userID, verb, gen.Prompt, gen.Error)
	}

	if gen.Progress == "" {
		return fmt.Sprintf("<@%s> asked me to %s \"%s\". Waiting to start...", userID, verb, gen.Prompt)
	}

	return fmt.Sprintf("<@%s> asked me to %s \"%s\". Currently dreaming it up for them. Progress: %s",
		userID, verb, gen.Prompt, gen.Progress)
}

func messageEmbeds(gen entities.Generation) []*discordgo.MessageEmbed {
	if gen.URI == "" {
		return []*discordgo.MessageEmbed{}
	}

	return []*discordgo.MessageEmbed{
		{
			Image: &discordgo.MessageEmbedImage{URL: gen.URI},
		},
	}
}

// messageComponents returns the follow-up buttons for a completed generation.
func messageComponents(gen entities.Generation) []discordgo.MessageComponent {
	if gen.Status != entities.StatusCompleted || !gen.HasBackendIdentity() {
		return []discordgo.MessageComponent{}
	}

	if gen.Type == entities.GenerationTypeUpscale {
		return upscaleComponents(gen)
	}

	variations := make([]discordgo.MessageComponent, 0, 4)
	upscales := make([]discordgo.MessageComponent, 0, 4)

	for n := 1; n <= 4; n++ {
		variations = append(variations, discordgo.Button{
			Label:    fmt.Sprintf("V%d", n),
			Style:    discordgo.SecondaryButton,
			CustomID: componentID(actionVariation, n, gen.GUID),
			Emoji: discordgo.ComponentEmoji{
				Name: "♻️",
			},
		})

		upscales = append(upscales, discordgo.Button{
			Label:    fmt.Sprintf("U%d", n),
			Style:    discordgo.SecondaryButton,
			CustomID: componentID(actionUpscale, n, gen.GUID),
			Emoji: discordgo.ComponentEmoji{
				Name: "⬆️",
			},
		})
	}

	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: variations},
		discordgo.ActionsRow{Components: upscales},
	}
}

func upscaleComponents(gen entities.Generation) []discordgo.MessageComponent {
	buttons := make([]discordgo.MessageComponent, 0, 4)

	if _, ok := gen.FindOption(entities.OptionVaryStrong); ok {
		buttons = append(buttons, discordgo.Button{
			Label:    entities.OptionVaryStrong,
			Style:    discordgo.PrimaryButton,
			CustomID: componentID(actionVary, varyStrong, gen.GUID),
		})
	}

	if _, ok := gen.FindOption(entities.OptionVarySubtle); ok {
		buttons = append(buttons, discordgo.Button{
			Label:    entities.OptionVarySubtle,
			Style:    discordgo.SecondaryButton,
			CustomID: componentID(actionVary, varySubtle, gen.GUID),
		})
	}

	if _, ok := gen.FindOption(entities.OptionCustomZoom); ok {
		buttons = append(buttons,
			discordgo.Button{
				Label:    "Zoom Out 2x",
				Style:    discordgo.SecondaryButton,
				CustomID: componentID(actionZoom, zoom2x, gen.GUID),
			},
			discordgo.Button{
				Label:    "Zoom Out 1.5x",
				Style:    discordgo.SecondaryButton,
				CustomID: componentID(actionZoom, zoom15x, gen.GUID),
			},
		)
	}

	if len(buttons) == 0 {
		return []discordgo.MessageComponent{}
	}

	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: buttons},
	}
}
