package commands

import (
	"context"
	"os"
	"strconv"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"midjourney_bot/entities"
	"midjourney_bot/imagine_orchestrator"
)

type operation func(ctx context.Context, a *app, onCreated imagine_orchestrator.OnCreated) (*entities.Generation, error)

// runOperation wires the app, prints progress while op runs and prints
// the final record.
func runOperation(ctx context.Context, c *cli.Command, configPath string, op operation) error {
	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.close()

	w := c.Root().Writer
	if w == nil {
		w = os.Stdout
	}

	printer := newProgressPrinter(w)

	unsubscribe := a.store.Subscribe(printer.listener)
	defer unsubscribe()

	gen, err := op(ctx, a, printer.onCreated)
	if gen != nil {
		printGeneration(w, *gen)
	}

	return err
}

func imagineCommand() *cli.Command {
	var configPath string

	return &cli.Command{
		Name:      "imagine",
		Usage:     "Generate an image grid from a prompt",
		ArgsUsage: "<prompt>",
		Flags:     globalFlags(&configPath),
		Action: func(ctx context.Context, c *cli.Command) error {
			prompt := strings.Join(c.Args().Slice(), " ")

			return runOperation(ctx, c, configPath, func(ctx context.Context, a *app,
				onCreated imagine_orchestrator.OnCreated,
			) (*entities.Generation, error) {
				return a.orchestrator.CreateGeneration(ctx, prompt, onCreated)
			})
		},
	}
}

func parseTargetArgs(c *cli.Command) (string, int, error) {
	if c.Args().Len() < 2 {
		return "", 0, goerr.New("usage: <guid> <1-4>")
	}

	target, err := strconv.Atoi(c.Args().Get(1))
	if err != nil {
		return "", 0, goerr.Wrap(err, "invalid target", goerr.V("target", c.Args().Get(1)))
	}

	return c.Args().Get(0), target, nil
}

func variationCommand() *cli.Command {
	var configPath string

	return &cli.Command{
		Name:      "variation",
		Usage:     "Create variations of one image of a grid",
		ArgsUsage: "<guid> <1-4>",
		Flags:     globalFlags(&configPath),
		Action: func(ctx context.Context, c *cli.Command) error {
			guid, target, err := parseTargetArgs(c)
			if err != nil {
				return err
			}

			return runOperation(ctx, c, configPath, func(ctx context.Context, a *app,
				onCreated imagine_orchestrator.OnCreated,
			) (*entities.Generation, error) {
				parent, err := a.findGeneration(ctx, guid)
				if err != nil {
					return nil, err
				}

				return a.orchestrator.CreateVariation(ctx, parent, target, onCreated)
			})
		},
	}
}

func upscaleCommand() *cli.Command {
	var configPath string

	return &cli.Command{
		Name:      "upscale",
		Usage:     "Upscale one image of a grid",
		ArgsUsage: "<guid> <1-4>",
		Flags:     globalFlags(&configPath),
		Action: func(ctx context.Context, c *cli.Command) error {
			guid, target, err := parseTargetArgs(c)
			if err != nil {
				return err
			}

			return runOperation(ctx, c, configPath, func(ctx context.Context, a *app,
				onCreated imagine_orchestrator.OnCreated,
			) (*entities.Generation, error) {
				parent, err := a.findGeneration(ctx, guid)
				if err != nil {
					return nil, err
				}

				return a.orchestrator.CreateUpscale(ctx, parent, target, onCreated)
			})
		},
	}
}

func varyCommand() *cli.Command {
	var (
		configPath string
		subtle     bool
	)

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "subtle",
			Usage:       "Use the subtle variation instead of the strong one",
			Destination: &subtle,
		},
	}
	flags = append(flags, globalFlags(&configPath)...)

	return &cli.Command{
		Name:      "vary",
		Usage:     "Vary an upscaled image",
		ArgsUsage: "<guid>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() == 0 {
				return goerr.New("generation GUID is required")
			}

			guid := c.Args().Get(0)

			label := entities.OptionVaryStrong
			if subtle {
				label = entities.OptionVarySubtle
			}

			return runOperation(ctx, c, configPath, func(ctx context.Context, a *app,
				onCreated imagine_orchestrator.OnCreated,
			) (*entities.Generation, error) {
				parent, err := a.findGeneration(ctx, guid)
				if err != nil {
					return nil, err
				}

				option, _ := parent.FindOption(label)

				return a.orchestrator.CreateVary(ctx, parent, imagine_orchestrator.VaryOptions{Custom: option.CustomID}, onCreated)
			})
		},
	}
}

func zoomOutCommand() *cli.Command {
	var (
		configPath string
		strength   float64
	)

	flags := []cli.Flag{
		&cli.FloatFlag{
			Name:        "strength",
			Aliases:     []string{"s"},
			Usage:       "Zoom strength between 1 and 2",
			Value:       2,
			Destination: &strength,
		},
	}
	flags = append(flags, globalFlags(&configPath)...)

	return &cli.Command{
		Name:      "zoomout",
		Usage:     "Zoom out of an upscaled image",
		ArgsUsage: "<guid>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() == 0 {
				return goerr.New("generation GUID is required")
			}

			guid := c.Args().Get(0)

			return runOperation(ctx, c, configPath, func(ctx context.Context, a *app,
				onCreated imagine_orchestrator.OnCreated,
			) (*entities.Generation, error) {
				parent, err := a.findGeneration(ctx, guid)
				if err != nil {
					return nil, err
				}

				option, _ := parent.FindOption(entities.OptionCustomZoom)

				return a.orchestrator.CreateZoomOut(ctx, parent, strength,
					imagine_orchestrator.ZoomOptions{Custom: option.CustomID}, onCreated)
			})
		},
	}
}
