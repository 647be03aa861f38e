package commands

import (
	"context"

	"github.com/urfave/cli/v3"
)

type Error struct {
	Code    int
	Message string
}

func Run(ctx context.Context, argv []string) *Error {
	cmd := &cli.Command{
		Name:  "midjourney_bot",
		Usage: "Submit prompts to Midjourney and track the resulting generations",
		Commands: []*cli.Command{
			imagineCommand(),
			variationCommand(),
			upscaleCommand(),
			varyCommand(),
			zoomOutCommand(),
			historyCommand(),
			validateCommand(),
			preferencesCommand(),
			botCommand(),
		},
	}

	if err := cmd.Run(ctx, argv); err != nil {
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}

func globalFlags(configPath *string) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to a YAML config file",
			Sources:     cli.EnvVars("MJ_CONFIG"),
			Destination: configPath,
		},
	}
}
