package commands

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func historyCommand() *cli.Command {
	var (
		configPath string
		limit      int64
	)

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "limit",
			Aliases:     []string{"l"},
			Usage:       "Number of most recent generations to show",
			Value:       20,
			Destination: &limit,
		},
	}
	flags = append(flags, globalFlags(&configPath)...)

	return &cli.Command{
		Name:  "history",
		Usage: "List recent generations",
		Flags: flags,
		Commands: []*cli.Command{
			historyRemoveCommand(),
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			a, err := newApp(ctx, configPath)
			if err != nil {
				return err
			}
			defer a.close()

			list := a.store.List()
			if limit > 0 && int64(len(list)) > limit {
				list = list[int64(len(list))-limit:]
			}

			if len(list) == 0 {
				fmt.Fprintf(c.Root().Writer, "No generations yet\n")

				return nil
			}

			for _, gen := range list {
				printGeneration(c.Root().Writer, gen)
			}

			return nil
		},
	}
}

func historyRemoveCommand() *cli.Command {
	var configPath string

	return &cli.Command{
		Name:      "remove",
		Usage:     "Remove a generation from the history",
		ArgsUsage: "<guid>",
		Flags:     globalFlags(&configPath),
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() == 0 {
				return goerr.New("generation GUID is required")
			}

			guid := c.Args().Get(0)

			a, err := newApp(ctx, configPath)
			if err != nil {
				return err
			}
			defer a.close()

			err = a.removeGeneration(ctx, guid)
			if err != nil {
				return err
			}

			fmt.Fprintf(c.Root().Writer, "Generation %s removed\n", guid)

			return nil
		},
	}
}
