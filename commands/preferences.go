package commands

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"midjourney_bot/preference_validator"
	"midjourney_bot/repositories/preferences"
)

func validateCommand() *cli.Command {
	var configPath string

	return &cli.Command{
		Name:  "validate",
		Usage: "Check the configured preferences without contacting Discord",
		Flags: globalFlags(&configPath),
		Action: func(ctx context.Context, c *cli.Command) error {
			a, err := newApp(ctx, configPath)
			if err != nil {
				return err
			}
			defer a.close()

			w := c.Root().Writer

			result := preference_validator.Validate(a.prefs)
			if result.Valid {
				successColor.Fprintf(w, "✓ Preferences look good\n")

				return nil
			}

			headerColor.Fprintf(w, "Preferences have %d problem(s):\n", len(result.Errors))

			for _, msg := range result.Errors {
				failColor.Fprintf(w, "  ✗ %s\n", msg)
			}

			return goerr.New("invalid preferences")
		},
	}
}

func preferencesCommand() *cli.Command {
	return &cli.Command{
		Name:  "preferences",
		Usage: "Manage stored preferences",
		Commands: []*cli.Command{
			preferencesSaveCommand(),
		},
	}
}

func preferencesSaveCommand() *cli.Command {
	var (
		configPath string
		profile    string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "profile",
			Aliases:     []string{"p"},
			Usage:       "Profile name to store the preferences under",
			Value:       preferences.DefaultProfile,
			Destination: &profile,
		},
	}
	flags = append(flags, globalFlags(&configPath)...)

	return &cli.Command{
		Name:  "save",
		Usage: "Store the configured preferences in the database",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			a, err := newApp(ctx, configPath)
			if err != nil {
				return err
			}
			defer a.close()

			if a.cfg.Preferences.IsEmpty() {
				return goerr.New("no preferences configured, set MJ_SESSION_TOKEN, MJ_SERVER_ID and MJ_CHANNEL_ID")
			}

			_, err = a.preferencesRepo.Upsert(ctx, profile, &a.cfg.Preferences)
			if err != nil {
				return err
			}

			fmt.Fprintf(c.Root().Writer, "Preferences saved to profile %q\n", profile)

			return nil
		},
	}
}
