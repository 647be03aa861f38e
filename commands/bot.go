package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"midjourney_bot/discord_bot"
)

func botCommand() *cli.Command {
	var configPath string

	return &cli.Command{
		Name:  "bot",
		Usage: "Serve /imagine and its buttons on a Discord server",
		Flags: globalFlags(&configPath),
		Action: func(ctx context.Context, c *cli.Command) error {
			a, err := newApp(ctx, configPath)
			if err != nil {
				return err
			}
			defer a.close()

			bot, err := discord_bot.New(discord_bot.Config{
				BotToken:     a.cfg.Discord.BotToken,
				GuildID:      a.cfg.Discord.GuildID,
				Orchestrator: a.orchestrator,
				Store:        a.store,
				Logger:       a.logger,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			err = bot.Start(ctx)

			a.logger.Info("gracefully shutting down")

			return err
		},
	}
}
