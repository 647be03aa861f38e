package main

import (
	"context"
	"os"

	"github.com/fatih/color"

	"midjourney_bot/commands"
)

func main() {
	ctx := context.Background()

	if err := commands.Run(ctx, os.Args); err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, err.Message)
		os.Exit(err.Code)
	}
}
