package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/matrix-org/batesian/internal/commands"
	"github.com/matrix-org/batesian/internal/output"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := commands.RootCmd().ExecuteContext(ctx); err != nil {
		output.New(os.Stderr).Error(err.Error())
		stop()
		os.Exit(1)
	}
}
