package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"b2downloader/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.Execute(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, cmd.ErrRunFailed) {
			log.Printf("Failed to execute command: %v", err)
		}
		os.Exit(1)
	}
}
