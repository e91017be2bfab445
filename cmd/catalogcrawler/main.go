package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"cloudeng.io/cmdutil/signals"

	"catalogcrawler/cmd/catalogcrawler/app"
	"catalogcrawler/internal/limiter"
)

func main() {
	ctx, _ := signals.NotifyWithCancel(context.Background(), signals.Defaults()...)

	httpClient := &http.Client{}

	clock := limiter.NewClock()

	err := app.Run(ctx, os.Args, os.Stdout, os.Stderr, httpClient, clock)
	if err != nil {
		log.Print(err)
		os.Exit(1)
	}
}
