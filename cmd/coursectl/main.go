package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"course-authoring/internal/config"
	"course-authoring/internal/draft"
	"course-authoring/internal/httpx"
	"course-authoring/internal/logger"
	"course-authoring/internal/push"
	"course-authoring/internal/syncer"
)

func main() {
	os.Exit(execute())
}

func execute() int {
	cfg, err := config.LoadClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}
	logger.Setup(os.Stderr, cfg.LogLevel)

	backend, err := draft.OpenBolt(cfg.DraftPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "drafts: %v\n", err)
		return 1
	}
	drafts := draft.NewStore(backend)
	defer drafts.Close()

	retry := httpx.DefaultRetryConfig()
	retry.MaxAttempts = cfg.MaxAttempts
	client := syncer.NewClient(cfg.APIURL, cfg.UserID,
		syncer.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		syncer.WithRetryConfig(retry),
	)

	cli := &commandLine{
		userID:        cfg.UserID,
		autosaveDelay: cfg.AutosaveDelay,
		client:        client,
		drafts:        drafts,
		events:        client,
		out:           os.Stdout,
	}
	if cfg.NATSURL != "" {
		nc, err := push.Connect(cfg.NATSURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "nats: %v\n", err)
			return 1
		}
		defer nc.Drain()
		cli.events = push.Watcher{Conn: nc}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.run(ctx, os.Args); err != nil {
		if !errors.Is(err, errHelp) {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		return 1
	}
	return 0
}
