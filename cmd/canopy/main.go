package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/seliga/canopy/internal/app"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "override canopy config path (optional)")
	prefsPath := flag.String("prefs", "", "override preferences path (optional)")
	pollSeconds := flag.Int("poll", 0, "notification poll interval in seconds (optional, defaults to 30s)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := app.Options{ConfigPath: *configPath, PrefsPath: *prefsPath}
	if poll := *pollSeconds; poll > 0 {
		opts.PollEvery = poll
	}

	if err := app.Run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "canopy: %v\n", err)
		return 1
	}
	return 0
}
