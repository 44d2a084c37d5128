package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"github.com/seliga/canopy/internal/arbor"
	"github.com/seliga/canopy/internal/cache"
	"github.com/seliga/canopy/internal/config"
	"github.com/seliga/canopy/internal/notify"
	"github.com/seliga/canopy/internal/prefs"
	"github.com/seliga/canopy/internal/state"
	"github.com/seliga/canopy/internal/store"
	"github.com/seliga/canopy/internal/stream"
	"github.com/seliga/canopy/internal/ui"
)

// Options configure the Canopy application.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/canopy/prefs.toml
	PollEvery  int    // seconds; zero uses the config value
}

// Run boots the Canopy TUI until the context is cancelled.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load canopy config: %w", err)
	}

	userPrefs := prefs.Load(opts.PrefsPath)

	closeLog := redirectLog(cfg)
	defer closeLog()

	var tokens oauth2.TokenSource
	if cfg.Token != "" {
		tokens = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
	}

	client, err := arbor.NewClient(cfg.APIBase, tokens)
	if err != nil {
		return fmt.Errorf("init arbor client: %w", err)
	}

	caches := state.CacheFactory(state.MemoryCaches)
	if cfg.RedisURL != "" {
		caches = func(domain string) cache.Repository {
			r, err := cache.NewRedis(cfg.RedisURL, "canopy:"+domain+":")
			if err != nil {
				log.Printf("redis cache unavailable for %s: %v; using memory", domain, err)
				return cache.NewMemory()
			}
			return r
		}
	}

	pollSeconds := cfg.PollSeconds
	if opts.PollEvery > 0 {
		pollSeconds = opts.PollEvery
	}

	newSource := func() notify.EventSource {
		// No overall client timeout; the subscription lives until the run
		// context ends.
		return stream.New(&http.Client{}, client.StreamRequest)
	}

	stores := state.NewStores(client, caches, newSource, time.Duration(pollSeconds)*time.Second)

	// Notifications arrive over the stream while it holds, polling after.
	go stores.Notify.Run(ctx)

	// Populate the listings before the UI takes the terminal. A slow or
	// down server is not fatal; the stores keep their error slots and the
	// UI renders those.
	hydrate(ctx, stores, userPrefs.PageSize)

	defer stores.Reset(context.WithoutCancel(ctx))

	uiOpts := ui.Options{
		Context:   ctx,
		Stores:    stores,
		ThemeName: userPrefs.Theme,
		PageSize:  userPrefs.PageSize,
		PrefsPath: opts.PrefsPath,
	}
	return ui.Run(uiOpts)
}

func hydrate(ctx context.Context, stores *state.Stores, pageSize int) {
	params := arbor.ListParams{Page: 1, PerPage: pageSize}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return benign(stores.Entities.FetchList(gctx, params)) })
	g.Go(func() error { return benign(stores.FacetValues.FetchList(gctx, params)) })
	g.Go(func() error { return benign(stores.Summaries.FetchList(gctx, params)) })
	g.Go(func() error { return benign(stores.Sources.FetchList(gctx, params)) })
	g.Go(func() error { return benign(stores.Usage.FetchList(gctx, params)) })
	if err := g.Wait(); err != nil {
		log.Printf("initial load incomplete: %v", err)
	}
}

// benign filters the outcomes that are not failures.
func benign(err error) error {
	if errors.Is(err, store.ErrSuperseded) {
		return nil
	}
	return err
}

// redirectLog sends stdlib logging to the debug log file while the TUI owns
// the terminal. Returns the cleanup.
func redirectLog(cfg config.Config) func() {
	path := cfg.DebugLogPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		log.SetOutput(io.Discard)
		return func() {}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		log.SetOutput(io.Discard)
		return func() {}
	}
	log.SetOutput(file)
	return func() {
		log.SetOutput(os.Stderr)
		_ = file.Close()
	}
}
