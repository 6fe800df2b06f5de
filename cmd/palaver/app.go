package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/go-go-golems/palaver/pkg/chat"
	"github.com/go-go-golems/palaver/pkg/events"
	"github.com/go-go-golems/palaver/pkg/inference"
	"github.com/go-go-golems/palaver/pkg/notify"
	"github.com/go-go-golems/palaver/pkg/persistence"
	"github.com/go-go-golems/palaver/pkg/settings"
	"github.com/go-go-golems/palaver/pkg/store"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

// App is everything a command needs: the hydrated store, persisted on every
// commit, and a coordinator publishing its events on the router.
type App struct {
	Store       *store.Store
	Coordinator *chat.Coordinator
	Router      *events.EventRouter
	Snapshotter *persistence.Snapshotter

	backend persistence.Backend
	detach  func()
}

func defaultStatePath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "palaver")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".palaver")
	}
	return ".palaver"
}

func NewApp(ctx context.Context, v *viper.Viper) (*App, error) {
	statePath := v.GetString("state-path")
	if statePath == "" {
		statePath = defaultStatePath()
	}
	kind := persistence.BackendKind(v.GetString("state-backend"))

	backend, err := persistence.Open(kind, statePath)
	if err != nil {
		return nil, err
	}

	state, err := persistence.Hydrate(ctx, backend, persistence.StateKey)
	if err != nil {
		log.Warn().Err(err).Str("path", statePath).Msg("could not restore state, starting fresh")
	}

	s := state.Settings.Clone()
	changed, err := s.UpdateFromViper(v)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	cs := settings.NewClientSettings()
	if err := cs.UpdateFromViper(v); err != nil {
		_ = backend.Close()
		return nil, err
	}

	st := store.New(store.WithState(state))
	snapshotter := persistence.NewSnapshotter(backend)
	detach := snapshotter.Attach(st)

	if changed {
		if err := st.UpdateSettings(s); err != nil {
			detach()
			_ = backend.Close()
			return nil, err
		}
	}
	if v.IsSet("api-key") {
		if err := st.SetAPIKey(v.GetString("api-key")); err != nil {
			detach()
			_ = backend.Close()
			return nil, err
		}
	}

	router, err := events.NewEventRouter(events.WithVerbose(v.GetBool("verbose")))
	if err != nil {
		detach()
		_ = backend.Close()
		return nil, err
	}

	sink := events.NewWatermillSink(router.Publisher, events.TopicChat)
	notifier := notify.MultiSink{notify.LogSink{}, notify.NewEventSink(sink)}
	streamer := inference.NewOpenAIStreamer(inference.WithClientSettings(cs))

	coordinator := chat.NewCoordinator(st, streamer,
		chat.WithNotifier(notifier),
		chat.WithEventSinks(sink),
		chat.WithTitleInference(!v.GetBool("no-titles")),
	)

	log.Debug().
		Str("backend", string(kind)).
		Str("path", statePath).
		Int("conversations", len(state.Conversations)).
		Msg("state loaded")

	return &App{
		Store:       st,
		Coordinator: coordinator,
		Router:      router,
		Snapshotter: snapshotter,
		backend:     backend,
		detach:      detach,
	}, nil
}

// Close stops every request, writes the final state and releases the
// backend.
func (a *App) Close() error {
	a.Coordinator.Close()
	a.detach()
	a.Snapshotter.Save(a.Store.Snapshot())
	_ = a.Router.Close()

	err := a.Snapshotter.LastError()
	if cerr := a.backend.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// withApp opens the app for the duration of fn.
func withApp(ctx context.Context, fn func(ctx context.Context, app *App) error) error {
	app, err := NewApp(ctx, viper.GetViper())
	if err != nil {
		return err
	}
	err = fn(ctx, app)
	if cerr := app.Close(); cerr != nil {
		if err == nil {
			return errors.Wrap(cerr, "could not save state")
		}
		log.Error().Err(cerr).Msg("could not save state")
	}
	return err
}

// runWithRouter runs the event router next to fn. The router is stopped
// once fn returns.
func runWithRouter(ctx context.Context, app *App, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return app.Router.Run(ctx)
	})
	eg.Go(func() error {
		defer cancel()
		select {
		case <-app.Router.Running():
		case <-ctx.Done():
			return ctx.Err()
		}
		return fn(ctx)
	})

	return eg.Wait()
}
