package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/harrisonrobin/touchgrass/pkg/auth"
	"github.com/harrisonrobin/touchgrass/pkg/config"
	"github.com/harrisonrobin/touchgrass/pkg/google"
	"github.com/harrisonrobin/touchgrass/pkg/kv"
	"github.com/harrisonrobin/touchgrass/pkg/ledger"
	"github.com/harrisonrobin/touchgrass/pkg/logging"
	"github.com/harrisonrobin/touchgrass/pkg/milestone"
	"github.com/harrisonrobin/touchgrass/pkg/model"
	"github.com/harrisonrobin/touchgrass/pkg/reconcile"
	"github.com/harrisonrobin/touchgrass/pkg/timer"
	"github.com/harrisonrobin/touchgrass/pkg/tracker"
)

// App holds everything a command needs. Config and logger are set up for every
// command; the store and tracker only once open is called.
type App struct {
	cfg    *config.Config
	log    *logging.Logger
	out    io.Writer
	errOut io.Writer
	prompt *Prompter
	now    func() time.Time
	// liveOutput is set when out is a terminal that can redraw in place.
	liveOutput bool

	store    kv.Store
	remote   kv.Store
	provider *auth.Provider
	tracker  *tracker.Tracker
	session  *timer.Session

	unsubscribe func()
}

func NewApp(out, errOut io.Writer, prompt *Prompter) *App {
	return &App{
		out:    out,
		errOut: errOut,
		prompt: prompt,
		now:    time.Now,
		log:    logging.Discard(),
	}
}

// configure loads the config and installs the logger.
func (a *App) configure(path string, debug bool) error {
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	a.cfg = cfg

	level := logging.ParseLevel(cfg.LogLevel)
	if debug {
		level = slog.LevelDebug
	}
	a.log = logging.New(logging.Config{Level: level, Component: logging.ComponentApp, Output: a.errOut})
	logging.SetDefault(a.log)
	return nil
}

// open wires the store, identity provider, remote and tracker.
func (a *App) open(ctx context.Context) error {
	if a.tracker != nil {
		return nil
	}
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	store, err := kv.Open(a.cfg.Storage, a.cfg.ResolvedDataDir())
	if err != nil {
		return fmt.Errorf("error opening %s store: %w", a.cfg.Storage, err)
	}
	a.store = store
	a.log.Debug("opened store", "backend", a.cfg.Storage, "dir", a.cfg.ResolvedDataDir())

	a.provider = auth.NewProvider(a.cfg.Dir(), a.out, a.log)

	remote, err := a.buildRemote()
	if err != nil {
		return err
	}

	ledgerStore := ledger.NewStore(store, a.log)
	evaluator := milestone.NewEvaluator(milestone.LoadRecord(store, a.log))
	rec := reconcile.New(ledgerStore, remote, a.prompt, reconcile.WithLogger(a.log))

	a.tracker = tracker.New(ledgerStore, evaluator, rec,
		tracker.WithGoals(a.cfg.Goals()),
		tracker.WithClock(a.now),
		tracker.WithLogger(a.log),
	)
	if remote != nil {
		a.tracker.Attach(ctx, a.provider)
	}
	a.unsubscribe = a.tracker.Subscribe(tracker.ObserverFunc(a.notify))
	a.session = timer.NewSession(store, a.now, a.log)
	return nil
}

func (a *App) buildRemote() (reconcile.Remote, error) {
	switch a.cfg.Remote {
	case config.RemoteDrive:
		return &driveRemote{provider: a.provider, log: a.log}, nil
	case config.RemoteFolder:
		fs, err := kv.NewFileStore(a.cfg.RemoteDir)
		if err != nil {
			return nil, fmt.Errorf("error opening remote folder: %w", err)
		}
		a.remote = fs
		return reconcile.NewKVRemote(fs), nil
	default:
		return nil, nil
	}
}

// Close waits for pending pushes and releases the stores.
func (a *App) Close() error {
	var errs []error
	if a.tracker != nil {
		if a.unsubscribe != nil {
			a.unsubscribe()
		}
		errs = append(errs, a.tracker.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.remote != nil {
		errs = append(errs, a.remote.Close())
	}
	return errors.Join(errs...)
}

// notify prints what the core reports outside the command's own output.
func (a *App) notify(e tracker.Event) {
	switch e.Kind {
	case tracker.EventMilestone:
		m := e.Milestone
		fmt.Fprintf(a.out, "\n%s %s\n   %s\n", m.Icon, m.Title, m.Message)
		if m.Celebrate {
			fmt.Fprintln(a.out, "   🎊 🎉 🎊 🎉 🎊 🎉 🎊 🎉 🎊")
		}
	case tracker.EventNotice:
		if e.Err != nil {
			fmt.Fprintf(a.errOut, "⚠️  %s (%v)\n", e.Notice, e.Err)
		} else {
			fmt.Fprintf(a.errOut, "⚠️  %s\n", e.Notice)
		}
	case tracker.EventSynced:
		if e.Outcome != "" && e.Outcome != reconcile.OutcomeNone {
			fmt.Fprintf(a.out, "☁️  Cloud sync: %s\n", describeOutcome(e.Outcome))
		}
	}
}

func describeOutcome(o reconcile.Outcome) string {
	switch o {
	case reconcile.OutcomeAdopted:
		return "loaded your cloud data"
	case reconcile.OutcomeMerged:
		return "merged local and cloud data"
	case reconcile.OutcomeReplaced:
		return "replaced local data with the cloud copy"
	case reconcile.OutcomeUploaded:
		return "uploaded local data"
	}
	return string(o)
}

// driveRemote builds the Drive client on first use, so the remote can be
// wired before anyone has signed in.
type driveRemote struct {
	provider *auth.Provider
	log      *logging.Logger

	mu     sync.Mutex
	client *google.DriveClient
}

func (r *driveRemote) get(ctx context.Context) (*google.DriveClient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client != nil {
		return r.client, nil
	}
	httpClient, err := r.provider.HTTPClient(ctx)
	if err != nil {
		return nil, err
	}
	client, err := google.NewClient(ctx, httpClient, r.log)
	if err != nil {
		return nil, err
	}
	r.client = client
	return client, nil
}

func (r *driveRemote) Fetch(ctx context.Context, identityID string) (model.Snapshot, bool, error) {
	c, err := r.get(ctx)
	if err != nil {
		return model.Snapshot{}, false, err
	}
	return c.Fetch(ctx, identityID)
}

func (r *driveRemote) Push(ctx context.Context, identityID string, snap model.Snapshot) error {
	c, err := r.get(ctx)
	if err != nil {
		return err
	}
	return c.Push(ctx, identityID, snap)
}
