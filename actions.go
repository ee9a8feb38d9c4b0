package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harrisonrobin/touchgrass/pkg/auth"
	"github.com/harrisonrobin/touchgrass/pkg/calendar"
	"github.com/harrisonrobin/touchgrass/pkg/config"
	"github.com/harrisonrobin/touchgrass/pkg/kv"
	"github.com/harrisonrobin/touchgrass/pkg/reconcile"
	"github.com/harrisonrobin/touchgrass/pkg/stats"
	"github.com/harrisonrobin/touchgrass/pkg/timer"
	"github.com/harrisonrobin/touchgrass/pkg/tracker"
	"github.com/harrisonrobin/touchgrass/pkg/util"
	"github.com/harrisonrobin/touchgrass/pkg/watch"
)

const (
	clearScreen = "\033[H\033[2J"
	barWidth    = 20
)

func (a *App) Add(ctx context.Context, dateArg string, hours float64) error {
	if err := a.open(ctx); err != nil {
		return err
	}
	date, err := util.ResolveDate(dateArg, a.now())
	if err != nil {
		return err
	}
	if hours == 0 {
		return fmt.Errorf("nothing to add, pass --hours/-H or --minutes/-M")
	}
	s, err := a.tracker.Mutate(ctx, tracker.Op{Kind: tracker.OpAdd, Date: date, Hours: hours})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Added %s to %s (total %s)\n\n", util.FormatHours(hours), date, util.FormatHours(a.tracker.GetLedger()[date]))
	a.printStats(s)
	return nil
}

func (a *App) Set(ctx context.Context, dateArg, hoursArg string) error {
	if err := a.open(ctx); err != nil {
		return err
	}
	date, err := util.ResolveDate(dateArg, a.now())
	if err != nil {
		return err
	}
	hours, err := util.ParseHours(hoursArg)
	if err != nil {
		return err
	}
	s, err := a.tracker.Mutate(ctx, tracker.Op{Kind: tracker.OpSet, Date: date, Hours: hours})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Set %s to %s\n\n", date, util.FormatHours(hours))
	a.printStats(s)
	return nil
}

func (a *App) Edit(ctx context.Context, dateArg string) error {
	if err := a.open(ctx); err != nil {
		return err
	}
	date, err := util.ResolveDate(dateArg, a.now())
	if err != nil {
		return err
	}
	hours, ok, err := a.prompt.RequestEditValue(date, a.tracker.GetLedger()[date])
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(a.out, "Cancelled.")
		return nil
	}
	s, err := a.tracker.Mutate(ctx, tracker.Op{Kind: tracker.OpEdit, Date: date, Hours: hours})
	if err != nil {
		return err
	}
	if hours == 0 {
		fmt.Fprintf(a.out, "Deleted %s\n\n", date)
	} else {
		fmt.Fprintf(a.out, "Set %s to %s\n\n", date, util.FormatHours(hours))
	}
	a.printStats(s)
	return nil
}

func (a *App) Remove(ctx context.Context, dateArg string) error {
	if err := a.open(ctx); err != nil {
		return err
	}
	date, err := util.ResolveDate(dateArg, a.now())
	if err != nil {
		return err
	}
	if _, ok := a.tracker.GetLedger()[date]; !ok {
		fmt.Fprintf(a.out, "No entry for %s\n", date)
		return nil
	}
	if _, err := a.tracker.Mutate(ctx, tracker.Op{Kind: tracker.OpRemove, Date: date}); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Deleted %s\n", date)
	return nil
}

func (a *App) Stats(ctx context.Context, dateArg string) error {
	if err := a.open(ctx); err != nil {
		return err
	}
	if dateArg == "" {
		a.printStats(a.tracker.GetStats())
		return nil
	}
	date, err := util.ResolveDate(dateArg, a.now())
	if err != nil {
		return err
	}
	day, err := stats.ParseDay(date)
	if err != nil {
		return err
	}
	a.printStats(a.tracker.StatsFor(day))
	return nil
}

func (a *App) printStats(s stats.Stats) {
	fmt.Fprintf(a.out, "🌿 %s (week %s)\n", s.Date, s.WeekKey)
	rows := [][]string{
		progressRow("Today", s.Today),
		progressRow("Week", s.Week),
		progressRow("Month", s.Month),
		progressRow("Year", s.Year),
	}
	util.PrintTable(a.out, []string{"", "Progress", "Hours", "Goal", "Delta", ""}, rows, nil)
}

func progressRow(label string, p stats.Progress) []string {
	mark := ""
	if p.Met() {
		mark = "✓"
	}
	return []string{
		label,
		util.ProgressBar(p.Percent(), barWidth),
		fmt.Sprintf("%.2f", p.Hours),
		fmt.Sprintf("%.2f", p.Goal),
		util.FormatDelta(p.Delta()),
		mark,
	}
}

func (a *App) History(ctx context.Context, dateArg string) error {
	if err := a.open(ctx); err != nil {
		return err
	}
	l := a.tracker.GetLedger()

	if dateArg != "" {
		date, err := util.ResolveDate(dateArg, a.now())
		if err != nil {
			return err
		}
		hours, ok := l[date]
		if !ok {
			fmt.Fprintf(a.out, "No entry for %s\n", date)
			return nil
		}
		fmt.Fprintf(a.out, "%s: %s\n", date, util.FormatHours(hours))
		return nil
	}

	if len(l) == 0 {
		fmt.Fprintln(a.out, "No time recorded yet. Try `touchgrass add -H 1`.")
		return nil
	}

	goal := a.tracker.Goals().Daily
	var rows [][]string
	for _, date := range l.Dates() {
		weekday := ""
		if t, err := stats.ParseDay(date); err == nil {
			weekday = t.Weekday().String()[:3]
		}
		rows = append(rows, []string{
			date,
			weekday,
			fmt.Sprintf("%.2f", l[date]),
			util.ProgressBar(stats.Progress{Hours: l[date], Goal: goal}.Percent(), barWidth/2),
		})
	}
	footer := []string{"Total", fmt.Sprintf("%d days", len(l)), fmt.Sprintf("%.2f", l.Total()), ""}
	util.PrintTable(a.out, []string{"Date", "Day", "Hours", ""}, rows, footer)
	return nil
}

func (a *App) Calendar(ctx context.Context, monthArg string) error {
	if err := a.open(ctx); err != nil {
		return err
	}
	now := a.now()
	year, month := now.Year(), now.Month()
	if monthArg != "" {
		var err error
		year, month, err = calendar.ParseMonth(monthArg)
		if err != nil {
			return err
		}
	}

	m := calendar.Build(a.tracker.GetLedger(), year, month, now, a.tracker.Goals().Daily)
	if err := calendar.Render(a.out, m); err != nil {
		return err
	}
	py, pm := m.Prev()
	ny, nm := m.Next()
	fmt.Fprintf(a.out, "  ← %04d-%02d   %04d-%02d →\n", py, pm, ny, nm)
	return nil
}

func (a *App) RunTimer(ctx context.Context) error {
	if err := a.open(ctx); err != nil {
		return err
	}
	if _, running, err := a.session.Status(); err == nil && running {
		return fmt.Errorf("a timer session is already running, use `touchgrass stop` first")
	}

	t := timer.New(func(elapsed time.Duration) {
		if a.liveOutput {
			fmt.Fprintf(a.out, "\r⏱  %s ", util.FormatClock(elapsed))
		}
	})
	if err := t.Start(); err != nil {
		return err
	}
	if a.prompt.interactive {
		fmt.Fprintln(a.out, "⏱  Timer started. Press Enter to stop.")
	} else {
		fmt.Fprintln(a.out, "⏱  Timer started. Press Ctrl-C to stop.")
	}

	enter := make(chan struct{})
	if a.prompt.interactive {
		go func() {
			_, _ = a.prompt.readLine()
			close(enter)
		}()
	}
	select {
	case <-ctx.Done():
	case <-enter:
	}

	secs, err := t.Stop()
	if err != nil {
		return err
	}
	return a.recordElapsed(context.WithoutCancel(ctx), secs)
}

func (a *App) recordElapsed(ctx context.Context, secs int64) error {
	fmt.Fprintf(a.out, "\rStopped after %s\n", util.FormatClock(time.Duration(secs)*time.Second))
	s, added, err := a.tracker.AddElapsed(ctx, secs)
	if err != nil {
		return err
	}
	if !added {
		fmt.Fprintln(a.out, "Nothing recorded.")
		return nil
	}
	fmt.Fprintf(a.out, "Added %s to today\n\n", util.FormatHours(timer.Hours(secs)))
	a.printStats(s)
	return nil
}

func (a *App) StartSession(ctx context.Context) error {
	if err := a.open(ctx); err != nil {
		return err
	}
	started, err := a.session.Start()
	if errors.Is(err, timer.ErrRunning) {
		since, _, _ := a.session.Status()
		return fmt.Errorf("a session has been running since %s, use `touchgrass stop`", since.Format("15:04"))
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "⏱  Started at %s. Run `touchgrass stop` when you are back inside.\n", started.Format("15:04"))
	return nil
}

func (a *App) StopSession(ctx context.Context, discard bool) error {
	if err := a.open(ctx); err != nil {
		return err
	}
	if discard {
		_, running, err := a.session.Status()
		if err != nil {
			return err
		}
		if !running {
			return timer.ErrNotRunning
		}
		if err := a.session.Cancel(); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Session discarded.")
		return nil
	}

	secs, err := a.session.Stop()
	if err != nil {
		return err
	}
	return a.recordElapsed(ctx, secs)
}

func (a *App) Status(ctx context.Context) error {
	if err := a.open(ctx); err != nil {
		return err
	}
	started, running, err := a.session.Status()
	if err != nil {
		return err
	}
	if running {
		elapsed := a.now().Sub(started)
		fmt.Fprintf(a.out, "⏱  Running since %s (%s)\n", started.Format("15:04"), util.FormatClock(elapsed))
	} else {
		fmt.Fprintln(a.out, "⏱  No session running")
	}

	state, id := a.tracker.Session()
	switch {
	case a.cfg.Remote == config.RemoteNone:
		fmt.Fprintln(a.out, "☁️  Sync disabled")
	case state == reconcile.SignedIn:
		fmt.Fprintf(a.out, "☁️  Syncing as %s (%s)\n", id.DisplayName(), a.cfg.Remote)
	default:
		fmt.Fprintln(a.out, "☁️  Signed out, data is kept on this device")
	}
	return nil
}

func (a *App) Login(ctx context.Context) error {
	if err := a.open(ctx); err != nil {
		return err
	}
	if a.cfg.Remote == config.RemoteNone {
		return fmt.Errorf("sync is disabled, set a remote with `touchgrass config set remote drive`")
	}
	// Listeners attached in open run the sign-in reconciliation.
	id, err := a.provider.SignIn(ctx)
	if err != nil {
		return fmt.Errorf("sign-in failed: %w", err)
	}
	fmt.Fprintf(a.out, "Signed in as %s\n", id.DisplayName())
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	if err := a.open(ctx); err != nil {
		return err
	}
	if _, ok := a.provider.CurrentIdentity(); !ok {
		fmt.Fprintln(a.out, "Not signed in.")
		return nil
	}
	if err := a.provider.SignOut(); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Signed out. Your data stays on this device.")
	return nil
}

func (a *App) Whoami(ctx context.Context) error {
	if err := a.open(ctx); err != nil {
		return err
	}
	id, ok := a.provider.CurrentIdentity()
	if !ok {
		return auth.ErrNotSignedIn
	}
	if id.Email != "" && id.Name != "" {
		fmt.Fprintf(a.out, "%s <%s>\n", id.Name, id.Email)
		return nil
	}
	fmt.Fprintln(a.out, id.DisplayName())
	return nil
}

func (a *App) Sync(ctx context.Context) error {
	if err := a.open(ctx); err != nil {
		return err
	}
	if a.cfg.Remote == config.RemoteNone {
		return fmt.Errorf("sync is disabled")
	}
	outcome, err := a.tracker.Sync(ctx)
	if errors.Is(err, tracker.ErrSignedOut) {
		return fmt.Errorf("not signed in, run `touchgrass login` first")
	}
	if err != nil {
		return err
	}
	if outcome == reconcile.OutcomeNone {
		fmt.Fprintln(a.out, "Nothing to sync.")
	}
	return nil
}

func (a *App) Watch(ctx context.Context) error {
	if err := a.open(ctx); err != nil {
		return err
	}
	pather, ok := a.store.(kv.Pather)
	if !ok {
		return fmt.Errorf("the %s store cannot be watched", a.cfg.Storage)
	}
	w, err := watch.New(pather.Paths(), nil, a.log)
	if err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}
	defer w.Close()

	draw := func(s stats.Stats) {
		if a.liveOutput {
			fmt.Fprint(a.out, clearScreen)
		}
		a.printStats(s)
		fmt.Fprintf(a.out, "\nupdated %s, Ctrl-C to quit\n", a.now().Format("15:04:05"))
	}
	unsubscribe := a.tracker.Subscribe(tracker.ObserverFunc(func(e tracker.Event) {
		if e.Kind == tracker.EventMutated {
			draw(e.Stats)
		}
	}))
	defer unsubscribe()

	a.tracker.Refresh()

	// Day rollover changes the stats without touching the files.
	minute := time.NewTicker(time.Minute)
	defer minute.Stop()

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events():
			if !ok {
				return nil
			}
			a.log.Debug("store changed", "path", ev.Path, "op", ev.Operation)
			debounce = time.After(150 * time.Millisecond)
		case <-debounce:
			debounce = nil
			a.tracker.Refresh()
		case <-minute.C:
			a.tracker.Refresh()
		}
	}
}

func (a *App) ShowConfig() error {
	var rows [][]string
	for _, key := range config.Keys() {
		v, err := a.cfg.Get(key)
		if err != nil {
			return err
		}
		rows = append(rows, []string{key, v})
	}
	util.PrintTable(a.out, []string{"Key", "Value"}, rows, []string{"file", a.cfg.Path()})
	if err := a.cfg.Validate(); err != nil {
		fmt.Fprintf(a.errOut, "\n%v\n", err)
	}
	return nil
}

// SetConfig edits the file itself, so environment overrides are not written back.
func (a *App) SetConfig(key, value string) error {
	cfg, err := config.LoadFile(a.cfg.Path())
	if err != nil {
		return err
	}
	if err := cfg.Set(key, value); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.Save(cfg); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s = %s\n", key, value)
	return nil
}
