// Package app wires the engine together: config, logging, storage,
// notifier, task discovery and the scheduling loop, under one
// supervisor.
package app

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"taskherd/internal/config"
	"taskherd/internal/notify"
	"taskherd/internal/orchestrator"
	"taskherd/internal/runner"
	rtsup "taskherd/internal/runtime/supervisor"
	"taskherd/internal/storage"
	"taskherd/internal/task"
	"taskherd/internal/trigger"
	logx "taskherd/pkg/logx"
)

const defaultTasksRoot = "./tasks"

type Options struct {
	ConfigPath string
	// TasksRoot overrides the configured tasks root when non-empty.
	TasksRoot string
	// Entries builds the static registration table. It receives the live
	// logger so entry points log through the same sinks as the engine.
	Entries func(logx.Logger) task.Entrypoints
}

type App struct {
	opts Options

	cfgm *config.Manager
	sup  *rtsup.Supervisor

	log  logx.Logger
	logs *logx.Service

	notifier *notify.Telegram
	store    storage.Store

	tick  time.Duration
	grace time.Duration
	orch  *orchestrator.Orchestrator
}

func New(opts Options) (*App, error) {
	cfgm := config.NewManager(opts.ConfigPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", opts.ConfigPath, err)
	}

	a := &App{opts: opts, cfgm: cfgm}

	// Notifier first: the log service takes it as alert sink.
	var sender logx.AlertSender
	if cfg.Telegram != nil {
		bootLog := logx.NewConsole(cfg.Logging.Level).With(logx.String("comp", "notify"))
		tg, err := notify.New(notify.Config{
			Token:  cfg.Telegram.Token,
			ChatID: cfg.Telegram.ChatID,
		}, bootLog)
		if err != nil {
			return nil, fmt.Errorf("telegram notifier: %w", err)
		}
		a.notifier = tg
		sender = tg
	}

	a.logs, a.log = logx.New(logCfg(cfg), sender)
	a.log = a.log.With(logx.String("comp", "app"))
	cfgm.SetLogger(a.log.With(logx.String("comp", "config")))

	a.tick, err = cfg.Orchestrator.Tick()
	if err != nil {
		return nil, err
	}
	a.grace, err = cfg.Orchestrator.Grace()
	if err != nil {
		return nil, err
	}

	if cfg.Storage != nil {
		busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
		if err != nil {
			return nil, err
		}
		st, err := storage.Open(storage.Config{
			Driver:      cfg.Storage.Driver,
			Path:        cfg.Storage.Path,
			BusyTimeout: busy,
		}, a.log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, fmt.Errorf("storage: %w", err)
		}
		a.store = st
	}

	root := tasksRoot(opts, cfg)
	var entries task.Entrypoints
	if opts.Entries != nil {
		entries = opts.Entries(a.logs.Logger().With(logx.String("comp", "task")))
	}
	defs, err := task.Discover(root, entries, a.log.With(logx.String("comp", "discovery")))
	if err != nil {
		return nil, err
	}
	if len(defs) == 0 {
		a.log.Warn("no tasks discovered", logx.String("root", root))
	}

	a.orch = orchestrator.New(root, a.tick, a.grace, defs,
		a.log.With(logx.String("comp", "orchestrator")))
	a.orch.SetOnFinish(a.recordRun)

	return a, nil
}

func tasksRoot(opts Options, cfg *config.Config) string {
	if r := strings.TrimSpace(opts.TasksRoot); r != "" {
		return r
	}
	if r := strings.TrimSpace(cfg.Orchestrator.TasksRoot); r != "" {
		return r
	}
	return defaultTasksRoot
}

func logCfg(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Alert: logx.AlertConfig{
			Enabled:    cfg.Logging.Alert.Enabled,
			MinLevel:   cfg.Logging.Alert.MinLevel,
			RatePerSec: cfg.Logging.Alert.RatePerSec,
		},
	}
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))

	// Transactional config reload: validate before commit/publish.
	a.cfgm.SetValidator(func(c context.Context, cfg *config.Config) error {
		if _, err := cfg.Orchestrator.Tick(); err != nil {
			return err
		}
		if _, err := cfg.Orchestrator.Grace(); err != nil {
			return err
		}
		if cfg.Storage != nil {
			if _, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
				return err
			}
		}
		return nil
	})

	a.sup.Go("orchestrator.loop", func(c context.Context) error {
		return a.orch.Run(c)
	})

	// Hot reload: only the logging section applies live. Tick, grace,
	// tasks root and the task set are fixed until restart.
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				a.logs.Apply(logCfg(newCfg))
				if restartOnly(lastApplied, newCfg) {
					a.log.Warn("config change needs a restart to take effect (orchestrator/storage/telegram sections)")
				}
				lastApplied = newCfg
				a.log.Info("config reloaded")
			}
		}
	})

	// Watch recreates its fsnotify watcher on its own; GoRestart covers
	// the loop itself against panics and unexpected returns.
	a.sup.GoRestart("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	}, rtsup.WithRestartBackoff(time.Second, 30*time.Second))

	a.log.Info("app started",
		logx.Duration("tick", a.tick), logx.Duration("grace", a.grace))
	return nil
}

// restartOnly reports whether prev and next differ outside the hot-apply
// (logging) section. DeepEqual follows the pointer sections (telegram,
// storage) by content, not identity.
func restartOnly(prev, next *config.Config) bool {
	if prev == nil || next == nil {
		return false
	}
	p, n := *prev, *next
	p.Logging, n.Logging = config.LoggingConfig{}, config.LoggingConfig{}
	return !reflect.DeepEqual(p, n)
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	active, started := a.sup.Counters()
	a.log.Info("stopping",
		logx.Int64("goroutines", active), logx.Uint64("started_total", started))

	// Cancel first: the loop starts its cooperative shutdown immediately.
	a.sup.Cancel()

	// Bound each shutdown step so one component can't stall the stop.
	a.step(ctx, "supervisor", a.grace+2*time.Second, func(c context.Context) error {
		return a.sup.Wait(c)
	})
	if a.store != nil {
		a.step(ctx, "storage", 2*time.Second, func(context.Context) error {
			return a.store.Close()
		})
	}
	a.step(ctx, "logs", time.Second, func(context.Context) error {
		return a.logs.Close()
	})

	a.log.Info("stopped")
	return nil
}

func (a *App) step(ctx context.Context, name string, max time.Duration, fn func(context.Context) error) {
	start := time.Now()

	stepCtx := ctx
	var cancel context.CancelFunc
	if max > 0 {
		stepCtx, cancel = context.WithTimeout(ctx, max)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		a.log.Debug("stop step end",
			logx.String("name", name), logx.Duration("took", time.Since(start)))
	case <-stepCtx.Done():
		a.log.Warn("stop step deadline reached (continuing)",
			logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
	}
}

// recordRun is the per-run sink installed on every runner.
func (a *App) recordRun(rec runner.Record) {
	if a.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := a.store.AppendRun(ctx, storage.RunRecord{
			Task:      rec.Task,
			StartedAt: rec.StartedAt,
			TookMS:    rec.Duration.Milliseconds(),
			Outcome:   rec.Outcome,
			Reason:    rec.Reason,
			Error:     errString(rec.Err),
		})
		cancel()
		if err != nil {
			a.log.Warn("run record not persisted", logx.String("task", rec.Task), logx.Err(err))
		}
	}
	if rec.Outcome == "failed" && a.notifier != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		a.notifier.RunFailed(ctx, rec.Task, rec.Duration, rec.Err)
		cancel()
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// RunOnce starts the named task immediately and drives it to completion,
// bypassing the trigger evaluator. Used by the -run debug flag. The rest
// of the monitoring path stays live: termination markers and the duration
// budget work exactly as under the loop, and ctx cancellation turns into
// a stop request with the usual grace handling.
func (a *App) RunOnce(ctx context.Context, name string) error {
	var target *runner.Runner
	for _, r := range a.orch.Runners() {
		if r.Definition().Name == name {
			target = r
			break
		}
	}
	if target == nil {
		return fmt.Errorf("unknown task %q", name)
	}

	target.Start(time.Now(), trigger.ReasonManual)

	t := time.NewTicker(a.tick)
	defer t.Stop()
	for target.Active() {
		select {
		case <-ctx.Done():
			now := time.Now()
			target.RequestCancel(now, runner.CauseShutdown)
			target.AwaitStop(now.Add(a.grace))
			return nil
		case now := <-t.C:
			target.Tick(now, a.orch.ScanMarkers().Requested(name))
		}
	}
	return nil
}
