package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskherd/internal/app"
	"taskherd/internal/task"
	"taskherd/pkg/logx"
	"taskherd/pkg/sdnotify"
	"taskherd/tasks/command"
	"taskherd/tasks/heartbeat"
	"taskherd/tasks/netcheck"
)

func main() {
	var (
		cfgPath   string
		tasksRoot string
		runTask   string
	)
	flag.StringVar(&cfgPath, "config", "./config.json", "path to config (json or yaml)")
	flag.StringVar(&tasksRoot, "tasks", "", "tasks root directory (overrides config)")
	flag.StringVar(&runTask, "run", "", "run a single task immediately and exit (debug)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Static registration table: adding an entry point is New() + a line here.
	entries := func(log logx.Logger) task.Entrypoints {
		return task.Entrypoints{
			"heartbeat": heartbeat.New(log.With(logx.String("task", "heartbeat"))),
			"command":   command.New(log.With(logx.String("task", "command"))),
			"netcheck":  netcheck.New(log.With(logx.String("task", "netcheck"))),
		}
	}

	a, err := app.New(app.Options{
		ConfigPath: cfgPath,
		TasksRoot:  tasksRoot,
		Entries:    entries,
	})
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	if runTask != "" {
		if err := a.RunOnce(ctx, runTask); err != nil {
			fmt.Println("fatal:", err)
			os.Exit(1)
		}
		return
	}

	if err := a.Start(ctx); err != nil {
		fmt.Println("fatal start:", err)
		os.Exit(1)
	}
	sdnotify.Ready()
	go sdnotify.Watchdog(ctx)

	<-a.Done()
	sdnotify.Stopping()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 15*time.Second)
	_ = a.Stop(stopCtx)
	stopCancel()

	if err := a.Err(); err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
}
