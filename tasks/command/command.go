// Package command wraps an external process as a task. The stop signal
// maps to SIGTERM; a process that ignores it is killed after kill_grace,
// since unlike goroutines a child process CAN be reclaimed.
package command

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"taskherd/internal/task"
	logx "taskherd/pkg/logx"
)

type config struct {
	Argv      []string          `json:"argv"`
	Dir       string            `json:"dir,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
	KillGrace float64           `json:"kill_grace,omitempty"` // seconds, default 5
}

func New(log logx.Logger) task.Entrypoint {
	return func(stop *task.StopSignal, raw task.Config) task.Outcome {
		var c config
		if err := task.DecodeConfig(raw, &c); err != nil {
			return task.Failf("command config: %v", err)
		}
		if len(c.Argv) == 0 {
			return task.Failf("command config: argv is required")
		}
		killGrace := 5 * time.Second
		if c.KillGrace > 0 {
			killGrace = time.Duration(c.KillGrace * float64(time.Second))
		}

		cmd := exec.Command(c.Argv[0], c.Argv[1:]...)
		cmd.Dir = c.Dir
		cmd.Env = os.Environ()
		for k, v := range c.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}

		if err := cmd.Start(); err != nil {
			return task.Failf("command start: %v", err)
		}
		log.Info("process started",
			logx.String("argv0", c.Argv[0]), logx.Int("pid", cmd.Process.Pid))

		waitCh := make(chan error, 1)
		go func() { waitCh <- cmd.Wait() }()

		select {
		case err := <-waitCh:
			if err != nil {
				return task.Failed(fmt.Errorf("command %s: %w", c.Argv[0], err))
			}
			return task.Completed()
		case <-stop.Done():
		}

		// Cooperative path first.
		if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
			<-waitCh
			return task.Cancelled()
		}
		select {
		case <-waitCh:
		case <-time.After(killGrace):
			log.Warn("process ignored SIGTERM, killing",
				logx.Int("pid", cmd.Process.Pid), logx.Duration("kill_grace", killGrace))
			_ = cmd.Process.Kill()
			<-waitCh
		}
		// Exit status after a requested stop is noise, not failure.
		return task.Cancelled()
	}
}
