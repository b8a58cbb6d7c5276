// Package heartbeat is the smallest useful builtin: it logs a beat on an
// interval until told to stop. Handy as a liveness canary and as the
// reference for writing cooperative entry points.
package heartbeat

import (
	"time"

	"taskherd/internal/task"
	logx "taskherd/pkg/logx"
)

type config struct {
	Interval float64 `json:"interval,omitempty"` // seconds, default 60
	Message  string  `json:"message,omitempty"`
}

func New(log logx.Logger) task.Entrypoint {
	return func(stop *task.StopSignal, raw task.Config) task.Outcome {
		var c config
		if err := task.DecodeConfig(raw, &c); err != nil {
			return task.Failf("heartbeat config: %v", err)
		}
		interval := 60 * time.Second
		if c.Interval > 0 {
			interval = time.Duration(c.Interval * float64(time.Second))
		}
		msg := c.Message
		if msg == "" {
			msg = "heartbeat"
		}

		t := time.NewTicker(interval)
		defer t.Stop()
		n := 0
		for {
			select {
			case <-stop.Done():
				return task.Cancelled()
			case <-t.C:
				n++
				log.Info(msg, logx.Int("beat", n))
			}
		}
	}
}
