// Package netcheck measures connectivity with speedtest.net: latency to
// the nearest servers, optionally a full download/upload pass. Results
// go to the log; the task carries no state between runs.
package netcheck

import (
	"context"
	"errors"
	"sort"
	"time"

	st "github.com/showwin/speedtest-go/speedtest"

	"taskherd/internal/task"
	logx "taskherd/pkg/logx"
)

type config struct {
	Servers    int     `json:"servers,omitempty"`  // candidates to ping, default 3
	PingOnly   bool    `json:"ping_only,omitempty"`
	SavingMode bool    `json:"saving_mode,omitempty"`
	Timeout    float64 `json:"timeout,omitempty"` // seconds, default 120
}

func New(log logx.Logger) task.Entrypoint {
	return func(stop *task.StopSignal, raw task.Config) task.Outcome {
		var c config
		if err := task.DecodeConfig(raw, &c); err != nil {
			return task.Failf("netcheck config: %v", err)
		}
		if c.Servers <= 0 {
			c.Servers = 3
		}
		timeout := 120 * time.Second
		if c.Timeout > 0 {
			timeout = time.Duration(c.Timeout * float64(time.Second))
		}

		// The library is context-driven; bridge the stop signal into a
		// cancellation so network phases unwind promptly.
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		go func() {
			select {
			case <-stop.Done():
				cancel()
			case <-ctx.Done():
			}
		}()

		out, err := measure(ctx, c, log)
		switch {
		case stop.IsSet():
			return task.Cancelled()
		case err != nil:
			return task.Failed(err)
		default:
			log.Info("netcheck done",
				logx.String("server", out.server),
				logx.Float64("ping_ms", out.pingMS),
				logx.Float64("down_mbps", out.downMbps),
				logx.Float64("up_mbps", out.upMbps))
			return task.Completed()
		}
	}
}

type result struct {
	server   string
	pingMS   float64
	downMbps float64
	upMbps   float64
}

func measure(ctx context.Context, c config, log logx.Logger) (*result, error) {
	stc := st.New(st.WithUserConfig(&st.UserConfig{SavingMode: c.SavingMode}))
	defer func() {
		stc.Snapshots().Clean()
		stc.Reset()
	}()

	servers, err := stc.FetchServerListContext(ctx)
	if err != nil {
		return nil, err
	}
	if a := servers.Available(); a != nil {
		servers = *a
	}
	if len(servers) == 0 {
		return nil, errors.New("no servers available")
	}

	sort.Slice(servers, func(i, j int) bool { return servers[i].Distance < servers[j].Distance })
	if len(servers) > c.Servers {
		servers = servers[:c.Servers]
	}

	var best *st.Server
	for _, s := range servers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := s.PingTestContext(ctx, nil); err != nil {
			log.Debug("ping test failed", logx.String("server", s.Sponsor), logx.Err(err))
			continue
		}
		if best == nil || s.Latency < best.Latency {
			best = s
		}
	}
	if best == nil {
		return nil, errors.New("all latency tests failed")
	}

	out := &result{
		server: best.Sponsor + " (" + best.Country + ")",
		pingMS: float64(best.Latency.Milliseconds()),
	}
	if c.PingOnly {
		return out, nil
	}

	if err := best.DownloadTestContext(ctx); err != nil {
		return nil, err
	}
	out.downMbps = best.DLSpeed.Mbps()

	if err := best.UploadTestContext(ctx); err != nil {
		return nil, err
	}
	out.upMbps = best.ULSpeed.Mbps()
	return out, nil
}
