package supervisor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	logx "taskherd/pkg/logx"
)

func TestSupervisorStopWaits(t *testing.T) {
	t.Parallel()
	s := New(context.Background(), WithLogger(logx.Nop()))

	ran := make(chan struct{})
	s.Go0("worker", func(ctx context.Context) {
		<-ctx.Done()
		close(ran)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop error: %v", err)
	}
	select {
	case <-ran:
	default:
		t.Fatal("Stop returned before the goroutine exited")
	}
}

func TestSupervisorCancelOnError(t *testing.T) {
	t.Parallel()
	s := New(context.Background(), WithCancelOnError(true))

	boom := errors.New("boom")
	s.Go("failing", func(ctx context.Context) error { return boom })

	select {
	case <-s.Context().Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context not cancelled after error")
	}
	if !errors.Is(s.Err(), boom) {
		t.Fatalf("Err() = %v, want %v", s.Err(), boom)
	}
}

func TestSupervisorGoRestartRecovers(t *testing.T) {
	t.Parallel()
	s := New(context.Background(), WithLogger(logx.Nop()))

	var mu sync.Mutex
	runs := 0
	healthy := make(chan struct{})
	s.GoRestart("flaky", func(ctx context.Context) error {
		mu.Lock()
		runs++
		n := runs
		mu.Unlock()
		if n < 3 {
			return errors.New("transient")
		}
		close(healthy)
		<-ctx.Done()
		return nil
	}, WithRestartBackoff(time.Millisecond, 5*time.Millisecond), WithMaxRestarts(10))

	select {
	case <-healthy:
	case <-time.After(2 * time.Second):
		t.Fatal("loop was not restarted after transient errors")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop error: %v", err)
	}
}

func TestSupervisorGoRestartGivesUp(t *testing.T) {
	t.Parallel()
	s := New(context.Background(), WithCancelOnError(true))

	s.GoRestart("hopeless", func(ctx context.Context) error {
		return errors.New("always")
	}, WithRestartBackoff(time.Millisecond, time.Millisecond), WithMaxRestarts(2))

	select {
	case <-s.Context().Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context not cancelled after restart budget was exhausted")
	}
	if s.Err() == nil {
		t.Fatal("give-up not surfaced as error")
	}
}

func TestSupervisorCounters(t *testing.T) {
	t.Parallel()
	s := New(context.Background())

	release := make(chan struct{})
	s.Go0("held", func(ctx context.Context) { <-release })

	if active, started := s.Counters(); active != 1 || started != 1 {
		t.Fatalf("Counters() = (%d, %d), want (1, 1)", active, started)
	}

	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop error: %v", err)
	}
	if active, started := s.Counters(); active != 0 || started != 1 {
		t.Fatalf("Counters() after stop = (%d, %d), want (0, 1)", active, started)
	}
}

func TestSupervisorRecoversPanic(t *testing.T) {
	t.Parallel()
	s := New(context.Background(), WithCancelOnError(true))

	s.Go0("panicky", func(ctx context.Context) { panic("oops") })

	select {
	case <-s.Context().Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context not cancelled after panic")
	}
	if s.Err() == nil {
		t.Fatal("panic not surfaced as error")
	}
}
