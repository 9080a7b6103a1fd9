package trace

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Heartbeat periodically emits heartbeat events while a long-running
// operation (such as a benchmark loop) is in progress.
type Heartbeat struct {
	tracer   Tracer
	interval time.Duration
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// StartHeartbeat starts a heartbeat goroutine that runs until Stop is called
// or ctx is done. It returns nil when tracing is disabled or interval <= 0.
func StartHeartbeat(ctx context.Context, tracer Tracer, interval time.Duration) *Heartbeat {
	if tracer == nil || !tracer.Enabled() || interval <= 0 {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	h := &Heartbeat{tracer: tracer, interval: interval, cancel: cancel}
	h.wg.Add(1)
	go h.run(ctx)
	return h
}

func (h *Heartbeat) run(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	var beats uint64
	for {
		select {
		case <-ticker.C:
			beats++
			h.tracer.Emit(&Event{
				Time:   time.Now(),
				Kind:   KindHeartbeat,
				Scope:  ScopeProcess,
				Name:   "heartbeat",
				Detail: fmt.Sprintf("#%d", beats),
			})
		case <-ctx.Done():
			return
		}
	}
}

// Stop stops the heartbeat goroutine and waits for it to exit. Safe to call
// on a nil Heartbeat and more than once.
func (h *Heartbeat) Stop() {
	if h == nil {
		return
	}
	h.stopOnce.Do(func() {
		h.cancel()
		h.wg.Wait()
	})
}
