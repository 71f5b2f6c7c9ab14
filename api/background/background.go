// Package background runs fire-and-forget tasks, such as sending emails,
// that must still complete before the server shuts down.
package background

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

type Background struct {
	log  logrus.FieldLogger
	wg   sync.WaitGroup
	mu   sync.Mutex
	done bool
}

func New(log logrus.FieldLogger) *Background {
	return &Background{log: log}
}

// Add starts fn on its own goroutine. Panics are recovered and logged. Tasks
// added after Shutdown are dropped.
func (b *Background) Add(fn func()) {
	b.mu.Lock()
	if b.done {
		b.mu.Unlock()
		b.log.Warn("background task dropped: shutting down")
		return
	}
	b.wg.Add(1)
	b.mu.Unlock()

	go func() {
		defer b.wg.Done()
		defer func() {
			if err := recover(); err != nil {
				b.log.WithField("panic", fmt.Sprint(err)).Error("background task panicked")
			}
		}()

		fn()
	}()
}

// Shutdown waits for the running tasks or for ctx to be done.
func (b *Background) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	b.done = true
	b.mu.Unlock()

	ch := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(ch)
	}()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
