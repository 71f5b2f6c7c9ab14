package background

import (
	"context"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestShutdownWaits(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	bg := New(log)

	var n atomic.Int32
	for i := 0; i < 5; i++ {
		bg.Add(func() {
			time.Sleep(10 * time.Millisecond)
			n.Add(1)
		})
	}
	bg.Add(func() { panic("recovered") })

	if err := bg.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := n.Load(); got != 5 {
		t.Fatalf("expected 5 completed tasks, got %d", got)
	}

	bg.Add(func() { n.Add(1) })
	time.Sleep(5 * time.Millisecond)
	if got := n.Load(); got != 5 {
		t.Fatal("task added after shutdown was executed")
	}
}

func TestShutdownTimeout(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	bg := New(log)

	release := make(chan struct{})
	bg.Add(func() { <-release })
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := bg.Shutdown(ctx); err == nil {
		t.Fatal("expected shutdown to time out")
	}
}
