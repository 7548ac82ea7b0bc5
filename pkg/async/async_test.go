package async

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/folioworks/folio/pkg/observability"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func TestGo_RunsTask(t *testing.T) {
	done := make(chan struct{})
	Go(context.Background(), testLogger(), time.Second, "test", func(ctx context.Context) error {
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run")
	}
}

func TestGo_SurvivesParentCancellation(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	Go(parent, testLogger(), time.Second, "test", func(ctx context.Context) error {
		done <- ctx.Err()
		return nil
	})

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("task context already cancelled: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run")
	}
}

func TestGo_RecoversPanic(t *testing.T) {
	done := make(chan struct{})
	Go(context.Background(), testLogger(), time.Second, "test", func(ctx context.Context) error {
		defer close(done)
		panic("boom")
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run")
	}
	// Give the deferred recovery a moment; a missed recover would have
	// crashed the whole test binary.
	time.Sleep(10 * time.Millisecond)
}

func TestGo_LogsErrorWithoutPropagating(t *testing.T) {
	done := make(chan struct{})
	Go(context.Background(), testLogger(), time.Second, "test", func(ctx context.Context) error {
		defer close(done)
		return errors.New("transient")
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run")
	}
}

func TestGo_ZeroTimeoutGetsDefault(t *testing.T) {
	deadlines := make(chan time.Time, 1)
	Go(context.Background(), testLogger(), 0, "test", func(ctx context.Context) error {
		dl, ok := ctx.Deadline()
		if !ok {
			t.Error("task context has no deadline")
		}
		deadlines <- dl
		return nil
	})

	select {
	case dl := <-deadlines:
		if until := time.Until(dl); until > DefaultTimeout {
			t.Errorf("deadline %v exceeds default timeout", until)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run")
	}
}
