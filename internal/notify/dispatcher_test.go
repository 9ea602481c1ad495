package notify

import (
	"bytes"
	"context"
	"errors"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherRunsJobs(t *testing.T) {
	d := NewDispatcher(2, 8, log.New(bytes.NewBuffer(nil), "", 0))
	d.Start()
	defer d.Stop()

	var (
		mu  sync.Mutex
		ran []string
	)
	done := make(chan struct{})
	for _, name := range []string{"a", "b", "c"} {
		name := name
		ok := d.Submit(Job{Name: name, Run: func(ctx context.Context) error {
			mu.Lock()
			ran = append(ran, name)
			if len(ran) == 3 {
				close(done)
			}
			mu.Unlock()
			return nil
		}})
		require.True(t, ok)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("jobs did not run")
	}
	mu.Lock()
	assert.Len(t, ran, 3)
	mu.Unlock()
}

func TestDispatcherLogsErrorsWithoutPropagating(t *testing.T) {
	var buf bytes.Buffer
	d := NewDispatcher(1, 4, log.New(&buf, "", 0))
	d.Start()

	done := make(chan struct{})
	d.Submit(Job{Name: "failing", Run: func(ctx context.Context) error {
		defer close(done)
		return errors.New("push rejected")
	}})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}
	d.Stop()

	assert.Contains(t, buf.String(), "failing")
	assert.Contains(t, buf.String(), "push rejected")
}

func TestDispatcherRecoversFromPanic(t *testing.T) {
	var buf bytes.Buffer
	d := NewDispatcher(1, 4, log.New(&buf, "", 0))
	d.Start()

	done := make(chan struct{})
	d.Submit(Job{Name: "panicky", Run: func(ctx context.Context) error {
		defer close(done)
		panic("boom")
	}})

	<-done
	// Submit another to prove the worker survived.
	ok := make(chan struct{})
	d.Submit(Job{Name: "after", Run: func(ctx context.Context) error {
		close(ok)
		return nil
	}})

	select {
	case <-ok:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive the panic")
	}
	d.Stop()
	assert.Contains(t, buf.String(), "panicked")
}

func TestDispatcherDropsOnFullQueue(t *testing.T) {
	var buf bytes.Buffer
	d := NewDispatcher(1, 1, log.New(&buf, "", 0))
	// Not started: nothing drains the queue.

	block := func(ctx context.Context) error { return nil }
	require.True(t, d.Submit(Job{Name: "first", Run: block}))
	assert.False(t, d.Submit(Job{Name: "second", Run: block}))
	assert.Contains(t, buf.String(), "dropping")
	assert.Equal(t, 1, d.QueueLength())

	d.Stop()
}
