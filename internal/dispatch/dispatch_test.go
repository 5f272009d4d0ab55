package dispatch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postpilot/postpilot/internal/channel"
	"github.com/postpilot/postpilot/internal/recordstore"
)

func TestSubmitRunsTaskDetached(t *testing.T) {
	d := New(Config{Workers: 2}, nil, nil)
	defer d.Stop()

	done := make(chan string, 1)
	id := d.Submit(Task{
		Kind: "create_post",
		Run: func(context.Context) error {
			done <- "ran"
			return nil
		},
	})
	assert.NotEmpty(t, id)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task never ran")
	}
}

func TestFailedTaskNotifiesUser(t *testing.T) {
	fake := &channel.Fake{}
	d := New(Config{Workers: 1}, nil, fake)

	d.Submit(Task{
		Kind:     "create_post",
		Notify:   "+15551234567",
		FailText: "Could not create your post.",
		Run:      func(context.Context) error { return errors.New("llm down") },
	})
	d.Stop()

	msgs := fake.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "+15551234567", msgs[0].To)
	assert.Equal(t, "Could not create your post.", msgs[0].Body)
}

func TestPanickingTaskDoesNotKillWorker(t *testing.T) {
	fake := &channel.Fake{}
	d := New(Config{Workers: 1}, nil, fake)

	var ran atomic.Bool
	d.Submit(Task{
		Kind:   "publish_sweep",
		Notify: "+1555",
		Run:    func(context.Context) error { panic("boom") },
	})
	d.Submit(Task{
		Kind: "publish_sweep",
		Run: func(context.Context) error {
			ran.Store(true)
			return nil
		},
	})
	d.Stop()

	assert.True(t, ran.Load(), "worker survives a panicking task")
	msgs := fake.Messages()
	require.Len(t, msgs, 1, "panic is reported to the user like any failure")
}

func TestJobRecordLifecycle(t *testing.T) {
	mem := recordstore.NewMemory()
	tables := &recordstore.Tables{C: mem}
	d := New(Config{Workers: 1}, tables, nil)

	d.Submit(Task{
		Kind:     "create_post",
		ClientID: "recClient1",
		Run:      func(context.Context) error { return nil },
	})
	d.Submit(Task{
		Kind: "create_post",
		Run:  func(context.Context) error { return errors.New("nope") },
	})
	d.Stop()

	jobs, err := mem.List(context.Background(), recordstore.TableJobs, recordstore.Query{})
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	statuses := map[string]bool{}
	for _, job := range jobs {
		statuses[job.Fields.Str("Status", "")] = true
		assert.Equal(t, "create_post", job.Fields.Str("Job Type", ""))
	}
	assert.True(t, statuses["Completed"])
	assert.True(t, statuses["Failed"])
}

func TestFullQueueStillRuns(t *testing.T) {
	d := New(Config{Workers: 1, QueueSize: 1}, nil, nil)
	defer d.Stop()

	block := make(chan struct{})
	var count atomic.Int32

	// Occupy the single worker, then fill the queue past capacity.
	d.Submit(Task{Kind: "slow", Run: func(context.Context) error { <-block; return nil }})
	for i := 0; i < 3; i++ {
		d.Submit(Task{Kind: "fast", Run: func(context.Context) error {
			count.Add(1)
			return nil
		}})
	}
	close(block)

	assert.Eventually(t, func() bool { return count.Load() == 3 }, 2*time.Second, 10*time.Millisecond)
}
