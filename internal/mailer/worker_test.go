package mailer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

type chanSender struct {
	mu   sync.Mutex
	err  error
	done chan Digest
}

func (s *chanSender) Send(_ context.Context, d Digest) error {
	s.mu.Lock()
	err := s.err
	s.mu.Unlock()
	s.done <- d
	return err
}

func TestWorkerDelivers(t *testing.T) {
	q := NewMemoryQueue(4)
	sender := &chanSender{done: make(chan Digest, 4)}
	logger, _ := test.NewNullLogger()
	w := NewWorker(q, sender, 0, logger)

	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(finished)
	}()

	if err := q.Enqueue(ctx, Digest{ID: "one"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	select {
	case d := <-sender.done:
		if d.ID != "one" {
			t.Fatalf("delivered %q", d.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for delivery")
	}

	cancel()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestWorkerLogsFailedDelivery(t *testing.T) {
	q := NewMemoryQueue(1)
	sender := &chanSender{err: errors.New("smtp down"), done: make(chan Digest, 1)}
	logger, hook := test.NewNullLogger()
	w := NewWorker(q, sender, 100, logger)

	if err := q.Enqueue(context.Background(), Digest{ID: "x", RuleID: 3}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	d, err := q.Dequeue(context.Background())
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	w.deliver(context.Background(), d)

	entry := hook.LastEntry()
	if entry == nil || entry.Level != log.WarnLevel {
		t.Fatalf("expected warning, got %+v", entry)
	}
	if entry.Data["rule_id"] != uint(3) {
		t.Fatalf("rule_id = %v", entry.Data["rule_id"])
	}
}

func TestWorkerFinishesClosedQueue(t *testing.T) {
	q := NewMemoryQueue(1)
	sender := &chanSender{done: make(chan Digest, 3)}
	w := NewWorker(q, sender, 0, nil)

	finished := make(chan struct{})
	go func() {
		w.Run(context.Background())
		close(finished)
	}()
	for _, id := range []string{"a", "b", "c"} {
		if err := q.Enqueue(context.Background(), Digest{ID: id}); err != nil {
			t.Fatalf("enqueue %s: %v", id, err)
		}
	}
	q.Close()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after close")
	}
	if len(sender.done) != 3 || q.Len() != 0 {
		t.Fatalf("delivered %d, left %d", len(sender.done), q.Len())
	}
}
