package loop_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hernuell/bellhop/loop"
)

func ticker(count *atomic.Int64, d time.Duration) loop.Func {
	return func(ctx context.Context) (time.Duration, error) {
		count.Add(1)
		return d, nil
	}
}

func TestSupersede(t *testing.T) {
	m := loop.NewManager(nil)
	ctx := context.Background()
	var a, b atomic.Int64
	m.Start(ctx, "u", "macarena", ticker(&a, 5*time.Millisecond))
	time.Sleep(25 * time.Millisecond)
	if a.Load() == 0 {
		t.Fatal("first loop never ran")
	}
	m.Start(ctx, "u", "russian", ticker(&b, 5*time.Millisecond))
	mark := a.Load()
	time.Sleep(50 * time.Millisecond)
	if got := a.Load(); got != mark {
		t.Errorf("superseded loop kept sending: %d then %d", mark, got)
	}
	if b.Load() == 0 {
		t.Error("replacement loop never ran")
	}
	if name, ok := m.Active("u"); !ok || name != "russian" {
		t.Errorf("wrong active loop: %q, %t", name, ok)
	}
	before := b.Load()
	time.Sleep(25 * time.Millisecond)
	if b.Load() == before {
		t.Error("replacement loop stopped on its own")
	}
}

func TestStop(t *testing.T) {
	m := loop.NewManager(nil)
	var n atomic.Int64
	m.Start(context.Background(), "u", "macarena", ticker(&n, 5*time.Millisecond))
	time.Sleep(25 * time.Millisecond)
	if !m.Stop("u") {
		t.Error("stop didn't report a running loop")
	}
	mark := n.Load()
	time.Sleep(50 * time.Millisecond)
	if got := n.Load(); got != mark {
		t.Errorf("stopped loop kept sending: %d then %d", mark, got)
	}
	if _, ok := m.Active("u"); ok {
		t.Error("loop still active after stop")
	}
	if m.Stop("u") {
		t.Error("second stop reported a running loop")
	}
	if m.Stop("nobody") {
		t.Error("stop for unknown user reported a running loop")
	}
}

func TestLoopEndsOnErrStop(t *testing.T) {
	m := loop.NewManager(nil)
	var n atomic.Int64
	m.Start(context.Background(), "u", "macarena", func(ctx context.Context) (time.Duration, error) {
		if n.Add(1) >= 2 {
			return 0, loop.ErrStop
		}
		return time.Millisecond, nil
	})
	time.Sleep(50 * time.Millisecond)
	if got := n.Load(); got != 2 {
		t.Errorf("loop didn't end on ErrStop: %d cycles", got)
	}
	if _, ok := m.Active("u"); ok {
		t.Error("ended loop still registered")
	}
}

func TestLoopContinuesOnOtherErrors(t *testing.T) {
	m := loop.NewManager(nil)
	var n atomic.Int64
	m.Start(context.Background(), "u", "macarena", func(ctx context.Context) (time.Duration, error) {
		n.Add(1)
		return time.Millisecond, context.DeadlineExceeded
	})
	time.Sleep(30 * time.Millisecond)
	if n.Load() < 2 {
		t.Error("loop stopped on a non-terminal error")
	}
	m.Stop("u")
}

func TestBroadcastReplace(t *testing.T) {
	b := loop.NewBroadcast(nil)
	var mu sync.Mutex
	var sent []string
	send := func(ctx context.Context, text string) error {
		mu.Lock()
		defer mu.Unlock()
		sent = append(sent, text)
		return nil
	}
	ctx := context.Background()
	b.Configure(ctx, 10*time.Millisecond, "Hello", send)
	time.Sleep(35 * time.Millisecond)
	b.Configure(ctx, 5*time.Millisecond, "World", send)
	time.Sleep(5 * time.Millisecond)
	mu.Lock()
	split := len(sent)
	mu.Unlock()
	time.Sleep(40 * time.Millisecond)
	if !b.Cancel() {
		t.Error("cancel didn't report a running loop")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(sent) == 0 || sent[0] != "Hello" {
		t.Fatalf("first loop never sent: %v", sent)
	}
	for _, s := range sent[split:] {
		if s == "Hello" {
			t.Errorf("replaced loop kept sending: %v", sent)
			break
		}
	}
	worlds := 0
	for _, s := range sent {
		if s == "World" {
			worlds++
		}
	}
	if worlds < 2 {
		t.Errorf("replacement loop barely ran: %v", sent)
	}
}

func TestBroadcastCancelIdempotent(t *testing.T) {
	b := loop.NewBroadcast(nil)
	if b.Cancel() {
		t.Error("cancel with no loop reported one")
	}
	b.Configure(context.Background(), time.Millisecond, "x", func(ctx context.Context, text string) error { return nil })
	if !b.Cancel() {
		t.Error("cancel didn't report the loop")
	}
	if b.Cancel() {
		t.Error("second cancel reported a loop")
	}
}

func TestAmbientSurvivesErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var n atomic.Int64
	done := make(chan struct{})
	go func() {
		defer close(done)
		loop.Ambient(ctx, nil, func(ctx context.Context) (time.Duration, error) {
			if n.Add(1) == 1 {
				return 0, context.DeadlineExceeded
			}
			return time.Millisecond, nil
		})
	}()
	// The first cycle fails. The loop must not return; it backs off and
	// waits, and only cancellation may end it.
	time.Sleep(20 * time.Millisecond)
	if n.Load() < 1 {
		t.Error("ambient loop never ran")
	}
	select {
	case <-done:
		t.Fatal("ambient loop returned after an error")
	default:
	}
	cancel()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Error("ambient loop didn't exit on cancellation")
	}
}
