package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"acdmx.com/internal/platform"
	"github.com/stretchr/testify/assert"
)

// flakySink 前 fails 次调用返回错误
type flakySink struct {
	fails int
	calls int
	got   []uint64
}

func (s *flakySink) Name() string { return "flaky" }

func (s *flakySink) Handle(_ context.Context, ev Event) error {
	s.calls++
	if s.fails > 0 {
		s.fails--
		return errors.New("boom")
	}
	s.got = append(s.got, ev.Seq)
	return nil
}

type orderedFlakySink struct{ flakySink }

func (s *orderedFlakySink) Ordered() {}

func fastRetry(t *testing.T) {
	base, limit := retryBase, retryMax
	retryBase, retryMax = time.Millisecond, 2*time.Millisecond
	t.Cleanup(func() { retryBase, retryMax = base, limit })
}

func feed(seqs ...uint64) <-chan Event {
	ch := make(chan Event, len(seqs))
	for _, s := range seqs {
		ch <- Event{Seq: s, Event: platform.Event{Type: platform.EvUserRegistered}}
	}
	close(ch)
	return ch
}

func TestDispatch_Retry(t *testing.T) {
	fastRetry(t)
	tests := []struct {
		name      string
		ordered   bool
		fails     int
		wantCalls int
		wantGot   []uint64
	}{
		{"有序sink重试后成功", true, 2, 4, []uint64{1, 2}},
		{"有序sink重试用完", true, 100, 2 * retryAttempts, nil},
		{"普通sink不重试", false, 1, 2, []uint64{2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				s    Sink
				base *flakySink
			)
			if tt.ordered {
				o := &orderedFlakySink{flakySink{fails: tt.fails}}
				s, base = o, &o.flakySink
			} else {
				f := &flakySink{fails: tt.fails}
				s, base = f, f
			}
			Dispatch(context.Background(), feed(1, 2), s)
			assert.Equal(t, tt.wantCalls, base.calls)
			assert.Equal(t, tt.wantGot, base.got)
		})
	}
}

func TestDispatch_RetryStopsOnCancel(t *testing.T) {
	base := retryBase
	retryBase = time.Hour
	t.Cleanup(func() { retryBase = base })

	ctx, cancel := context.WithCancel(context.Background())
	s := &orderedFlakySink{flakySink{fails: 1}}
	done := make(chan struct{})
	go func() {
		Dispatch(ctx, feed(1), s)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatch did not stop")
	}
	assert.Equal(t, 1, s.calls)
}
