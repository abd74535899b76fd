package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fjod/storefront-cart/internal/domain"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// fakeReader hands out queued messages and then blocks until ctx is done.
type fakeReader struct {
	mu        sync.Mutex
	messages  []kafka.Message
	errs      []error
	committed []kafka.Message
	closed    bool
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		f.mu.Unlock()
		return kafka.Message{}, err
	}
	if len(f.messages) > 0 {
		m := f.messages[0]
		f.messages = f.messages[1:]
		f.mu.Unlock()
		return m, nil
	}
	f.mu.Unlock()

	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed = append(f.committed, msgs...)
	return nil
}

func (f *fakeReader) commits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.committed)
}

func (f *fakeReader) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// recordingClearer fails the first failures calls with err, or every call
// when failures is negative.
type recordingClearer struct {
	mu       sync.Mutex
	cleared  []string
	err      error
	failures int
}

func (r *recordingClearer) ClearCart(_ context.Context, userID string) (*domain.CartView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleared = append(r.cleared, userID)
	if r.failures != 0 {
		if r.failures > 0 {
			r.failures--
		}
		return nil, r.err
	}
	return &domain.CartView{UserID: userID, Items: []domain.ItemView{}}, nil
}

func (r *recordingClearer) users() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.cleared...)
}

func msg(value string) kafka.Message {
	return kafka.Message{Value: []byte(value)}
}

func TestPoll_Events(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		cleared []string
	}{
		{"order placed", `{"event":"order_placed","user_id":"u1"}`, []string{"u1"}},
		{"no event type", `{"user_id":"u2"}`, []string{"u2"}},
		{"other event", `{"event":"order_cancelled","user_id":"u3"}`, nil},
		{"missing user", `{"event":"order_placed"}`, nil},
		{"malformed", `{not json`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := &fakeReader{messages: []kafka.Message{msg(tt.value)}}
			carts := &recordingClearer{}
			p := NewPoller(reader, carts)

			require.NoError(t, p.poll(context.Background()))
			assert.Equal(t, tt.cleared, carts.users())
			assert.Equal(t, 1, reader.commits(), "handled and skipped events are both committed")
		})
	}
}

func TestPoll_FailedClearIsRetriedBeforeCommit(t *testing.T) {
	reader := &fakeReader{messages: []kafka.Message{msg(`{"user_id":"u1"}`)}}
	carts := &recordingClearer{err: errors.New("store down"), failures: 2}
	p := NewPoller(reader, carts)
	p.backoff = time.Millisecond

	require.NoError(t, p.poll(context.Background()))
	assert.Equal(t, []string{"u1", "u1", "u1"}, carts.users())
	assert.Equal(t, 1, reader.commits())
}

func TestPoll_CancelledWhileClearFailsLeavesOffsetUncommitted(t *testing.T) {
	reader := &fakeReader{messages: []kafka.Message{msg(`{"user_id":"u1"}`)}}
	carts := &recordingClearer{err: errors.New("store down"), failures: -1}
	p := NewPoller(reader, carts)
	p.backoff = time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := p.poll(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotEmpty(t, carts.users())
	assert.Zero(t, reader.commits())
}

func TestRun_ProcessesUntilCancelled(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	reader := &fakeReader{
		errs: []error{errors.New("broker not available")},
		messages: []kafka.Message{
			msg(`{"event":"order_placed","user_id":"u1"}`),
			msg(`{"event":"order_placed","user_id":"u2"}`),
		},
	}
	carts := &recordingClearer{}
	p := NewPoller(reader, carts)
	p.backoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return len(carts.users()) == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
	p.Close()

	assert.Equal(t, []string{"u1", "u2"}, carts.users())
	assert.Equal(t, 2, reader.commits())
	assert.True(t, reader.closed)
}
