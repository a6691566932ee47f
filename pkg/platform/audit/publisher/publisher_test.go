package publisher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "docverify/pkg/platform/audit"
	"docverify/pkg/platform/audit/store/memory"
)

func TestPublisher_SyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	err := pub.Emit(context.Background(), audit.Event{
		Subject: "user-1",
		Action:  string(audit.EventDocumentVerified),
	})
	require.NoError(t, err)

	events, err := pub.List(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventDocumentVerified), events[0].Action)
	assert.Equal(t, audit.CategoryCompliance, events[0].Category)
}

func TestPublisher_AsyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(10))

	err := pub.Emit(context.Background(), audit.Event{
		Subject: "user-1",
		Action:  string(audit.EventDocumentRejected),
	})
	require.NoError(t, err)
	require.NoError(t, pub.Close())

	events, err := pub.List(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventDocumentRejected), events[0].Action)
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(100))

	for range 10 {
		err := pub.Emit(context.Background(), audit.Event{
			Subject: "user-1",
			Action:  string(audit.EventDocumentVerified),
		})
		require.NoError(t, err)
	}

	pub.Close()

	events, err := store.ListBySubject(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Len(t, events, 10, "all events should be drained on close")
}

func TestPublisher_BufferFull_DropsEvent(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(1))
	defer pub.Close()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := pub.Emit(context.Background(), audit.Event{
				Subject: "user-1",
				Action:  string(audit.EventDocumentVerified),
			})
			if err != nil {
				assert.ErrorIs(t, err, ErrBufferFull)
			}
		}()
	}
	wg.Wait()
}

func TestPublisher_EmitAfterClose(t *testing.T) {
	pub := NewPublisher(memory.NewInMemoryStore(), WithAsyncBuffer(1))
	require.NoError(t, pub.Close())
	require.NoError(t, pub.Close())

	err := pub.Emit(context.Background(), audit.Event{Action: string(audit.EventDocumentVerified)})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPublisher_SetsTimestamp(t *testing.T) {
	fixed := time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithClock(func() time.Time { return fixed }))
	defer pub.Close()

	require.NoError(t, pub.Emit(context.Background(), audit.Event{
		Subject: "user-1",
		Action:  string(audit.EventDocumentVerified),
	}))

	events, err := pub.List(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, fixed, events[0].Timestamp)
}

func TestPublisher_PreservesExistingTimestamp(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	customTime := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, pub.Emit(context.Background(), audit.Event{
		Subject:   "user-1",
		Action:    string(audit.EventDocumentVerified),
		Timestamp: customTime,
	}))

	events, err := pub.List(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, customTime, events[0].Timestamp)
}

func TestPublisher_ContextCancellation(t *testing.T) {
	block := make(chan struct{})
	store := &blockingStore{release: block}
	pub := NewPublisher(store, WithAsyncBuffer(1))
	defer func() {
		close(block)
		pub.Close()
	}()

	// The worker picks up the first event and blocks; the second fills the buffer.
	require.NoError(t, pub.Emit(context.Background(), audit.Event{Action: "first"}))
	require.Eventually(t, func() bool { return store.started() }, time.Second, 5*time.Millisecond)
	require.NoError(t, pub.Emit(context.Background(), audit.Event{Action: "second"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := pub.Emit(ctx, audit.Event{Action: "third"})
	assert.True(t, errors.Is(err, context.Canceled), "expected context.Canceled, got: %v", err)
}

func TestPublisher_ListUnsupported(t *testing.T) {
	pub := NewPublisher(&blockingStore{})
	_, err := pub.List(context.Background(), "user-1")
	assert.ErrorIs(t, err, ErrListUnsupported)
}

type blockingStore struct {
	release chan struct{}
	mu      sync.Mutex
	begun   bool
}

func (b *blockingStore) Append(context.Context, audit.Event) error {
	b.mu.Lock()
	b.begun = true
	b.mu.Unlock()
	if b.release != nil {
		<-b.release
	}
	return nil
}

func (b *blockingStore) started() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.begun
}
