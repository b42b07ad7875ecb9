package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"kama_chat_client/internal/model"
)

// recv 在超时内读取一个值
func recv(t *testing.T, sub *Subscription) ([]model.ChatMessage, bool) {
	t.Helper()
	select {
	case list, ok := <-sub.C:
		return list, ok
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for stream value")
		return nil, false
	}
}

func TestStore_SubscribeReplaysLatest(t *testing.T) {
	req := require.New(t)
	store := NewStore()
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	// Given a room that already holds one message
	req.True(store.Apply("r1", textMsg("m1", 0, at, "hi")))

	// When subscribing afterwards
	sub := store.Subscribe("r1")
	defer store.Unsubscribe(sub)

	// Then the current value arrives first
	list, ok := recv(t, sub)
	req.True(ok)
	req.Len(list, 1)

	// And every later update follows
	req.True(store.Apply("r1", textMsg("m2", 0, at.Add(time.Second), "yo")))
	list, ok = recv(t, sub)
	req.True(ok)
	req.Len(list, 2)
}

func TestStore_NewRoomReplaysEmptyList(t *testing.T) {
	req := require.New(t)
	store := NewStore()

	sub := store.Subscribe("r1")
	defer store.Unsubscribe(sub)

	list, ok := recv(t, sub)
	req.True(ok)
	req.Empty(list)
	req.Equal([]string{"r1"}, store.Rooms())
}

func TestStore_DuplicateDoesNotPublish(t *testing.T) {
	req := require.New(t)
	store := NewStore()
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	m := textMsg("m1", 0, at, "hi")

	sub := store.Subscribe("r1")
	defer store.Unsubscribe(sub)
	_, _ = recv(t, sub)

	req.True(store.Apply("r1", m))
	req.False(store.Apply("r1", m))
	req.True(store.Apply("r1", textMsg("m2", 0, at, "next")))

	first, _ := recv(t, sub)
	second, _ := recv(t, sub)
	req.Len(first, 1)
	req.Len(second, 2)
}

func TestStore_DiscardCompletesAfterQueuedValues(t *testing.T) {
	req := require.New(t)
	store := NewStore()
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	sub := store.Subscribe("r1")
	req.True(store.Apply("r1", textMsg("m1", 0, at, "hi")))

	// When the room is discarded before the subscriber reads anything
	store.Discard("r1")

	// Then it still receives what was queued, then completion
	list, ok := recv(t, sub)
	req.True(ok)
	req.Empty(list)
	list, ok = recv(t, sub)
	req.True(ok)
	req.Len(list, 1)
	_, ok = recv(t, sub)
	req.False(ok)

	req.Nil(store.Snapshot("r1"))
	req.Empty(store.Rooms())
}

func TestStore_ApplyToDiscardedStreamIsIgnored(t *testing.T) {
	req := require.New(t)
	store := NewStore()
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	old := store.GetOrCreate("r1")
	store.Discard("r1")

	req.False(old.Apply(textMsg("m1", 0, at, "late")))
	req.Empty(store.Rooms())
}

func TestStore_UnsubscribeClosesChannel(t *testing.T) {
	req := require.New(t)
	store := NewStore()
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	sub := store.Subscribe("r1")
	store.Unsubscribe(sub)

	// 发布方不会因为已取消的订阅者阻塞
	for i := 0; i < 10; i++ {
		store.Apply("r1", textMsg("m", i, at, "x"))
	}
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-sub.C:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
	req.Len(store.Snapshot("r1"), 10)
}

func TestStore_ClearCompletesEveryRoom(t *testing.T) {
	req := require.New(t)
	store := NewStore()

	a := store.Subscribe("a")
	b := store.Subscribe("b")
	store.Clear()

	for _, sub := range []*Subscription{a, b} {
		_, ok := recv(t, sub)
		req.True(ok)
		_, ok = recv(t, sub)
		req.False(ok)
	}
	req.Empty(store.Rooms())
}
