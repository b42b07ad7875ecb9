package chat

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"kama_chat_client/internal/model"
)

func textMsg(id string, seq int, at time.Time, content string) model.ChatMessage {
	return model.ChatMessage{
		ChatID:    "r1",
		MessageID: id,
		Sequence:  seq,
		CreatedAt: at,
		Body:      model.TextBody{Content: content},
	}
}

func TestMerge_DedupIdempotence(t *testing.T) {
	req := require.New(t)
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	m := textMsg("m1", 0, at, "hi")

	// Given an empty list
	var list []model.ChatMessage

	// When the same message is merged twice
	list, inserted := Merge(list, m)
	req.True(inserted)
	list, inserted = Merge(list, m)

	// Then only the first merge grows the list
	req.False(inserted)
	req.Len(list, 1)
}

func TestMerge_SameIDDifferentPayloadIsNotDuplicate(t *testing.T) {
	req := require.New(t)
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	list, _ := Merge(nil, textMsg("m1", 0, at, "hi"))
	list, inserted := Merge(list, textMsg("m1", 0, at, "hello"))
	req.True(inserted)

	file := model.ChatMessage{MessageID: "m1", Sequence: 0, CreatedAt: at, Body: model.FileBody{URL: "hi"}}
	list, inserted = Merge(list, file)
	req.True(inserted)
	req.Len(list, 3)
}

func TestMerge_DoesNotMutateCurrent(t *testing.T) {
	req := require.New(t)
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	current, _ := Merge(nil, textMsg("b", 0, at, "x"))
	snapshot := append([]model.ChatMessage(nil), current...)

	next, inserted := Merge(current, textMsg("a", 0, at, "y"))
	req.True(inserted)
	req.Equal(snapshot, current)
	req.Equal("a", next[0].MessageID)
}

func TestMerge_TotalOrderStableAcrossPermutations(t *testing.T) {
	req := require.New(t)
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	msgs := []model.ChatMessage{
		textMsg("b", 1, at, "b1"),
		textMsg("a", 2, at, "a2"),
		textMsg("b", 0, at, "b0"),
		textMsg("a", 0, at, "a0"),
		textMsg("z", 0, at.Add(-time.Second), "earlier"),
		textMsg("a", 10, at, "a10"),
	}
	want := []string{"earlier", "a0", "a2", "a10", "b0", "b1"}

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 50; i++ {
		perm := rng.Perm(len(msgs))
		var list []model.ChatMessage
		for _, p := range perm {
			list, _ = Merge(list, msgs[p])
			// 重复投递不会改变结果
			list, _ = Merge(list, msgs[p])
		}

		got := make([]string, 0, len(list))
		for _, m := range list {
			text, _ := m.Text()
			got = append(got, text)
		}
		req.Equal(want, got, "permutation %v", perm)
	}
}

func TestMerge_MatchesFullSort(t *testing.T) {
	req := require.New(t)
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	rng := rand.New(rand.NewSource(7))

	var merged, all []model.ChatMessage
	for i := 0; i < 40; i++ {
		m := textMsg(string(rune('a'+rng.Intn(5))), rng.Intn(3), base.Add(time.Duration(rng.Intn(4))*time.Second), "x")
		var inserted bool
		merged, inserted = Merge(merged, m)
		if inserted {
			all = append(all, m)
		}
	}
	Sort(all)
	req.Equal(all, merged)
}
