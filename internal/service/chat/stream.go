// Package chat 实现了聊天客户端的核心会话层
// stream.go
// 核心职责：每个聊天室一个发布/订阅流
// 1. 流的当前值是该聊天室完整的有序消息列表，每次更新整体替换，从不原地修改
// 2. 订阅时先收到当前值，随后收到每次更新（replay-latest）
// 3. 丢弃聊天室时，订阅者在收完已排队的值后看到通道关闭，这是完成而不是错误
package chat

import (
	"sort"
	"sync"

	"kama_chat_client/internal/model"
)

// Store 所有聊天室的消息流，Key 为 chatId
type Store struct {
	mu    sync.Mutex
	rooms map[string]*Stream
}

// NewStore 创建空的消息流仓库
func NewStore() *Store {
	return &Store{rooms: make(map[string]*Stream)}
}

// GetOrCreate 返回聊天室的流，不存在时创建一个空流
func (s *Store) GetOrCreate(chatID string) *Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.rooms[chatID]
	if !ok {
		st = &Stream{chatID: chatID, subs: make(map[*Subscription]struct{})}
		s.rooms[chatID] = st
	}
	return st
}

// Subscribe 订阅聊天室，不存在时先创建
func (s *Store) Subscribe(chatID string) *Subscription {
	return s.GetOrCreate(chatID).Subscribe()
}

// Unsubscribe 取消订阅
func (s *Store) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	sub.stream.unsubscribe(sub)
}

// Snapshot 返回聊天室当前的有序列表，不存在时返回 nil
func (s *Store) Snapshot(chatID string) []model.ChatMessage {
	s.mu.Lock()
	st, ok := s.rooms[chatID]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return st.Snapshot()
}

// Apply 去重排序后并入聊天室的流，返回是否产生了新列表
func (s *Store) Apply(chatID string, msg model.ChatMessage) bool {
	return s.GetOrCreate(chatID).Apply(msg)
}

// applyExisting 只并入已存在的流，聊天室已被丢弃时返回 false
// 连接层的入站消息走这里，迟到的帧不会重新创建聊天室
func (s *Store) applyExisting(chatID string, msg model.ChatMessage) bool {
	s.mu.Lock()
	st, ok := s.rooms[chatID]
	s.mu.Unlock()
	if !ok {
		return false
	}
	st.Apply(msg)
	return true
}

// Discard 丢弃聊天室的流，所有订阅者收到完成信号
func (s *Store) Discard(chatID string) {
	s.mu.Lock()
	st, ok := s.rooms[chatID]
	delete(s.rooms, chatID)
	s.mu.Unlock()
	if ok {
		st.complete()
	}
}

// Clear 丢弃所有聊天室的流
func (s *Store) Clear() {
	s.mu.Lock()
	rooms := s.rooms
	s.rooms = make(map[string]*Stream)
	s.mu.Unlock()
	for _, st := range rooms {
		st.complete()
	}
}

// Rooms 当前存在流的聊天室 ID，按字典序
func (s *Store) Rooms() []string {
	s.mu.Lock()
	ids := make([]string, 0, len(s.rooms))
	for id := range s.rooms {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// Stream 单个聊天室的消息流
type Stream struct {
	chatID string

	mu     sync.Mutex
	list   []model.ChatMessage
	subs   map[*Subscription]struct{}
	closed bool
}

// ChatID 所属聊天室
func (st *Stream) ChatID() string { return st.chatID }

// Snapshot 当前列表，调用方不得修改
func (st *Stream) Snapshot() []model.ChatMessage {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.list
}

// Apply 并入一条消息并通知所有订阅者；流已丢弃时忽略
func (st *Stream) Apply(msg model.ChatMessage) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.closed {
		return false
	}
	next, inserted := Merge(st.list, msg)
	if !inserted {
		return false
	}
	st.list = next
	for sub := range st.subs {
		sub.push(next)
	}
	return true
}

// Subscribe 订阅该流，立即收到当前值
// 对已丢弃的流订阅时，收到最后的值后通道随即关闭
func (st *Stream) Subscribe() *Subscription {
	sub := newSubscription(st)
	st.mu.Lock()
	sub.push(st.list)
	if st.closed {
		sub.finish()
	} else {
		st.subs[sub] = struct{}{}
	}
	st.mu.Unlock()
	go sub.pump()
	return sub
}

func (st *Stream) unsubscribe(sub *Subscription) {
	st.mu.Lock()
	delete(st.subs, sub)
	st.mu.Unlock()
	sub.cancel()
}

func (st *Stream) complete() {
	st.mu.Lock()
	st.closed = true
	st.list = nil
	subs := st.subs
	st.subs = make(map[*Subscription]struct{})
	st.mu.Unlock()
	for sub := range subs {
		sub.finish()
	}
}

// Subscription 一个订阅者
// 每个订阅者有自己的无界队列和投递协程，慢消费者不会阻塞发布方
type Subscription struct {
	// C 按顺序收到的列表快照，流完成或取消订阅后关闭
	C <-chan []model.ChatMessage

	ch     chan []model.ChatMessage
	quit   chan struct{}
	stream *Stream

	mu     sync.Mutex
	cond   *sync.Cond
	queue  [][]model.ChatMessage
	done   bool
	cancel func()
}

func newSubscription(st *Stream) *Subscription {
	ch := make(chan []model.ChatMessage)
	sub := &Subscription{
		C:      ch,
		ch:     ch,
		quit:   make(chan struct{}),
		stream: st,
	}
	sub.cond = sync.NewCond(&sub.mu)
	var once sync.Once
	sub.cancel = func() {
		once.Do(func() {
			close(sub.quit)
			sub.mu.Lock()
			sub.done = true
			sub.queue = nil
			sub.cond.Signal()
			sub.mu.Unlock()
		})
	}
	return sub
}

// push 追加一个快照，在流的锁内调用以保证各订阅者看到相同的顺序
func (sub *Subscription) push(list []model.ChatMessage) {
	sub.mu.Lock()
	if !sub.done {
		sub.queue = append(sub.queue, list)
		sub.cond.Signal()
	}
	sub.mu.Unlock()
}

// finish 不再接收新值，队列取完后关闭通道
func (sub *Subscription) finish() {
	sub.mu.Lock()
	sub.done = true
	sub.cond.Signal()
	sub.mu.Unlock()
}

func (sub *Subscription) pump() {
	defer close(sub.ch)
	for {
		sub.mu.Lock()
		for len(sub.queue) == 0 && !sub.done {
			sub.cond.Wait()
		}
		if len(sub.queue) == 0 {
			sub.mu.Unlock()
			return
		}
		next := sub.queue[0]
		sub.queue[0] = nil
		sub.queue = sub.queue[1:]
		sub.mu.Unlock()

		select {
		case sub.ch <- next:
		case <-sub.quit:
			return
		}
	}
}
