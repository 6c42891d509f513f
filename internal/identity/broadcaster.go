package identity

import "sync"

// Broadcaster はセッション変化イベントをプロセス内の購読者へ配信する。
type Broadcaster struct {
	mu   sync.RWMutex
	next int
	subs map[int]func(Event)
}

// NewBroadcaster はBroadcasterを生成する。
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]func(Event))}
}

// Subscribe は購読者を登録し、解除関数を返す。解除は何度呼んでもよい。
func (b *Broadcaster) Subscribe(fn func(Event)) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Publish はイベントを全購読者に配信する。
// コールバックはロックの外で呼び出すため、購読者内から解除してもよい。
func (b *Broadcaster) Publish(e Event) {
	b.mu.RLock()
	fns := make([]func(Event), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn(e)
	}
}

// Len は現在の購読者数を返す。
func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
