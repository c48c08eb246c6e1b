package spantree

import (
	"log"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// HookPayload is the immutable value delivered to a subscriber: a
// (source, command, payload) tuple. Payload must already be a
// value-copy by the time it reaches Emit; the bus never re-copies it.
type HookPayload struct {
	Source  string
	Command string
	Data    map[string]any
}

// HookFunc is a Hook Bus subscriber. It runs on the dispatching
// goroutine after the triggering critical section has closed, and
// must not call back into Core.
type HookFunc func(HookPayload)

type subscriber struct {
	id       uuid.UUID
	fn       HookFunc
	priority int64
	commands map[string]struct{} // nil means "all commands"
}

// HookBus is the fan-out point for protocol events: every handler and
// outbound operation that produces a hook event delivers it here, and
// every registered subscriber sees it in priority order (lowest
// first), filtered to the commands it asked for.
type HookBus struct {
	mu    sync.RWMutex
	subs  []subscriber
	chans map[uuid.UUID]chan HookPayload
}

// NewHookBus returns an empty bus.
func NewHookBus() *HookBus {
	return &HookBus{chans: make(map[uuid.UUID]chan HookPayload)}
}

// Subscribe registers fn for every command at priority 0. It returns a
// handle for Unsubscribe.
func (b *HookBus) Subscribe(fn HookFunc) uuid.UUID {
	return b.SubscribeFiltered(fn, 0, nil)
}

// SubscribeFiltered registers fn with an explicit priority (lower runs
// first) and an optional command allowlist; a nil or empty commands
// slice subscribes to every command, including synthetic ones like
// the PYLINK_CLIENT_OPERED event an OPERTYPE dispatch adds.
func (b *HookBus) SubscribeFiltered(fn HookFunc, priority int64, commands []string) uuid.UUID {
	id := uuid.New()
	var set map[string]struct{}
	if len(commands) > 0 {
		set = make(map[string]struct{}, len(commands))
		for _, c := range commands {
			set[c] = struct{}{}
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, subscriber{id: id, fn: fn, priority: priority, commands: set})
	sort.SliceStable(b.subs, func(i, j int) bool { return b.subs[i].priority < b.subs[j].priority })
	return id
}

// SubscribeChan registers a channel subscriber at priority 0 and
// returns the receive side: every matching event is fanned out onto
// the channel, so consumers on other goroutines can range over it
// instead of supplying a callback. buffer sizes the channel; when it
// is full the event is dropped with a log line rather than blocking
// the dispatch goroutine. An empty commands list subscribes to every
// command. Unsubscribe with the returned handle stops delivery; the
// channel is then closed.
func (b *HookBus) SubscribeChan(buffer int, commands ...string) (<-chan HookPayload, uuid.UUID) {
	ch := make(chan HookPayload, buffer)
	id := b.SubscribeFiltered(func(p HookPayload) {
		select {
		case ch <- p:
		default:
			log.Printf("[hooks] dropping %s: subscriber channel full", p.Command)
		}
	}, 0, commands)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.chans[id] = ch
	return ch, id
}

// Unsubscribe removes a previously registered subscriber, closing its
// channel if it was registered with SubscribeChan. It is a
// no-op if id is unknown.
func (b *HookBus) Unsubscribe(id uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			if ch, ok := b.chans[id]; ok {
				close(ch)
				delete(b.chans, id)
			}
			return
		}
	}
}

// Emit delivers (source, command, payload) to every matching
// subscriber in priority order. It must be called only after the
// triggering critical section has released the Network Store lock;
// payload must already be an immutable value-copy. A panicking
// subscriber is logged and skipped, never allowed to crash the
// dispatch loop.
func (b *HookBus) Emit(source, command string, payload map[string]any) {
	b.mu.RLock()
	matched := make([]subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		if s.commands == nil {
			matched = append(matched, s)
			continue
		}
		if _, ok := s.commands[command]; ok {
			matched = append(matched, s)
		}
	}
	b.mu.RUnlock()

	recordHookEmit(command)

	ev := HookPayload{Source: source, Command: command, Data: payload}
	for _, s := range matched {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("[hooks] panic in subscriber for %s: %v", command, r)
				}
			}()
			s.fn(ev)
		}()
	}
}

// Count returns the number of registered subscribers.
func (b *HookBus) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
