package event

import (
	"reflect"
	"sync"
)

// Bus delivers typed events to subscribers. Emit is double-buffered: events
// emitted during tick N are delivered by DispatchAll after the SwapBuffers at
// the start of tick N+1.
//
// Emit, SwapBuffers and DispatchAll belong to the game loop
// goroutine. Subscribe may be called from anywhere.
type Bus struct {
	mu       sync.RWMutex // guards handlers
	handlers map[reflect.Type][]func(any)
	front    []queued
	back     []queued
}

type queued struct {
	typ reflect.Type
	ev  any
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[reflect.Type][]func(any))}
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Subscribe registers fn for events of type T.
func Subscribe[T any](b *Bus, fn func(T)) {
	t := typeOf[T]()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[t] = append(b.handlers[t], func(ev any) { fn(ev.(T)) })
}

// Emit queues ev for delivery on the next DispatchAll after a swap.
func Emit[T any](b *Bus, ev T) {
	b.back = append(b.back, queued{typ: typeOf[T](), ev: ev})
}

// SwapBuffers moves queued events to the front buffer. Called at tick start.
func (b *Bus) SwapBuffers() {
	b.front, b.back = b.back, b.front[:0]
}

// Pending returns the number of events waiting for the next swap.
func (b *Bus) Pending() int { return len(b.back) }

// DispatchAll delivers the front buffer in emission order.
func (b *Bus) DispatchAll() {
	for _, q := range b.front {
		b.deliver(q.typ, q.ev)
	}
	b.front = b.front[:0]
}

func (b *Bus) deliver(t reflect.Type, ev any) {
	b.mu.RLock()
	hs := b.handlers[t]
	b.mu.RUnlock()
	for _, h := range hs {
		h(ev)
	}
}
