// Package eventbus provides a small in-process event dispatcher used to
// decouple the runtime packages from observability subscribers.
package eventbus

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"
)

// Handler processes events of type T.
type Handler[T any] func(context.Context, T)

// Bus dispatches published events to handlers registered for their type.
type Bus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[reflect.Type]map[int]func(context.Context, any)
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{handlers: map[reflect.Type]map[int]func(context.Context, any){}}
}

func (b *Bus) subscribe(t reflect.Type, h func(context.Context, any)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handlers[t] == nil {
		b.handlers[t] = map[int]func(context.Context, any){}
	}
	id := b.nextID
	b.nextID++
	b.handlers[t][id] = h
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers[t], id)
	}
}

func (b *Bus) emit(ctx context.Context, e any) {
	if b == nil {
		return
	}
	t := reflect.TypeOf(e)
	b.mu.RLock()
	hs := make([]func(context.Context, any), 0, len(b.handlers[t]))
	for _, h := range b.handlers[t] {
		hs = append(hs, h)
	}
	b.mu.RUnlock()
	for _, h := range hs {
		h(ctx, e)
	}
}

var global atomic.Pointer[Bus]

// Use sets the global bus. Passing nil disables event publishing.
func Use(b *Bus) { global.Store(b) }

// Subscribe registers h with the global bus. The returned function removes
// the subscription; it is a no-op when no bus is installed.
func Subscribe[T any](h Handler[T]) (unsubscribe func()) {
	b := global.Load()
	if b == nil {
		return func() {}
	}
	t := reflect.TypeOf((*T)(nil)).Elem()
	return b.subscribe(t, func(ctx context.Context, v any) { h(ctx, v.(T)) })
}

// Publish sends e through the global bus, if one is installed.
func Publish[T any](ctx context.Context, e T) {
	if b := global.Load(); b != nil {
		b.emit(ctx, e)
	}
}
