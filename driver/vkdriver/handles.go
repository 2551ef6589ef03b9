package vkdriver

import "sync/atomic"

//handleSeq is shared by every table so a handle is unique across kinds and
//a handle of the wrong kind is never found.
var handleSeq atomic.Uint64

//table maps opaque driver handles onto Vulkan objects. It is not safe for
//concurrent use; the GPU serializes access.
type table[T any] struct {
	items map[uint64]T
}

func newTable[T any]() table[T] {
	return table[T]{items: make(map[uint64]T)}
}

func (t *table[T]) put(v T) uint64 {
	h := handleSeq.Add(1)
	t.items[h] = v
	return h
}

//get panics on a handle that was never issued or was already released
func (t *table[T]) get(h uint64) T {
	v, ok := t.items[h]
	if !ok {
		panic(unknownHandle(h))
	}
	return v
}

func (t *table[T]) set(h uint64, v T) {
	if _, ok := t.items[h]; !ok {
		panic(unknownHandle(h))
	}
	t.items[h] = v
}

func (t *table[T]) take(h uint64) T {
	v := t.get(h)
	delete(t.items, h)
	return v
}

//drop removes every entry matching fn and returns how many went
func (t *table[T]) drop(fn func(T) bool) int {
	n := 0
	for h, v := range t.items {
		if fn(v) {
			delete(t.items, h)
			n++
		}
	}
	return n
}

func (t *table[T]) len() int { return len(t.items) }

type unknownHandle uint64

func (h unknownHandle) Error() string {
	return "vkdriver: unknown or released handle"
}
