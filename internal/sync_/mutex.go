package sync_

import "sync"

// Mutexed guards a value so that only one goroutine at a time can use it.
type Mutexed[T any] struct {
	mu    sync.Mutex
	value T
}

func NewMutexed[T any](value T) *Mutexed[T] {
	return &Mutexed[T]{value: value}
}

// Locked runs a function with the lock acquired.
func (m *Mutexed[T]) Locked(f func(T) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return f(m.value)
}
