package resultiter

import (
	"errors"
	"sync"
)

var ErrExhausted = errors.New("result iterator is exhausted")

// ResultIterator is a forward-only cursor. HasNext may block on I/O.
// Implementations need not be safe for concurrent use.
type ResultIterator[T any] interface {
	HasNext() (bool, error)
	Next() (T, error)
	Close() error
}

// Synchronized serializes every call on the wrapped iterator so Close may
// race an in-flight HasNext or Next.
type Synchronized[T any] struct {
	mu     sync.Mutex
	it     ResultIterator[T]
	closed bool
}

var _ ResultIterator[struct{}] = &Synchronized[struct{}]{}

func NewSynchronized[T any](it ResultIterator[T]) *Synchronized[T] {
	return &Synchronized[T]{it: it}
}

func (s *Synchronized[T]) HasNext() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, nil
	}
	return s.it.HasNext()
}

func (s *Synchronized[T]) Next() (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		var zero T
		return zero, ErrExhausted
	}
	return s.it.Next()
}

// Close is idempotent.
func (s *Synchronized[T]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.it.Close()
}

// Slice iterates over an in-memory snapshot.
type Slice[T any] struct {
	items []T
	pos   int
}

var _ ResultIterator[struct{}] = &Slice[struct{}]{}

func NewSlice[T any](items []T) *Slice[T] {
	return &Slice[T]{items: items}
}

func (s *Slice[T]) HasNext() (bool, error) {
	return s.pos < len(s.items), nil
}

func (s *Slice[T]) Next() (T, error) {
	if s.pos >= len(s.items) {
		var zero T
		return zero, ErrExhausted
	}
	item := s.items[s.pos]
	s.pos++
	return item, nil
}

func (s *Slice[T]) Close() error {
	s.items = nil
	s.pos = 0
	return nil
}
