package signup

import "sync"

// FormState holds the values captured by a form and the defaults it
// resets to.
type FormState[T any] struct {
	mu       sync.RWMutex
	values   T
	defaults T
	resets   int
}

// NewFormState returns a form whose values start at defaults
func NewFormState[T any](defaults T) *FormState[T] {
	return &FormState[T]{
		values:   defaults,
		defaults: defaults,
	}
}

// Set captures values
func (f *FormState[T]) Set(values T) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values = values
}

// Values returns the captured values
func (f *FormState[T]) Values() T {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.values
}

// Reset restores the default values
func (f *FormState[T]) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values = f.defaults
	f.resets++
}

// Resets returns how many times Reset was called
func (f *FormState[T]) Resets() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.resets
}
