package recovery

import (
	"fmt"
	"sync"
)

// StrictStrategy implements a fail-fast recovery strategy.
type StrictStrategy struct{}

func NewStrictStrategy() *StrictStrategy {
	return &StrictStrategy{}
}

func (s *StrictStrategy) OnError(ctx Context, err error, location Location) Action {
	return ActionFail
}

func (s *StrictStrategy) Tolerant() bool { return false }

// LenientStrategy implements a best-effort recovery strategy.
// Every error it is consulted about is kept in Errors.
type LenientStrategy struct {
	mu     sync.Mutex
	Errors []error
}

func NewLenientStrategy() *LenientStrategy {
	return &LenientStrategy{}
}

func (s *LenientStrategy) OnError(ctx Context, err error, location Location) Action {
	s.mu.Lock()
	s.Errors = append(s.Errors, fmt.Errorf("[%s] offset %d: %w", location.Component, location.ByteOffset, err))
	s.mu.Unlock()
	return ActionWarn
}

func (s *LenientStrategy) Tolerant() bool { return true }
