package invoice

import (
	"sync"
)

// LockManager serializes the count-validate-append critical section per
// invoice. Two concurrent submissions against the same invoice would
// otherwise both pass the capacity check on a stale count and together
// exceed the limit. Locks are scoped to one invoice ID; submissions to
// different invoices never contend.
type LockManager struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLockManager() *LockManager {
	return &LockManager{
		locks: make(map[string]*sync.Mutex),
	}
}

// Lock acquires the lock for the given invoice and returns the unlock
// function. Callers must defer the returned function.
func (m *LockManager) Lock(invoiceID string) func() {
	m.mu.Lock()
	l, ok := m.locks[invoiceID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[invoiceID] = l
	}
	m.mu.Unlock()

	l.Lock()
	return l.Unlock
}
