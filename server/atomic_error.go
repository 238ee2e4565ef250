package server

import "sync"

type atomicError struct {
	err error
	m   sync.Mutex
}

// TryStore keeps the first error only.
func (a *atomicError) TryStore(err error) {
	a.m.Lock()
	defer a.m.Unlock()
	if a.err == nil {
		a.err = err
	}
}

func (a *atomicError) Load() error {
	a.m.Lock()
	defer a.m.Unlock()
	return a.err
}
