package memory

import (
	"context"
	"sync"
)

// KeyedLocker exclusión mutua por clave dentro del proceso.
// Para varias réplicas usar el locker de Redis.
type KeyedLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

// keyLock canal de capacidad 1 más la cantidad de dueños y esperas sobre la clave.
// La entrada se borra del mapa cuando refs vuelve a cero.
type keyLock struct {
	ch   chan struct{}
	refs int
}

// NewKeyedLocker crea un locker vacío.
func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{locks: make(map[string]*keyLock)}
}

func (l *KeyedLocker) acquire(key string) *keyLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.locks[key]
	if !ok {
		e = &keyLock{ch: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	return e
}

func (l *KeyedLocker) release(key string, e *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
}

// Lock espera el lock de key o la cancelación de ctx.
func (l *KeyedLocker) Lock(ctx context.Context, key string) (func(), error) {
	e := l.acquire(key)
	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e)
		return nil, ctx.Err()
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			l.release(key, e)
		})
	}, nil
}

// size cantidad de claves con dueño o espera.
func (l *KeyedLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
