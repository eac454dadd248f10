package attendance

import "sync"

// keyLocker serializes work per Key. Entries are dropped once nobody holds or waits on them.
type keyLocker struct {
	mu    sync.Mutex
	locks map[Key]*keyLock
}

type keyLock struct {
	sync.Mutex
	refs int
}

func newKeyLocker() *keyLocker {
	return &keyLocker{locks: make(map[Key]*keyLock)}
}

// Lock blocks until key is free and returns its unlock func.
func (l *keyLocker) Lock(key Key) (unlock func()) {
	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = new(keyLock)
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	kl.Lock()
	return func() {
		kl.Unlock()
		l.mu.Lock()
		kl.refs--
		if kl.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

func (l *keyLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
