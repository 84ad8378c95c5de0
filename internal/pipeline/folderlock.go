package pipeline

import "sync"

// folderLocks serializes output allocation and writes per output folder so
// two files under the same prefix cannot be handed the same sequence number.
type folderLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (f *folderLocks) lock(dir string) func() {
	f.mu.Lock()
	if f.locks == nil {
		f.locks = make(map[string]*sync.Mutex)
	}
	m, ok := f.locks[dir]
	if !ok {
		m = &sync.Mutex{}
		f.locks[dir] = m
	}
	f.mu.Unlock()

	m.Lock()
	return m.Unlock
}
