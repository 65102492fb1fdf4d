package pkg

import "sync"

type HasLocker interface{ GetLocker() *sync.RWMutex }

func LockWrap(i HasLocker, f func()) {
	i.GetLocker().Lock()
	defer i.GetLocker().Unlock()
	f()
}

// RLockGet returns f's results, computed under the read lock.
func RLockGet[T any](i HasLocker, f func() (T, error)) (T, error) {
	i.GetLocker().RLock()
	defer i.GetLocker().RUnlock()
	return f()
}
