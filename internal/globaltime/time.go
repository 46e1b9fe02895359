// Package globaltime is the process clock. Tests pin it with SetMockTime.
package globaltime

import (
	"sync"
	"time"
)

var (
	mu      sync.RWMutex
	nowFunc = time.Now
)

func Now() time.Time {
	mu.RLock()
	fn := nowFunc
	mu.RUnlock()
	return fn()
}

func UTC() time.Time {
	return Now().UTC()
}

// NowMillis is the epoch-millisecond form stored in the seen ledger.
func NowMillis() int64 {
	return Now().UnixMilli()
}

func SetMockTime(t time.Time) {
	mu.Lock()
	defer mu.Unlock()
	nowFunc = func() time.Time { return t }
}

func ResetTime() {
	mu.Lock()
	defer mu.Unlock()
	nowFunc = time.Now
}
