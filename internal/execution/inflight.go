package execution

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrInFlight 表示已有操作在执行中。Gate 不排队：第二个调用方立即失败。
var ErrInFlight = errors.New("operation in flight")

// BusyError 携带当前占用者信息，errors.Is(err, ErrInFlight) 为 true。
type BusyError struct {
	Holder string
	Since  time.Time
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("%s in flight since %s", e.Holder, e.Since.Format(time.RFC3339))
}

func (e *BusyError) Is(target error) bool { return target == ErrInFlight }

// HolderOf 返回 err 中记录的占用者；err 不是 *BusyError 时返回空字符串
func HolderOf(err error) string {
	var busy *BusyError
	if errors.As(err, &busy) {
		return busy.Holder
	}
	return ""
}

// Gate is a non-queuing single-flight guard: at most one holder at a time, and a caller
// that finds it taken is told so immediately instead of waiting.
//
// The zero value is ready to use.
type Gate struct {
	mu     sync.Mutex
	holder string
	since  time.Time
	busy   bool
}

// TryAcquire 尝试占用；成功返回 nil，已被占用返回 *BusyError
func (g *Gate) TryAcquire(op string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.busy {
		return &BusyError{Holder: g.holder, Since: g.since}
	}
	g.busy = true
	g.holder = op
	g.since = time.Now()
	return nil
}

// Release 释放占用；未占用时为空操作
func (g *Gate) Release() {
	g.mu.Lock()
	g.busy = false
	g.holder = ""
	g.since = time.Time{}
	g.mu.Unlock()
}
