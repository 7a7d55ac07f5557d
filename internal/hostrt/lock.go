package hostrt

import "errors"

// ErrLockUnderflow reports a release of the execution lock that was
// never acquired.
var ErrLockUnderflow = errors.New("hostrt: execution lock released below zero")

// ExecLock models the runtime-wide execution lock. It counts acquire
// depth rather than blocking: compilation and the JIT engine are
// single-threaded per context, so what matters to callers is that
// every release is matched by an acquire and the depth is net-zero
// around a call.
type ExecLock struct {
	depth    int
	acquires int
}

// Acquire takes the lock (or deepens a held one).
func (l *ExecLock) Acquire() {
	l.depth++
	l.acquires++
}

// Release drops one level of the lock.
func (l *ExecLock) Release() error {
	if l.depth == 0 {
		return ErrLockUnderflow
	}
	l.depth--
	return nil
}

// Depth returns the current hold depth.
func (l *ExecLock) Depth() int { return l.depth }

// Acquires returns the total number of acquires, for balance checks in
// tests.
func (l *ExecLock) Acquires() int { return l.acquires }

// Held reports whether the lock is currently held.
func (l *ExecLock) Held() bool { return l.depth > 0 }
