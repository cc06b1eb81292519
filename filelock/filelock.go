// Package filelock provides the per-file critical section the metadata
// server holds while it mutates a file record and its token directory.
// Spec §5 allows a single global mutex as a simplification, but a lock
// per filename lets unrelated files make progress concurrently, which
// matters once a client holds the lock across a burst of revocation
// writes to other clients' streams (§9, "the grant to the writer must
// not be emitted until all revocations have been dispatched").
//
// A held lock logs and releases itself after maxHold, rather than
// hanging the server forever, so that a caller bug (a handler that
// forgets to Unlock) shows up in the log as a bounded stall instead of
// a silent deadlock.
package filelock

import (
	"sync"
	"time"

	"github.com/pfs-project/pfs/persist"
)

// heldTicket tracks one outstanding Lock/RLock call: who holds it, and
// the watchdog timer armed to force-release it past maxHold.
type heldTicket struct {
	holder string
	timer  *time.Timer
}

// FileLock is a single named critical section with a bounded maximum
// hold time.
type FileLock struct {
	held        map[int]*heldTicket
	heldCounter int
	heldMu      sync.Mutex

	maxHold time.Duration
	log     *persist.Logger

	mu sync.RWMutex
}

// New returns a FileLock that force-releases and logs a warning if held
// for longer than maxHold. log may be nil, in which case warnings are
// dropped.
func New(maxHold time.Duration, log *persist.Logger) *FileLock {
	return &FileLock{
		held:    make(map[int]*heldTicket),
		maxHold: maxHold,
		log:     log,
	}
}

func (l *FileLock) warnf(format string, args ...interface{}) {
	if l.log != nil {
		l.log.Printf(format, args...)
	}
}

// RLock acquires the lock for a reader (e.g. FileStat). holder identifies
// the caller for diagnostics and must be passed back to RUnlock.
func (l *FileLock) RLock(holder string) int {
	ticket := l.register(holder)
	l.mu.RLock()
	l.arm(ticket, holder, l.mu.RUnlock)
	return ticket
}

// RUnlock releases a lock acquired by RLock.
func (l *FileLock) RUnlock(holder string, ticket int) {
	if l.clear(ticket) {
		l.mu.RUnlock()
	} else {
		l.warnf("filelock: RUnlock(%s) arrived after ticket %d was force-released", holder, ticket)
	}
}

// Lock acquires the lock for a writer (file record or token directory
// mutation). holder identifies the caller for diagnostics and must be
// passed back to Unlock.
func (l *FileLock) Lock(holder string) int {
	ticket := l.register(holder)
	l.mu.Lock()
	l.arm(ticket, holder, l.mu.Unlock)
	return ticket
}

// Unlock releases a lock acquired by Lock.
func (l *FileLock) Unlock(holder string, ticket int) {
	if l.clear(ticket) {
		l.mu.Unlock()
	} else {
		l.warnf("filelock: Unlock(%s) arrived after ticket %d was force-released", holder, ticket)
	}
}

func (l *FileLock) register(holder string) int {
	l.heldMu.Lock()
	defer l.heldMu.Unlock()
	ticket := l.heldCounter
	l.held[ticket] = &heldTicket{holder: holder}
	l.heldCounter++
	return ticket
}

// clear removes ticket from the held set if it is still present,
// stopping its watchdog timer so a fast Unlock/RUnlock doesn't leave a
// goroutine sleeping out the rest of maxHold for nothing. It reports
// whether the ticket was still present (i.e. whether the watchdog had
// not already force-released it).
func (l *FileLock) clear(ticket int) bool {
	l.heldMu.Lock()
	defer l.heldMu.Unlock()
	hl, ok := l.held[ticket]
	if !ok {
		return false
	}
	delete(l.held, ticket)
	if hl.timer != nil {
		hl.timer.Stop()
	}
	return true
}

// arm schedules ticket's watchdog: if it is still held after maxHold,
// release is called and a warning logged. Using time.AfterFunc rather
// than a sleeping goroutine lets clear cancel the timer on the common
// fast-unlock path instead of leaving it to wake up and find nothing to
// do.
func (l *FileLock) arm(ticket int, holder string, release func()) {
	if l.maxHold <= 0 {
		return
	}
	l.heldMu.Lock()
	defer l.heldMu.Unlock()
	hl, ok := l.held[ticket]
	if !ok {
		return
	}
	hl.timer = time.AfterFunc(l.maxHold, func() {
		l.heldMu.Lock()
		_, exists := l.held[ticket]
		if exists {
			delete(l.held, ticket)
		}
		l.heldMu.Unlock()
		if exists {
			l.warnf("filelock: lock held by %q past %s, force-releasing ticket %d", holder, l.maxHold, ticket)
			release()
		}
	})
}
