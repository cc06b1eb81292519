package filelock

import (
	"sync"
	"testing"
	"time"
)

func TestReadersWaitForWriter(t *testing.T) {
	l := New(time.Second, nil)
	value := 0
	writeTicket := l.Lock("writer")

	const readers = 20
	var wg sync.WaitGroup
	wg.Add(readers)
	for i := 0; i < readers; i++ {
		go func() {
			defer wg.Done()
			ticket := l.RLock("reader")
			defer l.RUnlock("reader", ticket)
			if value != 1 {
				t.Error("reader observed the lock before the writer released it")
			}
		}()
	}

	value = 1
	time.Sleep(50 * time.Millisecond)
	l.Unlock("writer", writeTicket)
	wg.Wait()
}

func TestWriteLocksAreExclusive(t *testing.T) {
	l := New(time.Second, nil)
	value := 0
	outer := l.Lock("outer")

	done := make(chan struct{})
	go func() {
		inner := l.Lock("inner")
		defer l.Unlock("inner", inner)
		if value != 1 {
			t.Error("inner lock was granted before the outer lock released")
		}
		close(done)
	}()

	time.Sleep(25 * time.Millisecond)
	value = 1
	l.Unlock("outer", outer)
	<-done
}

func TestForceReleaseAfterMaxHold(t *testing.T) {
	l := New(10*time.Millisecond, nil)
	l.Lock("leaked")

	// the holder above never calls Unlock; the watchdog should force the
	// lock open well within this test's timeout.
	released := make(chan struct{})
	go func() {
		ticket := l.Lock("waiter")
		l.Unlock("waiter", ticket)
		close(released)
	}()

	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("lock was never force-released after maxHold elapsed")
	}
}

func TestUnlockAfterForceReleaseIsANoop(t *testing.T) {
	l := New(5*time.Millisecond, nil)
	ticket := l.Lock("leaked")
	time.Sleep(50 * time.Millisecond)

	// the watchdog has already force-released this ticket; calling Unlock
	// now must not panic or double-unlock the underlying mutex.
	l.Unlock("leaked", ticket)

	// the lock must still be acquirable.
	ticket2 := l.Lock("next")
	l.Unlock("next", ticket2)
}
