package client

import "sync/atomic"

// ExecStats mirrors the counters the execstat() client call reports
// (§6). The increment points are not specified by the core (§9, open
// question); this implementation increments:
//   - ReadHits on every full cache hit serviced in Read.
//   - WriteHits on every write whose range was already WRITE-covered,
//     so no TokenRequest round trip was needed.
//   - Evictions on every block the data cache drops to make room for a
//     new one (LRU capacity eviction only).
//   - Invalidations once per revocation the stream listener processes,
//     regardless of how many cache blocks that revocation split or
//     dropped.
//   - CloseEvictions on every cached block dropped by closing a file.
//   - WriteBacks and CloseWriteBacks stay at zero: writes are
//     write-through to the file services (§4.5 step 5), so there is no
//     write-back cache to flush on close.
type ExecStats struct {
	ReadHits       uint64
	WriteHits      uint64
	Evictions      uint64
	WriteBacks     uint64
	Invalidations  uint64
	CloseWriteBacks uint64
	CloseEvictions uint64
}

// stats is the mutable, concurrency-safe counter set backing ExecStats.
type stats struct {
	readHits       uint64
	writeHits      uint64
	evictions      uint64
	invalidations  uint64
	closeEvictions uint64
}

func newStats() *stats { return &stats{} }

func (s *stats) incReadHits()       { atomic.AddUint64(&s.readHits, 1) }
func (s *stats) incWriteHits()      { atomic.AddUint64(&s.writeHits, 1) }
func (s *stats) incEvictions()      { atomic.AddUint64(&s.evictions, 1) }
func (s *stats) incInvalidations()  { atomic.AddUint64(&s.invalidations, 1) }
func (s *stats) incCloseEvictions(n int) {
	atomic.AddUint64(&s.closeEvictions, uint64(n))
}

func (s *stats) Snapshot() ExecStats {
	return ExecStats{
		ReadHits:       atomic.LoadUint64(&s.readHits),
		WriteHits:      atomic.LoadUint64(&s.writeHits),
		Evictions:      atomic.LoadUint64(&s.evictions),
		Invalidations:  atomic.LoadUint64(&s.invalidations),
		CloseEvictions: atomic.LoadUint64(&s.closeEvictions),
	}
}
