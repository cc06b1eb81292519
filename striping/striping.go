// Package striping computes the per-chunk plan that the metadata server
// hands back for a read or write request: which chunks a byte range
// touches, which file service hosts each chunk, and the byte-for-byte
// slice of each chunk the request covers. It has no notion of clients,
// tokens, or network transport — callers own the file record and apply
// the side effects WritePlan reports.
package striping

import (
	"fmt"
)

// Extent records the contiguous byte range written so far within one
// chunk. Both bounds are absolute file offsets, and both fall within
// [k*chunkSize, (k+1)*chunkSize-1].
type Extent struct {
	StartByte uint64
	EndByte   uint64
}

// Entry is one chunk's contribution to a plan: which file service hosts
// chunk K, and the sub-range of that chunk the request covers.
type Entry struct {
	K           uint64
	ServerIndex int
	PlanStart   uint64
	PlanEnd     uint64
}

// Plan is the ordered list of chunk entries that together cover a
// request byte-for-byte, in ascending chunk order.
type Plan []Entry

// ChunkIndex returns the chunk that owns global byte offset, given a
// chunk size in bytes.
func ChunkIndex(offset, chunkSize uint64) uint64 {
	return offset / chunkSize
}

// ServerIndex returns the file service that hosts chunk k of a file with
// stripe width w.
func ServerIndex(k uint64, w int) int {
	return int(k % uint64(w))
}

// ReadPlan computes the plan for a read of numBytes at offset against a
// file of the given size with the given chunk map. It returns an empty
// plan, not an error, when offset is at or past EOF or when numBytes is
// zero. The plan stops at the first chunk not present in chunks, which
// is how a file with holes at its high end bounds a read at its true
// data boundary.
func ReadPlan(w int, size, chunkSize uint64, chunks map[uint64]Extent, offset, numBytes uint64) (Plan, error) {
	if w < 1 {
		return nil, fmt.Errorf("striping: invalid stripe width %d", w)
	}
	if numBytes == 0 || offset >= size {
		return nil, nil
	}

	lastRequested := offset + numBytes - 1
	lastBySize := size - 1
	firstK := ChunkIndex(offset, chunkSize)
	lastK := ChunkIndex(min64(lastRequested, lastBySize), chunkSize)

	var plan Plan
	for k := firstK; k <= lastK; k++ {
		if _, ok := chunks[k]; !ok {
			break
		}
		planStart := max64(k*chunkSize, offset)
		planEnd := min64((k+1)*chunkSize-1, min64(lastRequested, lastBySize))
		if planStart > planEnd {
			break
		}
		plan = append(plan, Entry{
			K:           k,
			ServerIndex: ServerIndex(k, w),
			PlanStart:   planStart,
			PlanEnd:     planEnd,
		})
	}
	return plan, nil
}

// WriteResult reports the chunk-map and size-accounting side effects a
// write plan must apply to the owning file record before it is visible
// to any other caller.
type WriteResult struct {
	Plan      Plan
	NewSize   uint64
	NewChunks map[uint64]Extent
}

// WritePlan computes the plan for a write of numBytes at offset against
// a file of the given size and chunk map, along with the chunk-map and
// size updates the caller must apply. Unlike ReadPlan, a write may
// create chunks that don't yet exist and always covers the full
// requested range. A write never creates a hole: WritePlan returns an
// error when offset is past size.
func WritePlan(w int, size, chunkSize uint64, chunks map[uint64]Extent, offset, numBytes uint64) (*WriteResult, error) {
	if w < 1 {
		return nil, fmt.Errorf("striping: invalid stripe width %d", w)
	}
	if offset > size {
		return nil, fmt.Errorf("striping: write offset %d past end of file (size %d)", offset, size)
	}
	if numBytes == 0 {
		return &WriteResult{NewSize: size, NewChunks: chunks}, nil
	}

	lastRequested := offset + numBytes - 1
	firstK := ChunkIndex(offset, chunkSize)
	lastK := ChunkIndex(lastRequested, chunkSize)

	newChunks := make(map[uint64]Extent, len(chunks))
	for k, e := range chunks {
		newChunks[k] = e
	}

	var plan Plan
	for k := firstK; k <= lastK; k++ {
		planStart := max64(k*chunkSize, offset)
		planEnd := min64((k+1)*chunkSize-1, lastRequested)
		plan = append(plan, Entry{
			K:           k,
			ServerIndex: ServerIndex(k, w),
			PlanStart:   planStart,
			PlanEnd:     planEnd,
		})

		existing, ok := newChunks[k]
		if !ok {
			newChunks[k] = Extent{StartByte: planStart, EndByte: planEnd}
			continue
		}
		updated := existing
		if planStart < updated.StartByte {
			updated.StartByte = planStart
		}
		if planEnd > updated.EndByte {
			updated.EndByte = planEnd
		}
		newChunks[k] = updated
	}

	newSize := size
	if lastRequested+1 > newSize {
		newSize = lastRequested + 1
	}

	return &WriteResult{Plan: plan, NewSize: newSize, NewChunks: newChunks}, nil
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

func max64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}
