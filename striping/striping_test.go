package striping

import (
	"reflect"
	"testing"
)

// TestWritePlanStripeBoundary mirrors the stripe-boundary write scenario:
// W=3, chunk size 4096, a single write of 20 KiB at offset 0 from an empty
// file should span chunks 0..4 on server indices 0,1,2,0,1.
func TestWritePlanStripeBoundary(t *testing.T) {
	const chunkSize = 4096
	result, err := WritePlan(3, 0, chunkSize, map[uint64]Extent{}, 0, 20*1024)
	if err != nil {
		t.Fatal(err)
	}
	if result.NewSize != 20480 {
		t.Errorf("expected new size 20480, got %d", result.NewSize)
	}
	wantServers := []int{0, 1, 2, 0, 1}
	if len(result.Plan) != len(wantServers) {
		t.Fatalf("expected %d plan entries, got %d", len(wantServers), len(result.Plan))
	}
	for i, e := range result.Plan {
		if e.K != uint64(i) {
			t.Errorf("entry %d: expected k=%d, got %d", i, i, e.K)
		}
		if e.ServerIndex != wantServers[i] {
			t.Errorf("entry %d: expected server %d, got %d", i, wantServers[i], e.ServerIndex)
		}
	}
	for k := uint64(0); k <= 3; k++ {
		ext := result.NewChunks[k]
		wantEnd := (k+1)*chunkSize - 1
		if ext.EndByte != wantEnd {
			t.Errorf("chunk %d: expected end byte %d, got %d", k, wantEnd, ext.EndByte)
		}
	}
	last := result.NewChunks[4]
	if last.EndByte != 5*chunkSize-1 {
		t.Errorf("chunk 4: expected end byte %d, got %d", 5*chunkSize-1, last.EndByte)
	}
}

// TestReadPlanEOFClipped mirrors the EOF-clipped read scenario: file size
// 1500, a read of 2000 bytes at offset 1000 returns only 500 bytes from
// chunk 0.
func TestReadPlanEOFClipped(t *testing.T) {
	const chunkSize = 4096
	chunks := map[uint64]Extent{0: {StartByte: 0, EndByte: 1499}}
	plan, err := ReadPlan(1, 1500, chunkSize, chunks, 1000, 2000)
	if err != nil {
		t.Fatal(err)
	}
	want := Plan{{K: 0, ServerIndex: 0, PlanStart: 1000, PlanEnd: 1499}}
	if !reflect.DeepEqual(plan, want) {
		t.Errorf("expected %v, got %v", want, plan)
	}
}

func TestReadPlanEmptyPastEOF(t *testing.T) {
	plan, err := ReadPlan(2, 100, 4096, map[uint64]Extent{0: {StartByte: 0, EndByte: 99}}, 100, 10)
	if err != nil {
		t.Fatal(err)
	}
	if plan != nil {
		t.Errorf("expected nil plan for offset at EOF, got %v", plan)
	}
}

func TestReadPlanStopsAtHole(t *testing.T) {
	chunks := map[uint64]Extent{0: {StartByte: 0, EndByte: 4095}}
	plan, err := ReadPlan(1, 8192, 4096, chunks, 0, 8192)
	if err != nil {
		t.Fatal(err)
	}
	if len(plan) != 1 || plan[0].K != 0 {
		t.Errorf("expected plan to stop at chunk 0 (hole at chunk 1), got %v", plan)
	}
}

func TestWritePlanRejectsOffsetPastEOF(t *testing.T) {
	_, err := WritePlan(1, 10, 4096, map[uint64]Extent{}, 20, 5)
	if err == nil {
		t.Fatal("expected error for write offset past EOF")
	}
}

func TestWritePlanExtendsExistingChunk(t *testing.T) {
	chunks := map[uint64]Extent{0: {StartByte: 0, EndByte: 99}}
	result, err := WritePlan(1, 100, 4096, chunks, 100, 50)
	if err != nil {
		t.Fatal(err)
	}
	if result.NewChunks[0].EndByte != 149 {
		t.Errorf("expected chunk 0 end byte 149, got %d", result.NewChunks[0].EndByte)
	}
	if result.NewSize != 150 {
		t.Errorf("expected new size 150, got %d", result.NewSize)
	}
}
