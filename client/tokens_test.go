package client

import (
	"testing"

	"github.com/pfs-project/pfs/rpc"
)

func TestCoveredEmptyIsNotCovered(t *testing.T) {
	s := newTokenSet()
	if s.Covered("f", 0, 10, rpc.TokenRead) {
		t.Error("expected no coverage with no tokens held")
	}
}

func TestCoveredReadSatisfiedByWrite(t *testing.T) {
	s := newTokenSet()
	s.Insert("f", localToken{start: 0, end: 100, typ: rpc.TokenWrite})
	if !s.Covered("f", 10, 50, rpc.TokenRead) {
		t.Error("expected a WRITE token to satisfy a READ request")
	}
}

func TestCoveredWriteNotSatisfiedByRead(t *testing.T) {
	s := newTokenSet()
	s.Insert("f", localToken{start: 0, end: 100, typ: rpc.TokenRead})
	if s.Covered("f", 10, 50, rpc.TokenWrite) {
		t.Error("did not expect a READ token to satisfy a WRITE request")
	}
}

func TestCoveredAcrossMultipleTokens(t *testing.T) {
	s := newTokenSet()
	s.Insert("f", localToken{start: 0, end: 255, typ: rpc.TokenRead})
	s.Insert("f", localToken{start: 768, end: 1023, typ: rpc.TokenRead})
	if s.Covered("f", 0, 1023, rpc.TokenRead) {
		t.Error("expected a gap between the two tokens to leave the range uncovered")
	}
	if !s.Covered("f", 0, 255, rpc.TokenRead) {
		t.Error("expected the first token alone to cover its own range")
	}
}

func TestRemoveAndInsertRemainders(t *testing.T) {
	s := newTokenSet()
	whole := localToken{start: 0, end: 1023, typ: rpc.TokenRead}
	s.Insert("f", whole)
	s.Remove("f", whole)
	s.Insert("f", localToken{start: 0, end: 255, typ: rpc.TokenRead})
	s.Insert("f", localToken{start: 768, end: 1023, typ: rpc.TokenRead})

	got := s.Snapshot("f")
	if len(got) != 2 {
		t.Fatalf("expected 2 remainder tokens, got %v", got)
	}
}
