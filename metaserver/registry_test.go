package metaserver

import (
	"testing"
	"time"

	"github.com/pfs-project/pfs/errkind"
	"github.com/pfs-project/pfs/tokendir"
)

type nopNotifier struct{}

func (nopNotifier) Grant(clientID uint64, filename string, token tokendir.Token) error { return nil }
func (nopNotifier) Revoke(clientID uint64, filename string, rev tokendir.Revocation) error {
	return nil
}

func newTestRegistry() *Registry {
	return NewRegistry(3, 4096, time.Minute, nil)
}

func TestCreateAndAlreadyExists(t *testing.T) {
	r := newTestRegistry()
	if err := r.Create("f", 2); err != nil {
		t.Fatal(err)
	}
	err := r.Create("f", 2)
	if !errkind.Is(err, errkind.KindAlreadyExists) {
		t.Errorf("expected KindAlreadyExists, got %v", err)
	}
}

func TestCreateStripeWidthTooLarge(t *testing.T) {
	r := newTestRegistry()
	err := r.Create("f", 10)
	if !errkind.Is(err, errkind.KindInvalidArgument) {
		t.Errorf("expected KindInvalidArgument, got %v", err)
	}
}

func TestOpenMissingFile(t *testing.T) {
	r := newTestRegistry()
	_, err := r.Open("nope", ModeRead, 1)
	if !errkind.Is(err, errkind.KindNotFound) {
		t.Errorf("expected KindNotFound, got %v", err)
	}
}

// TestOpenDeleteRace mirrors scenario 5: A opens "g", B's delete fails
// with Busy, and after A closes, delete succeeds.
func TestOpenDeleteRace(t *testing.T) {
	r := newTestRegistry()
	if err := r.Create("g", 1); err != nil {
		t.Fatal(err)
	}
	d, err := r.Open("g", ModeRead, 1)
	if err != nil {
		t.Fatal(err)
	}

	err = r.Delete("g", nil)
	if !errkind.Is(err, errkind.KindBusy) {
		t.Errorf("expected KindBusy while open, got %v", err)
	}

	if err := r.Close(d); err != nil {
		t.Fatal(err)
	}
	if err := r.Delete("g", nil); err != nil {
		t.Errorf("expected delete to succeed after close, got %v", err)
	}
}

type recordingDestroyer struct {
	calls []struct {
		serverIndex int
		filename    string
	}
}

func (d *recordingDestroyer) DestroyChunks(serverIndex int, filename string) error {
	d.calls = append(d.calls, struct {
		serverIndex int
		filename    string
	}{serverIndex, filename})
	return nil
}

// TestDeleteFansOutToEveryStripeServer covers the dead-code gap scenario 5
// used to leave behind: destroying "g" must reach every file service
// within its stripe width, not just drop the registry record.
func TestDeleteFansOutToEveryStripeServer(t *testing.T) {
	r := newTestRegistry()
	if err := r.Create("g", 3); err != nil {
		t.Fatal(err)
	}

	destroyer := &recordingDestroyer{}
	if err := r.Delete("g", destroyer); err != nil {
		t.Fatal(err)
	}
	if len(destroyer.calls) != 3 {
		t.Fatalf("expected a DestroyChunks call per stripe server (3), got %d", len(destroyer.calls))
	}
	for i, call := range destroyer.calls {
		if call.serverIndex != i || call.filename != "g" {
			t.Errorf("call %d: expected (serverIndex=%d, filename=g), got (%d, %s)", i, i, call.serverIndex, call.filename)
		}
	}

	if _, err := r.Open("g", ModeRead, 1); !errkind.Is(err, errkind.KindNotFound) {
		t.Errorf("expected g to be gone from the registry after delete, got %v", err)
	}
}

func TestWritePlanUpdatesFileStat(t *testing.T) {
	r := newTestRegistry()
	if err := r.Create("f", 3); err != nil {
		t.Fatal(err)
	}
	d, err := r.Open("f", ModeWrite, 1)
	if err != nil {
		t.Fatal(err)
	}

	_, plan, err := r.WritePlan(d, 0, 20*1024)
	if err != nil {
		t.Fatal(err)
	}
	if len(plan) != 5 {
		t.Fatalf("expected 5 plan entries, got %d", len(plan))
	}

	meta, err := r.FileStat(d)
	if err != nil {
		t.Fatal(err)
	}
	if meta.Size != 20480 {
		t.Errorf("expected size 20480, got %d", meta.Size)
	}
	if len(meta.Chunks) != 5 {
		t.Errorf("expected 5 chunks recorded, got %d", len(meta.Chunks))
	}
}

func TestReadPlanBeforeAnyWriteIsEmpty(t *testing.T) {
	r := newTestRegistry()
	if err := r.Create("f", 1); err != nil {
		t.Fatal(err)
	}
	d, err := r.Open("f", ModeRead, 1)
	if err != nil {
		t.Fatal(err)
	}
	_, plan, err := r.ReadPlan(d, 0, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(plan) != 0 {
		t.Errorf("expected empty plan on empty file, got %v", plan)
	}
}

func TestCloseReleasesTokens(t *testing.T) {
	r := newTestRegistry()
	if err := r.Create("f", 1); err != nil {
		t.Fatal(err)
	}
	d, err := r.Open("f", ModeWrite, 7)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.RequestToken(d, 7, 0, 100, tokendir.Write, nopNotifier{}); err != nil {
		t.Fatal(err)
	}

	r.mu.Lock()
	entry := r.files["f"]
	r.mu.Unlock()
	if len(entry.tokens.Tokens()) != 1 {
		t.Fatalf("expected one token before close")
	}

	if err := r.Close(d); err != nil {
		t.Fatal(err)
	}
	if len(entry.tokens.Tokens()) != 0 {
		t.Errorf("expected no tokens for (f, client 7) after close, got %v", entry.tokens.Tokens())
	}
}
