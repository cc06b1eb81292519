package tokendir

import (
	"reflect"
	"testing"
)

type recordingNotifier struct {
	grants      []Token
	grantees    []uint64
	revocations []Revocation
	revokees    []uint64
}

func (n *recordingNotifier) Grant(clientID uint64, filename string, token Token) error {
	n.grantees = append(n.grantees, clientID)
	n.grants = append(n.grants, token)
	return nil
}

func (n *recordingNotifier) Revoke(clientID uint64, filename string, rev Revocation) error {
	n.revokees = append(n.revokees, clientID)
	n.revocations = append(n.revocations, rev)
	return nil
}

// TestRemainderRetention mirrors scenario 3: A holds READ [0,1023]; B
// requests WRITE [256,767]; A must be revoked [0,1023] with remainders
// [0,255] and [768,1023], and B must be granted WRITE [256,767].
func TestRemainderRetention(t *testing.T) {
	d := New()
	n := &recordingNotifier{}

	if err := d.Request(n, "f", 1 /* A */, 0, 1023, Read); err != nil {
		t.Fatal(err)
	}
	n.grants, n.grantees = nil, nil

	if err := d.Request(n, "f", 2 /* B */, 256, 767, Write); err != nil {
		t.Fatal(err)
	}

	if len(n.revocations) != 1 {
		t.Fatalf("expected exactly one revocation, got %d", len(n.revocations))
	}
	rev := n.revocations[0]
	if n.revokees[0] != 1 {
		t.Errorf("expected revocation sent to client 1, got %d", n.revokees[0])
	}
	wantRevoked := Token{Start: 0, End: 1023, Type: Read, ClientID: 1}
	if rev.Revoked != wantRevoked {
		t.Errorf("expected revoked token %v, got %v", wantRevoked, rev.Revoked)
	}
	wantRemainders := []Token{
		{Start: 0, End: 255, Type: Read, ClientID: 1},
		{Start: 768, End: 1023, Type: Read, ClientID: 1},
	}
	if !reflect.DeepEqual(rev.Remainders, wantRemainders) {
		t.Errorf("expected remainders %v, got %v", wantRemainders, rev.Remainders)
	}

	if len(n.grants) != 1 || n.grantees[0] != 2 {
		t.Fatalf("expected a grant to client 2, got %v / %v", n.grants, n.grantees)
	}
	wantGrant := Token{Start: 256, End: 767, Type: Write, ClientID: 2}
	if n.grants[0] != wantGrant {
		t.Errorf("expected grant %v, got %v", wantGrant, n.grants[0])
	}

	// The directory itself should now contain exactly the grant; the
	// remainders are a client-side derivation, not re-inserted server-side.
	tokens := d.Tokens()
	if len(tokens) != 1 || tokens[0] != wantGrant {
		t.Errorf("expected directory to hold only the grant, got %v", tokens)
	}
}

func TestReadReadNoConflict(t *testing.T) {
	d := New()
	n := &recordingNotifier{}
	if err := d.Request(n, "f", 1, 0, 100, Read); err != nil {
		t.Fatal(err)
	}
	n.revocations = nil
	if err := d.Request(n, "f", 2, 50, 150, Read); err != nil {
		t.Fatal(err)
	}
	if len(n.revocations) != 0 {
		t.Errorf("expected no revocations between overlapping reads, got %v", n.revocations)
	}
	if len(d.Tokens()) != 2 {
		t.Errorf("expected both read tokens retained, got %v", d.Tokens())
	}
}

func TestSameClientNoSelfConflict(t *testing.T) {
	d := New()
	n := &recordingNotifier{}
	if err := d.Request(n, "f", 1, 0, 100, Write); err != nil {
		t.Fatal(err)
	}
	n.revocations = nil
	if err := d.Request(n, "f", 1, 50, 150, Write); err != nil {
		t.Fatal(err)
	}
	if len(n.revocations) != 0 {
		t.Errorf("expected no self-revocation for the same client, got %v", n.revocations)
	}
}

func TestReleaseClient(t *testing.T) {
	d := New()
	n := &recordingNotifier{}
	d.Request(n, "f", 1, 0, 100, Read)
	d.Request(n, "f", 1, 200, 300, Write)
	d.Request(n, "f", 2, 400, 500, Read)

	released := d.ReleaseClient(1)
	if len(released) != 2 {
		t.Fatalf("expected 2 tokens released for client 1, got %d", len(released))
	}
	remaining := d.Tokens()
	if len(remaining) != 1 || remaining[0].ClientID != 2 {
		t.Errorf("expected only client 2's token to remain, got %v", remaining)
	}
}
