package client

import (
	"sort"
	"sync"

	"github.com/pfs-project/pfs/rpc"
)

// localToken is this client's record of one FileToken it currently
// holds.
type localToken struct {
	start uint64
	end   uint64
	typ   rpc.TokenType
}

// tokenSet is the client's local mirror of the tokens the metadata
// server has granted it, indexed by filename. It is mutated only by the
// listener goroutine (on Grant/Revocation) and read by user goroutines
// deciding whether a request is already covered (§4.3, §5).
type tokenSet struct {
	mu     sync.Mutex
	tokens map[string][]localToken
}

func newTokenSet() *tokenSet {
	return &tokenSet{tokens: make(map[string][]localToken)}
}

// Covered reports whether [start,end] of filename is already covered by
// this client's held tokens, per the coverage rule in §4.3: sort by
// start, greedily extend a cursor through any token containing it whose
// type satisfies the request (WRITE needs a WRITE token; READ is
// satisfied by either type).
func (s *tokenSet) Covered(filename string, start, end uint64, typ rpc.TokenType) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	toks := append([]localToken(nil), s.tokens[filename]...)
	sort.Slice(toks, func(i, j int) bool { return toks[i].start < toks[j].start })

	cursor := start
	for _, t := range toks {
		if cursor > end {
			break
		}
		if t.end < cursor || t.start > cursor {
			continue
		}
		if typ == rpc.TokenWrite && t.typ != rpc.TokenWrite {
			continue
		}
		if t.end+1 > cursor {
			cursor = t.end + 1
		}
	}
	return cursor > end
}

// Insert adds tok to filename's token list.
func (s *tokenSet) Insert(filename string, tok localToken) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[filename] = append(s.tokens[filename], tok)
}

// Remove drops the first token matching tok exactly from filename's
// list.
func (s *tokenSet) Remove(filename string, tok localToken) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.tokens[filename]
	for i, t := range list {
		if t == tok {
			s.tokens[filename] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// Snapshot returns a copy of the tokens currently held for filename;
// used by tests.
func (s *tokenSet) Snapshot(filename string) []localToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]localToken(nil), s.tokens[filename]...)
}
