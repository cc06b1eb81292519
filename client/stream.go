package client

import (
	"net"
	"sync"

	"github.com/pfs-project/pfs/encoding"
	"github.com/pfs-project/pfs/rpc"
)

// waiterKey is how a user goroutine registers interest in the next grant
// for (filename, type); per §9 a single client never has two outstanding
// requests of the same type for the same file at once, so this key is
// sufficient without a per-request id.
type waiterKey struct {
	filename string
	typ      rpc.TokenType
}

// streamHandler owns the client's one long-lived TokenStream connection:
// a dedicated listener goroutine applies grants and revocations to the
// token set and data cache (§5), while user goroutines send requests and
// block on a waiter channel until the listener signals a matching grant.
type streamHandler struct {
	conn    net.Conn
	writeMu sync.Mutex

	tokens *tokenSet
	cache  *dataCache
	stats  *stats
	// cacheMu serializes the listener's invalidate->remove->insert
	// sequence for one revocation so it is atomic to any observer,
	// per §5's "shared resource policy".
	cacheMu sync.Mutex

	waitersMu sync.Mutex
	waiters   map[waiterKey][]chan struct{}

	closeOnce sync.Once
	closed    chan struct{}
}

func dialStream(addr string, clientID uint64, cache *dataCache, tokens *tokenSet, stats *stats) (*streamHandler, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	if err := encoding.NewEncoder(conn).Encode(rpc.StreamHandshake{ClientID: clientID}); err != nil {
		conn.Close()
		return nil, err
	}
	h := &streamHandler{
		conn:    conn,
		tokens:  tokens,
		cache:   cache,
		stats:   stats,
		waiters: make(map[waiterKey][]chan struct{}),
		closed:  make(chan struct{}),
	}
	go h.listen()
	return h, nil
}

func (h *streamHandler) listen() {
	defer h.Close()
	dec := encoding.NewDecoder(h.conn)
	for {
		var n rpc.ServerNotification
		if err := dec.Decode(&n); err != nil {
			return
		}
		switch n.Kind {
		case rpc.NotificationGrant:
			h.handleGrant(n.Grant)
		case rpc.NotificationRevocation:
			h.handleRevocation(n.Revocation)
		}
	}
}

func (h *streamHandler) handleGrant(g rpc.Grant) {
	h.cacheMu.Lock()
	h.tokens.Insert(g.Filename, localToken{start: g.Start, end: g.End, typ: g.Type})
	h.cacheMu.Unlock()
	h.signal(waiterKey{filename: g.Filename, typ: g.Type})
}

func (h *streamHandler) handleRevocation(r rpc.Revocation) {
	if len(r.NewTokens) == 0 {
		return
	}
	revoked := r.NewTokens[0]
	remainders := r.NewTokens[1:]

	h.cacheMu.Lock()
	// Invalidate the data cache before the token leaves the local set,
	// so no reader observes stale bytes with a matching token (§4.4,
	// §5 ordering guarantee (b)).
	h.cache.Invalidate(r.Filename, cacheRange{start: revoked.Start, end: revoked.End})
	h.tokens.Remove(r.Filename, localToken{start: revoked.Start, end: revoked.End, typ: revoked.Type})
	for _, rem := range remainders {
		h.tokens.Insert(r.Filename, localToken{start: rem.Start, end: rem.End, typ: rem.Type})
	}
	h.cacheMu.Unlock()

	if h.stats != nil {
		h.stats.incInvalidations()
	}
}

// RequestToken sends a TokenRequest and blocks until the matching grant
// arrives or the stream closes.
func (h *streamHandler) RequestToken(descriptor uint64, clientID uint64, filename string, start, end uint64, typ rpc.TokenType) error {
	ch := h.registerWaiter(waiterKey{filename: filename, typ: typ})

	h.writeMu.Lock()
	err := encoding.NewEncoder(h.conn).Encode(rpc.TokenRequest{
		Descriptor: descriptor,
		Start:      start,
		End:        end,
		Type:       typ,
		ClientID:   clientID,
	})
	h.writeMu.Unlock()
	if err != nil {
		return err
	}

	select {
	case <-ch:
		return nil
	case <-h.closed:
		return errTransportClosed
	}
}

func (h *streamHandler) registerWaiter(key waiterKey) chan struct{} {
	ch := make(chan struct{})
	h.waitersMu.Lock()
	h.waiters[key] = append(h.waiters[key], ch)
	h.waitersMu.Unlock()
	return ch
}

func (h *streamHandler) signal(key waiterKey) {
	h.waitersMu.Lock()
	chans := h.waiters[key]
	delete(h.waiters, key)
	h.waitersMu.Unlock()
	for _, ch := range chans {
		close(ch)
	}
}

// Close shuts down the stream connection. TransportFailed on the stream
// is terminal for the client session (§7): callers must treat a closed
// streamHandler's tokens as gone.
func (h *streamHandler) Close() error {
	var err error
	h.closeOnce.Do(func() {
		close(h.closed)
		err = h.conn.Close()
	})
	return err
}
