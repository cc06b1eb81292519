package metaserver

import (
	"io"
	"net"
	"sync"

	"github.com/NebulousLabs/threadgroup"

	"github.com/pfs-project/pfs/encoding"
	"github.com/pfs-project/pfs/persist"
	"github.com/pfs-project/pfs/rpc"
	"github.com/pfs-project/pfs/tokendir"
)

// clientStream wraps one client's long-lived TokenStream connection.
// Writes must be serialized, since the server may need to dispatch
// several revocations followed by a grant within a single file's
// critical section (§5: "stream writes must themselves be serialized
// per-stream").
type clientStream struct {
	clientID uint64
	conn     net.Conn
	writeMu  sync.Mutex
}

func (s *clientStream) send(n rpc.ServerNotification) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return encoding.NewEncoder(s.conn).Encode(n)
}

// streamManager accepts TokenStream connections, routes TokenRequests to
// the registry, and implements tokendir.Notifier by writing Grant and
// Revocation messages to the right client's connection.
type streamManager struct {
	registry *Registry
	log      *persist.Logger
	tg       *threadgroup.ThreadGroup

	mu      sync.Mutex
	streams map[uint64]*clientStream
}

func newStreamManager(registry *Registry, log *persist.Logger, tg *threadgroup.ThreadGroup) *streamManager {
	return &streamManager{
		registry: registry,
		log:      log,
		tg:       tg,
		streams:  make(map[uint64]*clientStream),
	}
}

// Serve accepts connections on l until it is closed. Each connection's
// handler goroutine is tracked by tg, so Close can wait for every
// in-flight client handler to exit before returning.
func (m *streamManager) Serve(l net.Listener) error {
	for {
		conn, err := l.Accept()
		if err != nil {
			return err
		}
		if err := m.tg.Add(); err != nil {
			// the server is shutting down; refuse new connections.
			conn.Close()
			continue
		}
		go func() {
			defer m.tg.Done()
			m.handle(conn)
		}()
	}
}

func (m *streamManager) handle(conn net.Conn) {
	defer conn.Close()

	var hs rpc.StreamHandshake
	if err := encoding.NewDecoder(conn).Decode(&hs); err != nil {
		m.logf("stream: handshake failed: %v", err)
		return
	}

	stream := &clientStream{clientID: hs.ClientID, conn: conn}
	m.mu.Lock()
	m.streams[hs.ClientID] = stream
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		if m.streams[hs.ClientID] == stream {
			delete(m.streams, hs.ClientID)
		}
		m.mu.Unlock()
		// A dropped stream means the client loses every token it held,
		// across every file (§4.3, §5).
		for _, name := range m.registry.Filenames() {
			m.registry.ReleaseClientTokens(name, hs.ClientID)
		}
	}()

	dec := encoding.NewDecoder(conn)
	for {
		var req rpc.TokenRequest
		if err := dec.Decode(&req); err != nil {
			if err != io.EOF {
				m.logf("stream: client %d: decode error: %v", hs.ClientID, err)
			}
			return
		}
		typ := tokendir.Read
		if req.Type == rpc.TokenWrite {
			typ = tokendir.Write
		}
		if err := m.registry.RequestToken(Descriptor(req.Descriptor), req.ClientID, req.Start, req.End, typ, m); err != nil {
			m.logf("stream: client %d: token request failed: %v", hs.ClientID, err)
			return
		}
	}
}

// Grant implements tokendir.Notifier.
func (m *streamManager) Grant(clientID uint64, filename string, token tokendir.Token) error {
	stream := m.lookup(clientID)
	if stream == nil {
		return nil // client already disconnected; nothing to deliver
	}
	return stream.send(rpc.ServerNotification{
		Kind: rpc.NotificationGrant,
		Grant: rpc.Grant{
			Filename: filename,
			Start:    token.Start,
			End:      token.End,
			Type:     wireType(token.Type),
			ClientID: token.ClientID,
		},
	})
}

// Revoke implements tokendir.Notifier.
func (m *streamManager) Revoke(clientID uint64, filename string, rev tokendir.Revocation) error {
	stream := m.lookup(clientID)
	if stream == nil {
		return nil
	}
	tokens := make([]rpc.WireToken, 0, 1+len(rev.Remainders))
	tokens = append(tokens, toWireToken(rev.Revoked))
	for _, r := range rev.Remainders {
		tokens = append(tokens, toWireToken(r))
	}
	return stream.send(rpc.ServerNotification{
		Kind: rpc.NotificationRevocation,
		Revocation: rpc.Revocation{
			Filename:  filename,
			NewTokens: tokens,
		},
	})
}

func (m *streamManager) lookup(clientID uint64) *clientStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streams[clientID]
}

func (m *streamManager) logf(format string, args ...interface{}) {
	if m.log != nil {
		m.log.Printf(format, args...)
	}
}

func wireType(t tokendir.Type) rpc.TokenType {
	if t == tokendir.Write {
		return rpc.TokenWrite
	}
	return rpc.TokenRead
}

func toWireToken(t tokendir.Token) rpc.WireToken {
	return rpc.WireToken{Start: t.Start, End: t.End, Type: wireType(t.Type), ClientID: t.ClientID}
}
