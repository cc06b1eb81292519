package rpc

// TokenType mirrors tokendir.Type over the wire, so that rpc does not
// import tokendir (and so the client can decode it without pulling in
// the metadata server's internal directory implementation).
type TokenType int

const (
	TokenRead  TokenType = 1
	TokenWrite TokenType = 2
)

// StreamHandshake is the first message a client writes on a freshly
// dialed TokenStream, identifying which client_id the connection belongs
// to so the server knows where to route later Grant/Revocation traffic.
type StreamHandshake struct {
	ClientID uint64
}

// TokenRequest is sent client->server on the TokenStream.
type TokenRequest struct {
	Descriptor uint64
	Start      uint64
	End        uint64
	Type       TokenType
	ClientID   uint64
}

// WireToken is one FileToken as it travels over the stream.
type WireToken struct {
	Start    uint64
	End      uint64
	Type     TokenType
	ClientID uint64
}

// Grant is sent server->client on a successful TokenRequest.
type Grant struct {
	Filename string
	Start    uint64
	End      uint64
	Type     TokenType
	ClientID uint64
}

// Revocation is sent server->client when one of the client's tokens is
// revoked to satisfy someone else's request. NewTokens[0] is the token
// being revoked; the rest are the remainders the client may retain.
type Revocation struct {
	Filename  string
	NewTokens []WireToken
}

// NotificationKind tags which field of ServerNotification is populated.
// The encoding package has no native sum-type support, so the stream
// always writes both fields and lets the zero-valued one go along for
// the ride; NotificationKind is what the reader actually switches on.
type NotificationKind uint8

const (
	NotificationGrant NotificationKind = iota + 1
	NotificationRevocation
)

// ServerNotification is the single message type the server ever writes
// on a TokenStream; Kind says whether Grant or Revocation is live.
type ServerNotification struct {
	Kind       NotificationKind
	Grant      Grant
	Revocation Revocation
}
