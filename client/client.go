// Package client implements the PFS client runtime: the API surface in
// spec §6, backed by a local token set and byte-range data cache, and a
// listener goroutine that keeps both in sync with the metadata server's
// grants and revocations.
package client

import (
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/pfs-project/pfs/build"
	"github.com/pfs-project/pfs/config"
	"github.com/pfs-project/pfs/errkind"
	"github.com/pfs-project/pfs/rpc"
)

// Mode is the access mode a file was opened with, matching the
// client-facing constants in §6 (1=READ, 2=WRITE).
type Mode int

const (
	ModeRead  Mode = 1
	ModeWrite Mode = 2
)

// Metadata is the attribute set fstat() returns.
type Metadata struct {
	Name        string
	Size        uint64
	CTime       time.Time
	MTime       time.Time
	StripeWidth int
	Chunks      []rpc.ChunkExtent
}

type openFile struct {
	name string
	mode Mode
}

// Client is one PFS client session: a connection to the metadata
// service's unary surface and TokenStream, a handle to every file
// service, and the local caches the read/write path consults.
type Client struct {
	id uint64

	meta      *rpcClient
	fileAddrs []string
	files     []*rpcClient
	chunkSize uint64

	stream *streamHandler
	tokens *tokenSet
	cache  *dataCache
	stats  *stats

	mu          sync.Mutex
	descriptors map[uint64]openFile
}

// Initialize dials the metadata service named in servers, registers a
// new client_id, and opens the TokenStream. This is the client library's
// initialize() entry point.
func Initialize(servers config.Servers) (*Client, error) {
	meta := newRPCClient(servers.MetaAddr)

	var initResp rpc.InitializeResponse
	if err := meta.call(rpc.MetaPathInitialize, nil, &initResp); err != nil {
		return nil, err
	}

	files := make([]*rpcClient, len(servers.FileAddrs))
	for i, addr := range servers.FileAddrs {
		files[i] = newRPCClient(addr)
	}

	c := &Client{
		id:          initResp.ClientID,
		meta:        meta,
		fileAddrs:   servers.FileAddrs,
		files:       files,
		chunkSize:   build.ChunkSize(),
		tokens:      newTokenSet(),
		cache:       newDataCache(build.ClientCacheBlocks()),
		stats:       newStats(),
		descriptors: make(map[uint64]openFile),
	}
	c.cache.onEvict = func(string) { c.stats.incEvictions() }

	streamAddr, err := streamAddrForMeta(servers.MetaAddr)
	if err != nil {
		return nil, err
	}
	stream, err := dialStream(streamAddr, c.id, c.cache, c.tokens, c.stats)
	if err != nil {
		return nil, err
	}
	c.stream = stream
	return c, nil
}

// streamAddrForMeta derives the TokenStream port from the metadata
// service's unary control address: by convention the stream listens one
// port above the HTTP control surface, so a single config line can name
// both (§6 leaves the stream's own address unspecified).
func streamAddrForMeta(metaAddr string) (string, error) {
	host, port, err := splitHostPort(metaAddr)
	if err != nil {
		return "", errkind.InvalidArgument(err)
	}
	return fmt.Sprintf("%s:%d", host, port+1), nil
}

// Finish tears down the client session, closing the TokenStream; the
// metadata service reacts to the disconnect by releasing every token
// this client held (§5).
func (c *Client) Finish() error {
	return c.stream.Close()
}

// Create registers a new empty file with the given stripe width.
func (c *Client) Create(name string, stripeWidth int) error {
	return c.meta.call(rpc.MetaPathCreateFile, rpc.CreateFileRequest{Name: name, StripeWidth: stripeWidth}, nil)
}

// Open opens name in mode and returns a descriptor.
func (c *Client) Open(name string, mode Mode) (uint64, error) {
	var resp rpc.OpenFileResponse
	err := c.meta.call(rpc.MetaPathOpenFile, rpc.OpenFileRequest{
		Name:     name,
		Mode:     int(mode),
		ClientID: c.id,
	}, &resp)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.descriptors[resp.Descriptor] = openFile{name: name, mode: mode}
	c.mu.Unlock()
	return resp.Descriptor, nil
}

// Close releases a descriptor, dropping every token this client held on
// its file and evicting its cached blocks.
func (c *Client) Close(descriptor uint64) error {
	c.mu.Lock()
	of, ok := c.descriptors[descriptor]
	delete(c.descriptors, descriptor)
	c.mu.Unlock()
	if !ok {
		return errkind.InvalidArgument(fmt.Errorf("descriptor %d is not open", descriptor))
	}

	if err := c.meta.call(rpc.MetaPathCloseFile, rpc.CloseFileRequest{Descriptor: descriptor}, nil); err != nil {
		return err
	}
	c.tokens.mu.Lock()
	delete(c.tokens.tokens, of.name)
	c.tokens.mu.Unlock()

	evicted := c.cache.Close(of.name)
	c.stats.incCloseEvictions(evicted)
	return nil
}

// Delete removes name from the registry; fails with Busy if any
// descriptor is still open against it.
func (c *Client) Delete(name string) error {
	return c.meta.call(rpc.MetaPathDeleteFile, rpc.DeleteFileRequest{Name: name}, nil)
}

// Fstat returns the attributes and striping recipe of an open file.
func (c *Client) Fstat(descriptor uint64) (Metadata, error) {
	var resp rpc.FileMetadataResponse
	if err := c.meta.call(rpc.MetaPathFileMetadata, rpc.FileMetadataRequest{Descriptor: descriptor}, &resp); err != nil {
		return Metadata{}, err
	}
	return Metadata{
		Name:        resp.Name,
		Size:        resp.Size,
		CTime:       resp.CTime,
		MTime:       resp.MTime,
		StripeWidth: resp.StripeWidth,
		Chunks:      resp.Chunks,
	}, nil
}

// ExecStat returns a snapshot of this client's cache/token counters.
func (c *Client) ExecStat() ExecStats {
	return c.stats.Snapshot()
}

func (c *Client) descriptorFile(descriptor uint64) (openFile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	of, ok := c.descriptors[descriptor]
	if !ok {
		return openFile{}, errkind.InvalidArgument(fmt.Errorf("descriptor %d is not open", descriptor))
	}
	return of, nil
}

func splitHostPort(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, err
	}
	return host, port, nil
}
