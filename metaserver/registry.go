// Package metaserver implements the metadata service: the file registry,
// descriptor table, and per-file token directory described in spec
// §4.2-4.3, plus the RPC surface in §6 that exposes them to clients.
package metaserver

import (
	"fmt"
	"sync"
	"time"

	"github.com/pfs-project/pfs/errkind"
	"github.com/pfs-project/pfs/filelock"
	"github.com/pfs-project/pfs/persist"
	"github.com/pfs-project/pfs/striping"
	"github.com/pfs-project/pfs/tokendir"
)

// Mode is the access mode a descriptor was opened with.
type Mode int

const (
	ModeRead Mode = iota + 1
	ModeWrite
)

// Descriptor identifies an open (file, mode, client) triple.
type Descriptor uint64

// Recipe is the striping layout and chunk set of a file, as reported by
// FileStat.
type Recipe struct {
	StripeWidth int
	Chunks      map[uint64]striping.Extent
}

// Metadata is the full attribute set FileStat returns.
type Metadata struct {
	Name  string
	Size  uint64
	CTime time.Time
	MTime time.Time
	Recipe
}

// fileEntry is the registry's private record for one file: its
// attributes, the descriptors currently open against it, and the
// critical section (lock + token directory) that guards both.
type fileEntry struct {
	name        string
	stripeWidth int
	size        uint64
	ctime       time.Time
	mtime       time.Time
	chunks      map[uint64]striping.Extent

	openDescriptors map[Descriptor]struct{}

	lock   *filelock.FileLock
	tokens *tokendir.Directory
}

type descriptorEntry struct {
	filename string
	mode     Mode
	clientID uint64
}

// Registry is the metadata server's in-memory state: the file table, the
// descriptor table, and a lock+token-directory pair per file. Nothing is
// persisted; a restart starts from empty, matching the core's Non-goals.
type Registry struct {
	numFileServers int
	chunkSize      uint64
	maxLockHold    time.Duration
	log            *persist.Logger

	mu             sync.Mutex
	files          map[string]*fileEntry
	descriptors    map[Descriptor]*descriptorEntry
	nextDescriptor Descriptor
	nextClientID   uint64
}

// NewRegistry returns an empty registry for a deployment with
// numFileServers file services and the given per-chunk byte size.
func NewRegistry(numFileServers int, chunkSize uint64, maxLockHold time.Duration, log *persist.Logger) *Registry {
	return &Registry{
		numFileServers: numFileServers,
		chunkSize:      chunkSize,
		maxLockHold:    maxLockHold,
		log:            log,
		files:          make(map[string]*fileEntry),
		descriptors:    make(map[Descriptor]*descriptorEntry),
		nextDescriptor: 3, // 0-2 reserved, matching stdin/stdout/stderr-style fds in the client API
	}
}

// NextClientID hands out a fresh client identifier for Initialize.
func (r *Registry) NextClientID() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextClientID++
	return r.nextClientID
}

// Create registers a new empty file with the given stripe width.
func (r *Registry) Create(name string, stripeWidth int) error {
	if stripeWidth < 1 || stripeWidth > r.numFileServers {
		return errkind.InvalidArgument(fmt.Errorf("stripe width %d exceeds file service count %d", stripeWidth, r.numFileServers))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.files[name]; ok {
		return errkind.AlreadyExists(fmt.Errorf("file %q already exists", name))
	}
	now := time.Now()
	r.files[name] = &fileEntry{
		name:            name,
		stripeWidth:     stripeWidth,
		chunks:          make(map[uint64]striping.Extent),
		openDescriptors: make(map[Descriptor]struct{}),
		ctime:           now,
		mtime:           now,
		lock:            filelock.New(r.maxLockHold, r.log),
		tokens:          tokendir.New(),
	}
	return nil
}

// Open allocates a fresh descriptor bound to (name, mode, clientID).
// Multiple clients may open the same file in any mode simultaneously;
// conflicting access is arbitrated later by the token protocol, not here.
func (r *Registry) Open(name string, mode Mode, clientID uint64) (Descriptor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.files[name]
	if !ok {
		return 0, errkind.NotFound(fmt.Errorf("file %q does not exist", name))
	}

	d := r.nextDescriptor
	r.nextDescriptor++
	r.descriptors[d] = &descriptorEntry{filename: name, mode: mode, clientID: clientID}
	entry.openDescriptors[d] = struct{}{}
	return d, nil
}

// Close drops the descriptor and releases every token the closing client
// held for that file, non-blockingly: the directory simply removes them,
// with no notification to the closer.
func (r *Registry) Close(d Descriptor) error {
	r.mu.Lock()
	desc, ok := r.descriptors[d]
	if !ok {
		r.mu.Unlock()
		return errkind.NotFound(fmt.Errorf("descriptor %d is not open", d))
	}
	entry := r.files[desc.filename]
	delete(r.descriptors, d)
	if entry != nil {
		delete(entry.openDescriptors, d)
	}
	r.mu.Unlock()

	if entry == nil {
		return nil
	}
	ticket := entry.lock.Lock("Close")
	entry.tokens.ReleaseClient(desc.clientID)
	entry.lock.Unlock("Close", ticket)
	return nil
}

// ChunkDestroyer removes every locally stored chunk of a file from one
// file service, identified by its index within the file's stripe.
// Delete uses it to fan a file's destruction out across every file
// service that could hold one of its chunks, per §3: "chunks ... are
// destroyed only by file delete."
type ChunkDestroyer interface {
	DestroyChunks(serverIndex int, filename string) error
}

// Delete removes a file's registry entry and, via destroyer, the chunk
// files it owns on every file service within its stripe width. It
// fails if the file is missing or if any descriptor is still open
// against it. The registry entry is removed before the fan-out runs,
// since a file with no open descriptors can never be reopened (Open
// only resolves existing entries), so no client can observe the brief
// window where the record is gone but a chunk delete is still in
// flight. destroyer may be nil, e.g. in tests that don't stand up real
// file services; Delete then only removes the registry entry.
func (r *Registry) Delete(name string, destroyer ChunkDestroyer) error {
	r.mu.Lock()
	entry, ok := r.files[name]
	if !ok {
		r.mu.Unlock()
		return errkind.NotFound(fmt.Errorf("file %q does not exist", name))
	}
	if len(entry.openDescriptors) > 0 {
		r.mu.Unlock()
		return errkind.Busy(fmt.Errorf("file %q is open by %d descriptor(s)", name, len(entry.openDescriptors)))
	}
	stripeWidth := entry.stripeWidth
	delete(r.files, name)
	r.mu.Unlock()

	if destroyer == nil {
		return nil
	}
	var errs []error
	for i := 0; i < stripeWidth; i++ {
		if err := destroyer.DestroyChunks(i, name); err != nil {
			errs = append(errs, err)
		}
	}
	return errkind.Compose(errs...)
}

// lookup resolves a descriptor to its file entry and access mode,
// without taking the file's lock.
func (r *Registry) lookup(d Descriptor) (*fileEntry, *descriptorEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	desc, ok := r.descriptors[d]
	if !ok {
		return nil, nil, errkind.NotFound(fmt.Errorf("descriptor %d is not open", d))
	}
	entry, ok := r.files[desc.filename]
	if !ok {
		return nil, nil, errkind.NotFound(fmt.Errorf("file %q no longer exists", desc.filename))
	}
	return entry, desc, nil
}

// FileStat returns a snapshot of the file's recipe and attributes.
func (r *Registry) FileStat(d Descriptor) (Metadata, error) {
	entry, _, err := r.lookup(d)
	if err != nil {
		return Metadata{}, err
	}

	ticket := entry.lock.RLock("FileStat")
	defer entry.lock.RUnlock("FileStat", ticket)

	chunks := make(map[uint64]striping.Extent, len(entry.chunks))
	for k, e := range entry.chunks {
		chunks[k] = e
	}
	return Metadata{
		Name:  entry.name,
		Size:  entry.size,
		CTime: entry.ctime,
		MTime: entry.mtime,
		Recipe: Recipe{
			StripeWidth: entry.stripeWidth,
			Chunks:      chunks,
		},
	}, nil
}

// ReadPlan computes the striping plan for a read, per §4.1. It takes no
// side effects beyond the read itself.
func (r *Registry) ReadPlan(d Descriptor, offset, numBytes uint64) (string, striping.Plan, error) {
	entry, desc, err := r.lookup(d)
	if err != nil {
		return "", nil, err
	}
	if desc.mode != ModeRead && desc.mode != ModeWrite {
		return "", nil, errkind.InvalidArgument(fmt.Errorf("descriptor %d has unrecognized mode %d", d, desc.mode))
	}

	ticket := entry.lock.RLock("ReadPlan")
	defer entry.lock.RUnlock("ReadPlan", ticket)

	plan, err := striping.ReadPlan(entry.stripeWidth, entry.size, r.chunkSize, entry.chunks, offset, numBytes)
	if err != nil {
		return "", nil, errkind.InvalidArgument(err)
	}
	return entry.name, plan, nil
}

// WritePlan computes the striping plan for a write and applies its size
// and chunk-map side effects to the file record synchronously, before
// returning, per §4.2.
func (r *Registry) WritePlan(d Descriptor, offset, numBytes uint64) (string, striping.Plan, error) {
	entry, desc, err := r.lookup(d)
	if err != nil {
		return "", nil, err
	}
	if desc.mode != ModeWrite {
		return "", nil, errkind.InvalidArgument(fmt.Errorf("descriptor %d was not opened for writing", d))
	}

	ticket := entry.lock.Lock("WritePlan")
	defer entry.lock.Unlock("WritePlan", ticket)

	result, err := striping.WritePlan(entry.stripeWidth, entry.size, r.chunkSize, entry.chunks, offset, numBytes)
	if err != nil {
		return "", nil, errkind.InvalidArgument(err)
	}
	entry.chunks = result.NewChunks
	entry.size = result.NewSize
	entry.mtime = time.Now()
	return entry.name, result.Plan, nil
}

// RequestToken resolves a TokenRequest against filename's token
// directory, revoking conflicting tokens and granting the requested one,
// per §4.3. notifier delivers Grant/Revocation to the affected clients'
// streams while the file's critical section is held.
func (r *Registry) RequestToken(d Descriptor, clientID uint64, start, end uint64, typ tokendir.Type, notifier tokendir.Notifier) error {
	entry, _, err := r.lookup(d)
	if err != nil {
		return err
	}

	ticket := entry.lock.Lock("RequestToken")
	defer entry.lock.Unlock("RequestToken", ticket)

	return entry.tokens.Request(notifier, entry.name, clientID, start, end, typ)
}

// ReleaseClientTokens drops every token clientID holds on name. Stream
// disconnect calls it for every file, since per §5 a dropped stream
// releases all of a client's tokens; Close releases the closing client's
// tokens through the file's directory directly.
func (r *Registry) ReleaseClientTokens(name string, clientID uint64) {
	r.mu.Lock()
	entry, ok := r.files[name]
	r.mu.Unlock()
	if !ok {
		return
	}
	ticket := entry.lock.Lock("ReleaseClientTokens")
	entry.tokens.ReleaseClient(clientID)
	entry.lock.Unlock("ReleaseClientTokens", ticket)
}

// Filenames returns a snapshot of every file name currently registered;
// used to release a disconnected client's tokens across all files.
func (r *Registry) Filenames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.files))
	for name := range r.files {
		names = append(names, name)
	}
	return names
}
