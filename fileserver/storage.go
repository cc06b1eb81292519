// Package fileserver implements chunk storage for one file service: a
// disjoint slice of a file's stripes, stored as one local file per chunk
// and served over the unary RPC surface in spec §6.
package fileserver

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pfs-project/pfs/errkind"
)

// Storage owns the chunk directory for one file service instance.
type Storage struct {
	serverIndex int
	dir         string
}

// NewStorage returns a Storage rooted at dir, creating it if necessary.
func NewStorage(serverIndex int, dir string) (*Storage, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	return &Storage{serverIndex: serverIndex, dir: dir}, nil
}

// chunkPath returns the local path of chunk k of file stem, per the
// "<server_index>_<F_stem>_<k>" naming convention in §6.
func (s *Storage) chunkPath(stem string, k uint64) string {
	name := fmt.Sprintf("%d_%s_%d", s.serverIndex, stem, k)
	return filepath.Join(s.dir, name)
}

// Write stores all of buf at localOffset within chunk k of stem,
// creating the chunk file if it does not already exist. The
// chunk-relative WriteFile{k, start, end, num_bytes, offset, buf} shape
// in §6 carries more than this: the caller keeps start/end/num_bytes for
// bookkeeping, and only the local offset and the bytes themselves are
// needed to place data into the chunk file.
func (s *Storage) Write(stem string, k uint64, localOffset uint64, buf []byte) error {
	path := s.chunkPath(stem, k)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return errkind.TransportFailed(fmt.Errorf("opening chunk file %q: %w", path, err))
	}
	defer f.Close()

	if _, err := f.WriteAt(buf, int64(localOffset)); err != nil {
		return errkind.TransportFailed(fmt.Errorf("writing chunk file %q: %w", path, err))
	}
	return nil
}

// Read returns up to num bytes starting at local offset within chunk k
// of stem. It returns fewer bytes (and no error) when the chunk file is
// shorter than offset+num, mirroring a short read off the end of a
// regular file.
func (s *Storage) Read(stem string, k uint64, localOffset uint64, num uint64) ([]byte, error) {
	path := s.chunkPath(stem, k)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, errkind.NotFound(fmt.Errorf("chunk file %q does not exist", path))
	} else if err != nil {
		return nil, errkind.TransportFailed(fmt.Errorf("opening chunk file %q: %w", path, err))
	}
	defer f.Close()

	section := io.NewSectionReader(f, int64(localOffset), int64(num))
	buf := make([]byte, num)
	n, err := io.ReadFull(section, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, errkind.TransportFailed(fmt.Errorf("reading chunk file %q: %w", path, err))
	}
	return buf[:n], nil
}

// Delete removes every locally stored chunk of the file whose stem is
// stem.
func (s *Storage) Delete(stem string) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return errkind.TransportFailed(err)
	}
	prefix := strconv.Itoa(s.serverIndex) + "_" + stem + "_"
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if len(entry.Name()) >= len(prefix) && entry.Name()[:len(prefix)] == prefix {
			if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil {
				return errkind.TransportFailed(err)
			}
		}
	}
	return nil
}
