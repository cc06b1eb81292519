// Package config parses the server list file shared by every component:
// a plain text file with one address per line, line 0 naming the
// metadata service and lines 1..N naming the file services in index
// order (§6).
package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Servers is a parsed server list: the metadata service address and the
// ordered file service addresses.
type Servers struct {
	MetaAddr  string
	FileAddrs []string
}

// NumFileServers returns N, the number of file services in the list.
func (s Servers) NumFileServers() int {
	return len(s.FileAddrs)
}

// Load reads and parses the server list file at path. Blank lines are
// ignored; at least a metadata address and one file service address are
// required.
func Load(path string) (Servers, error) {
	f, err := os.Open(path)
	if err != nil {
		return Servers{}, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return Servers{}, err
	}

	if len(lines) < 2 {
		return Servers{}, fmt.Errorf("config: %s must list a metadata service address and at least one file service address", path)
	}
	return Servers{MetaAddr: lines[0], FileAddrs: lines[1:]}, nil
}
