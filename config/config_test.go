package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTestFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "servers.txt")
	if err := os.WriteFile(path, []byte(contents), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeTestFile(t, "meta:9000\nfile0:9001\nfile1:9002\nfile2:9003\n")
	servers, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if servers.MetaAddr != "meta:9000" {
		t.Errorf("expected meta:9000, got %s", servers.MetaAddr)
	}
	if servers.NumFileServers() != 3 {
		t.Errorf("expected 3 file servers, got %d", servers.NumFileServers())
	}
	want := []string{"file0:9001", "file1:9002", "file2:9003"}
	for i, addr := range want {
		if servers.FileAddrs[i] != addr {
			t.Errorf("file server %d: expected %s, got %s", i, addr, servers.FileAddrs[i])
		}
	}
}

func TestLoadIgnoresBlankLines(t *testing.T) {
	path := writeTestFile(t, "meta:9000\n\nfile0:9001\n\n")
	servers, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if servers.NumFileServers() != 1 {
		t.Errorf("expected 1 file server, got %d", servers.NumFileServers())
	}
}

func TestLoadRequiresAtLeastOneFileServer(t *testing.T) {
	path := writeTestFile(t, "meta:9000\n")
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected an error with no file servers listed")
	}
}
