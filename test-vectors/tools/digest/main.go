package main

import (
	"encoding/binary"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"sort"

	sha256simd "github.com/minio/sha256-simd"
	"golang.org/x/xerrors"
)

// Prints a digest of the vectors under a directory, covering each file's relative path and content.
// Two runs emitting the same vectors produce the same digest.
func main() {
	if len(os.Args) != 2 {
		fmt.Printf("Expected exactly one argument, path of directory to digest")
		os.Exit(1)
	}
	h, err := digestDir(os.Args[1])
	if err != nil {
		fmt.Printf("Error: %s\n", err)
		os.Exit(1)
	}
	fmt.Printf("- %x\n", h)
}

func digestDir(rootDir string) ([]byte, error) {
	var paths []string
	err := filepath.Walk(rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() && filepath.Ext(path) == ".json" {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	h := sha256simd.New()
	for _, path := range paths {
		rel, err := filepath.Rel(rootDir, path)
		if err != nil {
			return nil, err
		}
		name := filepath.ToSlash(rel)
		writeLength(h, int64(len(name)))
		if _, err := io.WriteString(h, name); err != nil {
			return nil, err
		}
		if err := digestFile(h, path); err != nil {
			return nil, xerrors.Errorf("failed to read %s: %w", path, err)
		}
	}
	return h.Sum(nil), nil
}

// Writes the file's length and then its content.
func digestFile(h hash.Hash, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close() // nolint:errcheck

	info, err := f.Stat()
	if err != nil {
		return err
	}
	writeLength(h, info.Size())
	n, err := io.Copy(h, f)
	if err != nil {
		return err
	}
	if n != info.Size() {
		return xerrors.Errorf("read %d bytes, expected %d", n, info.Size())
	}
	return nil
}

func writeLength(h hash.Hash, n int64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(n))
	_, _ = h.Write(buf[:])
}
