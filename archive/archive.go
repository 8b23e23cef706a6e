// Package archive writes tar archives with normalized headers.
package archive

import (
	"archive/tar"
	"io"
	"os"
	"path/filepath"
)

// AddFileToArchive writes one entry to the archive under name. Sockets
// are skipped; symlink targets are preserved.
func AddFileToArchive(tw TarWriter, name, path string, fi os.FileInfo) error {
	if fi.Mode()&os.ModeSocket != 0 {
		return nil
	}
	var target string
	if fi.Mode()&os.ModeSymlink != 0 {
		var err error
		target, err = os.Readlink(path)
		if err != nil {
			return err
		}
	}
	header, err := tar.FileInfoHeader(fi, target)
	if err != nil {
		return err
	}
	header.Name = name

	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	if fi.Mode().IsRegular() {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		if _, err := io.Copy(tw, f); err != nil {
			return err
		}
	}
	return nil
}

// WriteDirToArchive archives the contents of srcDir with entry names
// relative to srcDir, optionally prefixed. Entries are written in the
// deterministic order filepath.Walk provides.
func WriteDirToArchive(tw TarWriter, srcDir, prefix string) error {
	srcDir = filepath.Clean(srcDir)

	return filepath.Walk(srcDir, func(file string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, file)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		name := filepath.ToSlash(filepath.Join(prefix, rel))
		return AddFileToArchive(tw, name, file, fi)
	})
}
