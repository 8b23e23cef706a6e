package archive

import (
	"archive/tar"
	"path/filepath"
	"strings"
	"time"
)

type TarWriter interface {
	WriteHeader(hdr *tar.Header) error
	Write(b []byte) (int, error)
	Close() error
}

// NormalizingTarWriter scrubs environment-dependent header fields so
// that archiving the same tree in any build environment produces
// byte-identical output. Boot filesystem images are built from these
// archives; without normalization the images would differ across
// builders.
type NormalizingTarWriter struct {
	TarWriter
	headerOpts []HeaderOpt
}

type HeaderOpt func(header *tar.Header) *tar.Header

func NewNormalizingTarWriter(tw TarWriter) *NormalizingTarWriter {
	return &NormalizingTarWriter{tw, []HeaderOpt{}}
}

func (tw *NormalizingTarWriter) WithUID(uid int) {
	tw.headerOpts = append(tw.headerOpts, func(hdr *tar.Header) *tar.Header {
		hdr.Uid = uid
		return hdr
	})
}

func (tw *NormalizingTarWriter) WithGID(gid int) {
	tw.headerOpts = append(tw.headerOpts, func(hdr *tar.Header) *tar.Header {
		hdr.Gid = gid
		return hdr
	})
}

// WithModes forces every directory header to dirMode and every regular
// file header to fileMode, discarding the modes found on disk.
func (tw *NormalizingTarWriter) WithModes(dirMode, fileMode int64) {
	tw.headerOpts = append(tw.headerOpts, func(hdr *tar.Header) *tar.Header {
		switch hdr.Typeflag {
		case tar.TypeDir:
			hdr.Mode = dirMode
		case tar.TypeReg:
			hdr.Mode = fileMode
		}
		return hdr
	})
}

func (tw *NormalizingTarWriter) WriteHeader(hdr *tar.Header) error {
	for _, opt := range tw.headerOpts {
		hdr = opt(hdr)
	}
	hdr.Name = filepath.ToSlash(strings.TrimPrefix(hdr.Name, filepath.VolumeName(hdr.Name)))
	hdr.ModTime = time.Date(1980, time.January, 1, 0, 0, 1, 0, time.UTC)
	hdr.Uname = ""
	hdr.Gname = ""
	return tw.TarWriter.WriteHeader(hdr)
}
