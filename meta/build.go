// Package meta is the build ledger: the per-build metadata record
// (meta.json) and the global build index (builds.json). Both the
// assembler and the publisher read and mutate these records; nothing
// else in the pipeline owns them.
package meta

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"github.com/osforge/forge/checksum"
)

const (
	MetaFileName  = "meta.json"
	IndexFileName = "builds.json"
)

// KnownArches are the architecture subdirectory names a multi-arch
// build may carry. A build directory with none of these is a legacy
// flat layout.
var KnownArches = []string{"aarch64", "ppc64le", "s390x", "x86_64"}

// Artifact is one distributable file belonging to a build. Path is
// relative to the build directory; an absolute path in the record is a
// portability bug.
type Artifact struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
}

// Build is the per-build metadata record. Upstream build stages create
// it; the assembler adds image keys; the publisher reads it. Fields this
// package does not model are preserved verbatim across read/write so a
// record round-tripped through forge never loses upstream data.
type Build struct {
	ID           string
	Name         string
	OSTreeCommit string
	Images       map[string]Artifact

	extra map[string]json.RawMessage
}

func (b *Build) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	take := func(key string, dst any) error {
		msg, ok := raw[key]
		if !ok {
			return nil
		}
		delete(raw, key)
		return json.Unmarshal(msg, dst)
	}
	if err := take("id", &b.ID); err != nil {
		return errors.Wrap(err, "decode id")
	}
	if err := take("name", &b.Name); err != nil {
		return errors.Wrap(err, "decode name")
	}
	if err := take("ostree-commit", &b.OSTreeCommit); err != nil {
		return errors.Wrap(err, "decode ostree-commit")
	}
	if err := take("images", &b.Images); err != nil {
		return errors.Wrap(err, "decode images")
	}
	if b.Images == nil {
		b.Images = map[string]Artifact{}
	}
	b.extra = raw
	return nil
}

func (b *Build) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(b.extra)+4)
	for key, msg := range b.extra {
		out[key] = msg
	}
	put := func(key string, v any) error {
		msg, err := json.Marshal(v)
		if err != nil {
			return err
		}
		out[key] = msg
		return nil
	}
	if err := put("id", b.ID); err != nil {
		return nil, err
	}
	if err := put("name", b.Name); err != nil {
		return nil, err
	}
	if err := put("ostree-commit", b.OSTreeCommit); err != nil {
		return nil, err
	}
	if err := put("images", b.Images); err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

// Clone returns a deep copy. The publisher rewrites artifact paths on a
// clone when applying the compression-transparency rule; the on-disk
// record is never touched.
func (b *Build) Clone() *Build {
	images := make(map[string]Artifact, len(b.Images))
	for key, artifact := range b.Images {
		images[key] = artifact
	}
	extra := make(map[string]json.RawMessage, len(b.extra))
	for key, msg := range b.extra {
		extra[key] = msg
	}
	return &Build{
		ID:           b.ID,
		Name:         b.Name,
		OSTreeCommit: b.OSTreeCommit,
		Images:       images,
		extra:        extra,
	}
}

// RegisterImage records relPath under key, hashing the file's current
// bytes. The digest is always recomputed here; callers never supply one.
func (b *Build) RegisterImage(key, buildDir, relPath string) error {
	sum, err := checksum.SHA256File(filepath.Join(buildDir, relPath))
	if err != nil {
		return errors.Wrapf(err, "digest %s image", key)
	}
	if b.Images == nil {
		b.Images = map[string]Artifact{}
	}
	b.Images[key] = Artifact{Path: relPath, SHA256: sum}
	return nil
}

// ArchDirs returns the recognized architecture subdirectories present
// under buildDir, sorted. Empty means the build uses the legacy flat
// layout.
func ArchDirs(buildDir string) ([]string, error) {
	var dirs []string
	for _, arch := range KnownArches {
		info, err := os.Stat(filepath.Join(buildDir, arch))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			dirs = append(dirs, arch)
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}

func BuildDir(root, id string) string {
	return filepath.Join(root, id)
}

func MetaPath(root, id string) string {
	return filepath.Join(root, id, MetaFileName)
}

func IndexPath(root string) string {
	return filepath.Join(root, IndexFileName)
}

// ReadBuild reads the metadata record at path.
func ReadBuild(path string) (*Build, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read build record")
	}
	var build Build
	if err := json.Unmarshal(data, &build); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	if build.ID == "" {
		return nil, fmt.Errorf("build record %s has no id", path)
	}
	return &build, nil
}

// Write persists the record to path atomically: the record becomes
// visible all at once or not at all, so an interrupted run never leaves
// a half-written meta.json.
func (b *Build) Write(path string) error {
	data, err := json.MarshalIndent(b, "", "    ")
	if err != nil {
		return err
	}
	return writeAtomic(path, append(data, '\n'))
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
