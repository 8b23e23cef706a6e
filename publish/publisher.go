// Package publish synchronizes a build's artifacts and the global build
// index to a remote object store. A publish run is idempotent and
// resumable: re-running it against an unchanged build re-issues the
// same writes and never fails on already-present objects.
package publish

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/osforge/forge/log"
	"github.com/osforge/forge/meta"
	"github.com/osforge/forge/objstore"
)

// Cache policy. Artifact content at a given key is immutable once
// published; the two ledger files legitimately change in place. This
// split is a correctness invariant, not a tunable.
const (
	ArtifactCacheControl = "max-age=31536000"
	MetadataCacheControl = "max-age=300"
)

type Disposition string

const (
	Uploaded      Disposition = "uploaded"
	AlreadyRemote Disposition = "already-remote"
)

// Op is one performed (or planned, under dry-run) object write.
type Op struct {
	Key         string
	Disposition Disposition
}

// Report is the ordered trace of a publish run.
type Report struct {
	mu  sync.Mutex
	Ops []Op
}

func (r *Report) add(key string, disposition Disposition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Ops = append(r.Ops, Op{Key: key, Disposition: disposition})
}

type Publisher struct {
	Build   *meta.Build
	RootDir string // builds root, holding builds.json and <id>/
	Store   objstore.Store
	Prefix  string
	ACL     string

	// RewriteCompressed enables the compression-transparency rewrite
	// for eligible artifacts.
	RewriteCompressed bool

	FreshenOnly bool // push only the global index
	SkipIndex   bool // push artifacts, skip the global index

	// DryRun performs every planning step but no existence checks, and
	// leaves the local ledger untouched; the Store is expected to be a
	// DryRunStore printing the plan.
	DryRun bool

	// Concurrency bounds parallel artifact uploads. Zero means
	// sequential. Parallelism never crosses the artifacts → record →
	// index ordering barrier.
	Concurrency int

	Logger log.Logger
}

// unit is one directory synchronized as a whole: an architecture
// subdirectory with its own record, or the build directory itself in
// the legacy flat layout.
type unit struct {
	dir    string
	subdir string // "" in the flat layout
	build  *meta.Build
}

type upload struct {
	rel   string // path relative to the unit directory
	local string
	key   string
	opts  objstore.UploadOptions
}

// Publish syncs the build. Ordering is strict within each sync unit:
// image artifacts first, then remaining files, then the unit's
// (possibly rewritten) record. In a multi-arch build every architecture
// subdirectory is its own unit; the build-level record follows them
// all, and the global index is the very last write. A crash mid-publish
// never leaves a remote record or the index pointing at missing
// objects.
func (p *Publisher) Publish(ctx context.Context) (*Report, error) {
	report := &Report{}
	if p.FreshenOnly {
		if err := p.pushIndex(ctx, report); err != nil {
			return nil, err
		}
		return report, nil
	}

	buildDir := meta.BuildDir(p.RootDir, p.Build.ID)
	archDirs, err := meta.ArchDirs(buildDir)
	if err != nil {
		return nil, err
	}

	if len(archDirs) == 0 {
		if err := p.syncUnit(ctx, unit{dir: buildDir, build: p.Build}, report); err != nil {
			return nil, err
		}
	} else {
		for _, arch := range archDirs {
			archDir := filepath.Join(buildDir, arch)
			archBuild, err := meta.ReadBuild(filepath.Join(archDir, meta.MetaFileName))
			if err != nil {
				return nil, errors.Wrapf(err, "read %s build record", arch)
			}
			u := unit{dir: archDir, subdir: arch, build: archBuild}
			if err := p.syncUnit(ctx, u, report); err != nil {
				return nil, err
			}
		}
		if err := p.syncBuildLevelFiles(ctx, buildDir, report); err != nil {
			return nil, err
		}
		if err := p.pushRecord(ctx, unit{dir: buildDir, build: p.Build}, p.Build.Clone(), report); err != nil {
			return nil, err
		}
	}

	if p.SkipIndex {
		return report, nil
	}
	if err := p.pushIndex(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

// syncUnit publishes one directory: its image artifacts in parallel,
// then its stray files, then its record.
func (p *Publisher) syncUnit(ctx context.Context, u unit, report *Report) error {
	remote := u.build.Clone()
	uploads, handled, err := p.planImages(u, remote)
	if err != nil {
		return err
	}

	group, groupCtx := errgroup.WithContext(ctx)
	if p.Concurrency > 1 {
		group.SetLimit(p.Concurrency)
	} else {
		group.SetLimit(1)
	}
	for _, artifactUpload := range uploads {
		group.Go(func() error {
			return p.syncArtifact(groupCtx, artifactUpload, report)
		})
	}
	// Barrier: nothing below starts until every artifact is in place.
	if err := group.Wait(); err != nil {
		return err
	}

	if err := p.syncStrayFiles(ctx, u, handled, report); err != nil {
		return err
	}
	return p.pushRecord(ctx, u, remote, report)
}

// planImages computes every image upload for the unit, applying the
// compression-transparency rewrite. Rewritten paths land only on the
// remote clone of the record; the on-disk record is never altered.
func (p *Publisher) planImages(u unit, remote *meta.Build) ([]upload, map[string]bool, error) {
	names := make([]string, 0, len(u.build.Images))
	for name := range u.build.Images {
		names = append(names, name)
	}
	sort.Strings(names)

	handled := map[string]bool{}
	var uploads []upload
	for _, name := range names {
		artifact := u.build.Images[name]
		rel := artifact.Path
		local := filepath.Join(u.dir, rel)
		artifactUpload := upload{
			rel:   rel,
			local: local,
			key:   p.key(u.subdir, rel),
			opts: objstore.UploadOptions{
				ACL:          p.ACL,
				CacheControl: ArtifactCacheControl,
			},
		}
		if p.RewriteCompressed {
			if stripped, ok := rewriteName(rel); ok {
				if _, err := os.Stat(local); err == nil {
					if err := verifyGzip(local); err != nil {
						return nil, nil, err
					}
				}
				artifactUpload.key = p.key(u.subdir, stripped)
				artifactUpload.opts.ContentEncoding = "gzip"
				artifactUpload.opts.ContentDisposition = fmt.Sprintf("inline; filename=%s", path.Base(filepath.ToSlash(rel)))
				artifact.Path = stripped
				remote.Images[name] = artifact
			}
		}
		handled[rel] = true
		uploads = append(uploads, artifactUpload)
	}
	return uploads, handled, nil
}

// syncArtifact uploads one artifact, honoring the
// existence-before-upload rule: a file missing locally but already
// present remotely is treated as synced; missing in both places means
// the build is incomplete and the run fails. Under dry-run the rule is
// suspended: no existence check is made and every artifact is planned
// as an upload, so the printed plan is complete even against a partial
// local checkout.
func (p *Publisher) syncArtifact(ctx context.Context, u upload, report *Report) error {
	if p.DryRun {
		if err := p.Store.Upload(ctx, u.key, u.local, u.opts); err != nil {
			return errors.Wrapf(err, "plan upload of %s", u.key)
		}
		report.add(u.key, Uploaded)
		return nil
	}
	if _, err := os.Stat(u.local); err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		present, err := p.Store.Exists(ctx, u.key)
		if err != nil {
			return errors.Wrapf(err, "check for %s", u.key)
		}
		if !present {
			return fmt.Errorf("artifact %s: not found locally and no object at %s", u.rel, u.key)
		}
		p.Logger.Infof("Object %s already present, skipping", u.key)
		report.add(u.key, AlreadyRemote)
		return nil
	}
	if err := p.Store.Upload(ctx, u.key, u.local, u.opts); err != nil {
		return errors.Wrapf(err, "upload %s", u.key)
	}
	report.add(u.key, Uploaded)
	return nil
}

// syncStrayFiles uploads unit files that are neither registered images
// nor the record, as opaque metadata.
func (p *Publisher) syncStrayFiles(ctx context.Context, u unit, handled map[string]bool, report *Report) error {
	return filepath.Walk(u.dir, func(filePath string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(u.dir, filePath)
		if err != nil {
			return err
		}
		if info.IsDir() {
			// Scratch space never leaves the builder.
			if rel == "tmp" {
				return filepath.SkipDir
			}
			return nil
		}
		if rel == meta.MetaFileName || handled[rel] {
			return nil
		}
		key := p.key(u.subdir, rel)
		opts := objstore.UploadOptions{ACL: p.ACL, CacheControl: MetadataCacheControl}
		if err := p.Store.Upload(ctx, key, filePath, opts); err != nil {
			return errors.Wrapf(err, "upload %s", key)
		}
		report.add(key, Uploaded)
		return nil
	})
}

// syncBuildLevelFiles uploads files sitting directly in a multi-arch
// build directory, outside any architecture subdirectory. They are
// build-level metadata; the artifacts all live in arch units.
func (p *Publisher) syncBuildLevelFiles(ctx context.Context, buildDir string, report *Report) error {
	entries, err := os.ReadDir(buildDir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == meta.MetaFileName {
			continue
		}
		key := p.key("", entry.Name())
		opts := objstore.UploadOptions{ACL: p.ACL, CacheControl: MetadataCacheControl}
		if err := p.Store.Upload(ctx, key, filepath.Join(buildDir, entry.Name()), opts); err != nil {
			return errors.Wrapf(err, "upload %s", key)
		}
		report.add(key, Uploaded)
	}
	return nil
}

// pushRecord uploads the remote clone of a unit's record. The clone
// carries any rewritten artifact paths; it is marshaled to a scratch
// file so the local meta.json stays untouched.
func (p *Publisher) pushRecord(ctx context.Context, u unit, remote *meta.Build, report *Report) error {
	scratch, err := os.CreateTemp("", "meta-*.json")
	if err != nil {
		return err
	}
	scratch.Close()
	defer os.Remove(scratch.Name())

	if err := remote.Write(scratch.Name()); err != nil {
		return errors.Wrap(err, "marshal remote build record")
	}
	key := p.key(u.subdir, meta.MetaFileName)
	opts := objstore.UploadOptions{ACL: p.ACL, CacheControl: MetadataCacheControl}
	if err := p.Store.Upload(ctx, key, scratch.Name(), opts); err != nil {
		return errors.Wrapf(err, "upload %s", key)
	}
	report.add(key, Uploaded)
	return nil
}

// pushIndex adds the build to the local index (idempotently), persists
// it, and uploads it. This is the final network action of a publish
// run: the index only ever names fully-uploaded builds.
func (p *Publisher) pushIndex(ctx context.Context, report *Report) error {
	indexPath := meta.IndexPath(p.RootDir)
	index, err := meta.ReadIndex(indexPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		index = &meta.Index{}
	}
	index.Add(p.Build.ID)
	if p.DryRun {
		scratch, err := os.CreateTemp("", "builds-*.json")
		if err != nil {
			return err
		}
		scratch.Close()
		defer os.Remove(scratch.Name())
		if err := index.Write(scratch.Name()); err != nil {
			return err
		}
		indexPath = scratch.Name()
	} else if err := index.Write(indexPath); err != nil {
		return errors.Wrap(err, "persist build index")
	}

	key := meta.IndexFileName
	if p.Prefix != "" {
		key = path.Join(p.Prefix, meta.IndexFileName)
	}
	opts := objstore.UploadOptions{ACL: p.ACL, CacheControl: MetadataCacheControl}
	if err := p.Store.Upload(ctx, key, indexPath, opts); err != nil {
		return errors.Wrapf(err, "upload %s", key)
	}
	report.add(key, Uploaded)
	return nil
}

// key computes the object key for a path relative to a sync unit.
func (p *Publisher) key(subdir, rel string) string {
	return path.Join(p.Prefix, p.Build.ID, subdir, filepath.ToSlash(rel))
}
