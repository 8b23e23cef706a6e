package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/osforge/forge/cmd"
	"github.com/osforge/forge/cmd/forge/cli"
	"github.com/osforge/forge/meta"
	"github.com/osforge/forge/objstore"
	"github.com/osforge/forge/publish"
)

type publishCmd struct {
	buildID     string
	buildRoot   string
	bucket      string
	prefix      string
	acl         string
	rewrite     bool
	dryRun      bool
	freshen     bool
	skipIndex   bool
	concurrency int

	build *meta.Build
}

// DefineFlags defines the flags that are considered valid and reads their values (if provided).
func (p *publishCmd) DefineFlags() {
	cli.FlagBuild(&p.buildID)
	cli.FlagBuildDir(&p.buildRoot)
	cli.FlagBucket(&p.bucket)
	cli.FlagPrefix(&p.prefix)
	cli.FlagACL(&p.acl)
	cli.FlagCompressRewrite(&p.rewrite)
	cli.FlagDryRun(&p.dryRun)
	cli.FlagFreshen(&p.freshen)
	cli.FlagSkipIndex(&p.skipIndex)
	cli.FlagConcurrency(&p.concurrency)
}

// Args validates arguments and flags, and fills in default values.
func (p *publishCmd) Args(nargs int, args []string) error {
	if nargs != 0 {
		return cmd.FailErrCode(errors.New("publish accepts no positional arguments"), cmd.CodeForInvalidArgs, "parse arguments")
	}
	if p.bucket == "" {
		return cmd.FailErrCode(errors.New("a destination bucket is required"), cmd.CodeForInvalidArgs, "parse arguments")
	}
	if p.freshen && p.skipIndex {
		return cmd.FailErrCode(errors.New("-freshen and -skip-index are mutually exclusive"), cmd.CodeForInvalidArgs, "parse arguments")
	}
	if p.buildID == "" {
		id, err := latestBuild(p.buildRoot)
		if err != nil {
			return err
		}
		p.buildID = id
	}
	build, err := meta.ReadBuild(meta.MetaPath(p.buildRoot, p.buildID))
	if err != nil {
		return cmd.FailErrCode(err, cmd.CodeForNotFound, "read build", p.buildID)
	}
	p.build = build
	return nil
}

func (p *publishCmd) Exec() error {
	ctx := context.Background()

	var store objstore.Store
	if p.dryRun {
		store = &objstore.DryRunStore{Bucket: p.bucket, Logger: cmd.DefaultLogger}
	} else {
		s3Store, err := objstore.NewS3Store(ctx, p.bucket)
		if err != nil {
			return cmd.FailErr(err, "initialize object store client")
		}
		store = s3Store
	}

	publisher := &publish.Publisher{
		Build:             p.build,
		RootDir:           p.buildRoot,
		Store:             store,
		Prefix:            p.prefix,
		ACL:               p.acl,
		RewriteCompressed: p.rewrite,
		FreshenOnly:       p.freshen,
		SkipIndex:         p.skipIndex,
		DryRun:            p.dryRun,
		Concurrency:       p.concurrency,
		Logger:            cmd.DefaultLogger,
	}
	report, err := publisher.Publish(ctx)
	if err != nil {
		return cmd.FailErr(err, "publish build", p.buildID)
	}
	cmd.DefaultLogger.Infof("Published %d objects for build %s", len(report.Ops), p.buildID)
	return nil
}
