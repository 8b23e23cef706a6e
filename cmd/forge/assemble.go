package main

import (
	"context"
	"os"

	"github.com/pkg/errors"

	"github.com/osforge/forge/assemble"
	"github.com/osforge/forge/cmd"
	"github.com/osforge/forge/cmd/forge/cli"
	"github.com/osforge/forge/meta"
)

type assembleCmd struct {
	buildID   string
	buildRoot string
	repoDir   string
	configDir string
	arch      string
	force     bool

	build *meta.Build
}

// DefineFlags defines the flags that are considered valid and reads their values (if provided).
func (a *assembleCmd) DefineFlags() {
	cli.FlagBuild(&a.buildID)
	cli.FlagBuildDir(&a.buildRoot)
	cli.FlagRepoDir(&a.repoDir)
	cli.FlagConfigDir(&a.configDir)
	cli.FlagArch(&a.arch)
	cli.FlagForce(&a.force)
}

// Args validates arguments and flags, and fills in default values.
func (a *assembleCmd) Args(nargs int, args []string) error {
	if nargs != 0 {
		return cmd.FailErrCode(errors.New("assemble accepts no positional arguments"), cmd.CodeForInvalidArgs, "parse arguments")
	}
	if a.repoDir == "" {
		return cmd.FailErrCode(errors.New("an ostree repository is required"), cmd.CodeForInvalidArgs, "parse arguments")
	}
	if a.buildID == "" {
		id, err := latestBuild(a.buildRoot)
		if err != nil {
			return err
		}
		a.buildID = id
	}
	build, err := meta.ReadBuild(meta.MetaPath(a.buildRoot, a.buildID))
	if err != nil {
		if os.IsNotExist(errors.Cause(err)) {
			return cmd.FailErrCode(err, cmd.CodeForNotFound, "find build", a.buildID)
		}
		return cmd.FailErr(err, "read build", a.buildID)
	}
	a.build = build
	return nil
}

func (a *assembleCmd) Exec() error {
	assembler := &assemble.Assembler{
		Build:     a.build,
		BuildDir:  meta.BuildDir(a.buildRoot, a.buildID),
		RepoDir:   a.repoDir,
		ConfigDir: a.configDir,
		Arch:      a.arch,
		Force:     a.force,
		Runner:    &assemble.ExecRunner{Logger: cmd.DefaultLogger},
		Logger:    cmd.DefaultLogger,
	}
	if _, err := assembler.Assemble(context.Background()); err != nil {
		return cmd.FailErr(err, "assemble installer for build", a.buildID)
	}
	return nil
}

func latestBuild(root string) (string, error) {
	index, err := meta.ReadIndex(meta.IndexPath(root))
	if err != nil {
		return "", cmd.FailErrCode(err, cmd.CodeForNotFound, "read build index")
	}
	id, err := index.Latest()
	if err != nil {
		return "", cmd.FailErrCode(err, cmd.CodeForNotFound, "resolve latest build")
	}
	return id, nil
}
