package assemble

import (
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/pkg/errors"

	"github.com/osforge/forge/log"
)

// Runner invokes an external tool and blocks until it exits. The
// assembler treats every tool (ostree, genisoimage, isohybrid,
// virt-make-fs, mk-s390image) as an opaque subprocess behind this
// boundary; tests substitute a recording implementation.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ExecRunner runs tools with os/exec. Tool output goes to stderr so it
// never interleaves with anything the publisher prints on stdout.
type ExecRunner struct {
	Logger log.Logger
}

func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	r.Logger.Debugf("+ %s %s", name, strings.Join(args, " "))
	command := exec.CommandContext(ctx, name, args...)
	command.Stdout = os.Stderr
	command.Stderr = os.Stderr
	if err := command.Run(); err != nil {
		return errors.Wrapf(err, "run %s", name)
	}
	return nil
}
