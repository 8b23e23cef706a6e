// Package assemble produces a bootable installer ISO for a build from
// its committed tree, together with the extracted kernel and initramfs,
// and registers all three in the build's metadata record.
package assemble

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/osforge/forge/log"
	"github.com/osforge/forge/meta"
)

const modulesPath = "/usr/lib/modules"

type Assembler struct {
	Build     *meta.Build
	BuildDir  string // builds/<id>
	RepoDir   string // ostree repository the commit lives in
	ConfigDir string // installer configuration payload
	Arch      string
	Force     bool
	Runner    Runner
	Logger    log.Logger

	// SyslinuxDir is where BIOS boot binaries are found. Zero value
	// means /usr/share/syslinux.
	SyslinuxDir string
}

// Assemble builds the installer ISO and updates the metadata record.
// It is idempotent: a build that already has an iso image registered is
// reported as done without any work, unless Force is set. The record is
// persisted as the very last step, so an aborted run never leaves
// meta.json pointing at files that do not exist.
func (a *Assembler) Assemble(ctx context.Context) (*meta.Build, error) {
	if _, ok := a.Build.Images["iso"]; ok && !a.Force {
		a.Logger.Infof("Build %s already has an installer ISO, skipping", a.Build.ID)
		return a.Build, nil
	}
	if a.Build.OSTreeCommit == "" {
		return nil, fmt.Errorf("build %s names no ostree commit", a.Build.ID)
	}

	config, err := LoadConfig(a.ConfigDir)
	if err != nil {
		return nil, err
	}

	scratch, err := a.setupScratch()
	if err != nil {
		return nil, err
	}
	// The staging tree's permission bits end up on the ISO; keep the
	// ambient umask from stripping them.
	oldMask := setUmask(0)
	defer setUmask(oldMask)

	kernelPath, initrdPath, err := a.extractKernel(ctx, scratch)
	if err != nil {
		return nil, err
	}

	staging := filepath.Join(scratch, "iso")
	if err := a.stagePayload(staging, config); err != nil {
		return nil, err
	}
	imagesDir := filepath.Join(staging, "images")
	if err := os.MkdirAll(imagesDir, 0755); err != nil {
		return nil, err
	}
	if err := copyFile(kernelPath, filepath.Join(imagesDir, "vmlinuz")); err != nil {
		return nil, errors.Wrap(err, "stage kernel")
	}
	if err := copyFile(initrdPath, filepath.Join(imagesDir, "initramfs.img")); err != nil {
		return nil, errors.Wrap(err, "stage initramfs")
	}

	arch := a.Arch
	if arch == "" {
		arch = HostArch()
	}
	env := &bootEnv{
		runner:      a.Runner,
		logger:      a.Logger,
		config:      config,
		scratch:     scratch,
		kernelPath:  kernelPath,
		initrdPath:  initrdPath,
		repoDir:     a.RepoDir,
		commit:      a.Build.OSTreeCommit,
		configDir:   a.ConfigDir,
		syslinuxDir: a.syslinuxDir(),
	}
	boot, err := bootConfiguratorFor(arch, env)
	if err != nil {
		return nil, err
	}
	if err := boot.stage(ctx, staging); err != nil {
		return nil, err
	}

	isoName := fmt.Sprintf("%s-%s-installer.iso", a.Build.Name, a.Build.ID)
	isoScratch := filepath.Join(scratch, isoName)
	args := []string{
		"-volid", volumeLabel(config, a.Build),
		"-rational-rock",
		"-J", "-joliet-long",
		"-o", isoScratch,
	}
	args = append(args, boot.isoArgs()...)
	args = append(args, staging)
	if err := a.Runner.Run(ctx, boot.isoTool(), args...); err != nil {
		return nil, errors.Wrap(err, "author ISO")
	}
	if err := boot.postProcess(ctx, isoScratch); err != nil {
		return nil, errors.Wrap(err, "post-process ISO")
	}

	kernelName := fmt.Sprintf("%s-%s-installer-kernel", a.Build.Name, a.Build.ID)
	initrdName := fmt.Sprintf("%s-%s-installer-initramfs.img", a.Build.Name, a.Build.ID)
	outputs := []struct {
		key, src, name string
	}{
		{"iso", isoScratch, isoName},
		{"kernel", kernelPath, kernelName},
		{"initramfs", initrdPath, initrdName},
	}
	for _, output := range outputs {
		if err := copyFile(output.src, filepath.Join(a.BuildDir, output.name)); err != nil {
			return nil, errors.Wrapf(err, "copy %s into build directory", output.key)
		}
		if err := a.Build.RegisterImage(output.key, a.BuildDir, output.name); err != nil {
			return nil, err
		}
	}

	// Persisting the record is the last action: every referenced file
	// already exists by the time it becomes visible.
	if err := a.Build.Write(filepath.Join(a.BuildDir, meta.MetaFileName)); err != nil {
		return nil, errors.Wrap(err, "persist build record")
	}
	a.Logger.Infof("Assembled %s", isoName)
	return a.Build, nil
}

// setupScratch removes any scratch directories left by previous runs
// and creates a fresh one. The directory is deliberately not removed on
// failure; it is left for diagnosis.
func (a *Assembler) setupScratch() (string, error) {
	tmpDir := filepath.Join(a.BuildDir, "tmp")
	stale, err := filepath.Glob(filepath.Join(tmpDir, "assembler-*"))
	if err != nil {
		return "", err
	}
	for _, dir := range stale {
		if err := os.RemoveAll(dir); err != nil {
			return "", errors.Wrap(err, "remove stale scratch directory")
		}
	}
	scratch := filepath.Join(tmpDir, "assembler-"+uuid.NewString())
	if err := os.MkdirAll(scratch, 0755); err != nil {
		return "", err
	}
	return scratch, nil
}

// extractKernel checks out the commit's kernel-module tree and returns
// the kernel and initramfs paths. The commit must carry exactly one
// kernel version.
func (a *Assembler) extractKernel(ctx context.Context, scratch string) (string, string, error) {
	modulesDir := filepath.Join(scratch, "modules")
	if err := a.Runner.Run(ctx, "ostree", "checkout",
		"--repo", a.RepoDir,
		"--user-mode",
		"--subpath", modulesPath,
		a.Build.OSTreeCommit, modulesDir,
	); err != nil {
		return "", "", errors.Wrap(err, "check out kernel modules")
	}

	entries, err := os.ReadDir(modulesDir)
	if err != nil {
		return "", "", err
	}
	var versions []string
	for _, entry := range entries {
		if entry.IsDir() {
			versions = append(versions, entry.Name())
		}
	}
	if len(versions) != 1 {
		return "", "", fmt.Errorf("expected exactly one kernel version under %s, found %d", modulesPath, len(versions))
	}

	kernelDir := filepath.Join(modulesDir, versions[0])
	kernelPath := filepath.Join(kernelDir, "vmlinuz")
	initrdPath := filepath.Join(kernelDir, "initramfs.img")
	for _, path := range []string{kernelPath, initrdPath} {
		if _, err := os.Stat(path); err != nil {
			return "", "", errors.Wrapf(err, "kernel version %s", versions[0])
		}
	}
	return kernelPath, initrdPath, nil
}

// stagePayload copies the installer configuration payload into the ISO
// staging root. The descriptor and the EFI payload are not staged; the
// EFI tree reaches the ISO only inside efiboot.img.
func (a *Assembler) stagePayload(staging string, config *Config) error {
	if err := os.MkdirAll(staging, 0755); err != nil {
		return err
	}
	entries, err := os.ReadDir(a.ConfigDir)
	if err != nil {
		return errors.Wrap(err, "read installer configuration payload")
	}
	for _, entry := range entries {
		if entry.Name() == ConfigFileName || entry.Name() == config.EFIDir {
			continue
		}
		src := filepath.Join(a.ConfigDir, entry.Name())
		dst := filepath.Join(staging, entry.Name())
		if entry.IsDir() {
			if err := copyTree(src, dst); err != nil {
				return err
			}
			continue
		}
		if err := copyFile(src, dst); err != nil {
			return err
		}
	}
	return nil
}

func (a *Assembler) syslinuxDir() string {
	if a.SyslinuxDir != "" {
		return a.SyslinuxDir
	}
	return "/usr/share/syslinux"
}

// HostArch maps the runtime architecture to the kernel architecture
// names used in build layouts.
func HostArch() string {
	switch runtime.GOARCH {
	case "amd64":
		return "x86_64"
	case "arm64":
		return "aarch64"
	default:
		return runtime.GOARCH
	}
}

// copyFile copies src to dst preserving the source mode.
func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// copyTree copies the contents of srcDir into dstDir, merging with
// whatever is already there. Later sources win on filename collisions.
func copyTree(srcDir, dstDir string) error {
	return filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		target := filepath.Join(dstDir, rel)
		if info.IsDir() {
			return os.MkdirAll(target, info.Mode().Perm())
		}
		return copyFile(path, target)
	})
}
