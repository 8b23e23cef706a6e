package assemble

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/osforge/forge/log"
)

// bootEnv carries the inputs every architecture's boot construction
// draws from.
type bootEnv struct {
	runner      Runner
	logger      log.Logger
	config      *Config
	scratch     string
	kernelPath  string // extracted vmlinuz in the scratch dir
	initrdPath  string // extracted initramfs.img in the scratch dir
	repoDir     string
	commit      string
	configDir   string
	syslinuxDir string // BIOS boot binaries, normally /usr/share/syslinux
}

// bootConfigurator is the per-architecture boot mechanics. Each variant
// stages its boot assets into the ISO tree, contributes its ISO-tool
// flags, and optionally post-processes the authored image.
type bootConfigurator interface {
	stage(ctx context.Context, staging string) error
	isoTool() string
	isoArgs() []string
	postProcess(ctx context.Context, isoPath string) error
}

func bootConfiguratorFor(arch string, env *bootEnv) (bootConfigurator, error) {
	switch arch {
	case "x86_64":
		return &x86Boot{env}, nil
	case "aarch64":
		return &aarch64Boot{env}, nil
	case "ppc64le":
		return &ppc64leBoot{env}, nil
	case "s390x":
		return &s390xBoot{env}, nil
	}
	return nil, fmt.Errorf("no installer boot support for architecture %s", arch)
}

// x86Boot boots via BIOS (syslinux, El Torito) with a UEFI alternate
// boot entry, and is patched afterwards to also boot when raw-written
// to a USB device.
type x86Boot struct {
	env *bootEnv
}

// syslinuxFiles are the BIOS boot binaries copied out of the build
// environment's syslinux installation.
var syslinuxFiles = []string{"isolinux.bin", "ldlinux.c32", "libcom32.c32", "libutil.c32", "vesamenu.c32"}

func (b *x86Boot) stage(ctx context.Context, staging string) error {
	isolinuxDir := filepath.Join(staging, "isolinux")
	if err := os.MkdirAll(isolinuxDir, 0755); err != nil {
		return err
	}
	for _, name := range syslinuxFiles {
		src := filepath.Join(b.env.syslinuxDir, name)
		if _, err := os.Stat(src); os.IsNotExist(err) {
			return fmt.Errorf("syslinux file %s not found in %s", name, b.env.syslinuxDir)
		}
		dst := filepath.Join(isolinuxDir, name)
		if err := copyFile(src, dst); err != nil {
			return errors.Wrapf(err, "stage %s", name)
		}
		// The BIOS boot path loads these directly; they must be executable.
		if err := os.Chmod(dst, 0755); err != nil {
			return err
		}
	}
	return buildEFIBootImage(ctx, b.env, staging)
}

func (b *x86Boot) isoTool() string {
	return "genisoimage"
}

func (b *x86Boot) isoArgs() []string {
	return []string{
		"-b", "isolinux/isolinux.bin",
		"-c", "isolinux/boot.cat",
		"-no-emul-boot",
		"-boot-load-size", "4",
		"-boot-info-table",
		"-eltorito-alt-boot",
		"-e", "images/efiboot.img",
		"-no-emul-boot",
	}
}

func (b *x86Boot) postProcess(ctx context.Context, isoPath string) error {
	// Hybrid-MBR patch: makes the image bootable when written raw to a
	// USB block device.
	return b.env.runner.Run(ctx, "isohybrid", "--uefi", isoPath)
}

// aarch64Boot boots via UEFI only; efiboot.img is the sole boot entry.
type aarch64Boot struct {
	env *bootEnv
}

func (b *aarch64Boot) stage(ctx context.Context, staging string) error {
	return buildEFIBootImage(ctx, b.env, staging)
}

func (b *aarch64Boot) isoTool() string {
	return "genisoimage"
}

func (b *aarch64Boot) isoArgs() []string {
	return []string{
		"-e", "images/efiboot.img",
		"-no-emul-boot",
	}
}

func (b *aarch64Boot) postProcess(ctx context.Context, isoPath string) error {
	return nil
}

// ppc64leBoot selects CHRP boot mode; no boot image construction.
type ppc64leBoot struct {
	env *bootEnv
}

func (b *ppc64leBoot) stage(ctx context.Context, staging string) error {
	return nil
}

func (b *ppc64leBoot) isoTool() string {
	return "genisoimage"
}

func (b *ppc64leBoot) isoArgs() []string {
	return []string{"-chrp-boot"}
}

func (b *ppc64leBoot) postProcess(ctx context.Context, isoPath string) error {
	return nil
}

// s390xBoot combines kernel, initramfs, and boot parameters into a
// single boot image before ISO creation, and requires a different ISO
// authoring tool than the other architectures.
type s390xBoot struct {
	env *bootEnv
}

func (b *s390xBoot) stage(ctx context.Context, staging string) error {
	imagesDir := filepath.Join(staging, "images")
	if err := os.MkdirAll(imagesDir, 0755); err != nil {
		return err
	}
	parameterFile := filepath.Join(b.env.scratch, "cdboot.prm")
	if err := os.WriteFile(parameterFile, []byte(b.env.config.KernelArgs+"\n"), 0644); err != nil {
		return errors.Wrap(err, "write boot parameter file")
	}
	return b.env.runner.Run(ctx, "mk-s390image",
		b.env.kernelPath,
		filepath.Join(imagesDir, "cdboot.img"),
		"-r", b.env.initrdPath,
		"-p", parameterFile,
	)
}

func (b *s390xBoot) isoTool() string {
	return "xorrisofs"
}

func (b *s390xBoot) isoArgs() []string {
	return []string{
		"-no-emul-boot",
		"-b", "images/cdboot.img",
	}
}

func (b *s390xBoot) postProcess(ctx context.Context, isoPath string) error {
	return nil
}
