package assemble

import (
	"archive/tar"
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/osforge/forge/archive"
)

// ostreeBootEFIPath is where an OSTree-style commit keeps the EFI tree
// its bootloader stages install from.
const ostreeBootEFIPath = "/usr/lib/ostree-boot/efi/EFI"

// buildEFIBootImage constructs images/efiboot.img, the FAT filesystem a
// UEFI firmware boots from. The EFI/ tree is merged from the commit's
// boot EFI directory and the static payload shipped with the installer
// configuration, then packaged through a tar with forced ownership
// (0/0) and forced modes (directories 0755, files 0644) so the
// resulting filesystem image is identical regardless of the build
// environment's ambient permissions.
func buildEFIBootImage(ctx context.Context, env *bootEnv, staging string) error {
	efibootRoot := filepath.Join(env.scratch, "efiboot")
	efiTree := filepath.Join(efibootRoot, "EFI")
	if err := os.MkdirAll(efiTree, 0755); err != nil {
		return err
	}

	commitEFI := filepath.Join(env.scratch, "commit-efi")
	if err := env.runner.Run(ctx, "ostree", "checkout",
		"--repo", env.repoDir,
		"--user-mode",
		"--subpath", ostreeBootEFIPath,
		env.commit, commitEFI,
	); err != nil {
		return errors.Wrap(err, "check out commit EFI directory")
	}
	if err := copyTree(commitEFI, efiTree); err != nil {
		return errors.Wrap(err, "merge commit EFI files")
	}

	payloadEFI := filepath.Join(env.configDir, env.config.EFIDir)
	if _, err := os.Stat(payloadEFI); err == nil {
		if err := copyTree(payloadEFI, efiTree); err != nil {
			return errors.Wrap(err, "merge installer EFI payload")
		}
	}

	tarPath := filepath.Join(env.scratch, "efiboot.tar")
	if err := writeNormalizedTar(tarPath, efibootRoot); err != nil {
		return errors.Wrap(err, "archive EFI tree")
	}

	imagesDir := filepath.Join(staging, "images")
	if err := os.MkdirAll(imagesDir, 0755); err != nil {
		return err
	}
	return env.runner.Run(ctx, "virt-make-fs",
		"--format=raw",
		"--type=vfat",
		tarPath,
		filepath.Join(imagesDir, "efiboot.img"),
	)
}

func writeNormalizedTar(tarPath, srcDir string) error {
	f, err := os.Create(tarPath)
	if err != nil {
		return err
	}
	defer f.Close()

	tw := tar.NewWriter(f)
	ntw := archive.NewNormalizingTarWriter(tw)
	ntw.WithUID(0)
	ntw.WithGID(0)
	ntw.WithModes(0755, 0644)
	if err := archive.WriteDirToArchive(ntw, srcDir, ""); err != nil {
		return err
	}
	return tw.Close()
}
