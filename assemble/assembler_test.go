package assemble_test

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	apexlog "github.com/apex/log"
	"github.com/apex/log/handlers/discard"
	"github.com/sclevine/spec"
	"github.com/sclevine/spec/report"

	"github.com/osforge/forge/assemble"
	"github.com/osforge/forge/checksum"
	"github.com/osforge/forge/meta"
	h "github.com/osforge/forge/testhelpers"
)

func TestAssembler(t *testing.T) {
	spec.Run(t, "Assembler", testAssembler, spec.Report(report.Terminal{}))
}

const testCommit = "0b1d81a5e5b0dfc0b57de921a6d8b4504dd4b09626c5bc4ae0f4ad8cee532a49"

type call struct {
	name string
	args []string
}

// fakeRunner materializes the files each external tool would produce,
// so the assembler's own staging and bookkeeping can run for real.
type fakeRunner struct {
	calls          []call
	kernelVersions []string
	failTool       string
}

func (r *fakeRunner) Run(ctx context.Context, name string, args ...string) error {
	r.calls = append(r.calls, call{name: name, args: args})
	if name == r.failTool {
		return fmt.Errorf("%s exited with status 1", name)
	}
	switch name {
	case "ostree":
		return r.checkout(args)
	case "genisoimage", "xorrisofs":
		return touch(argAfter(args, "-o"), "iso image")
	case "virt-make-fs":
		return touch(args[len(args)-1], "vfat image")
	case "mk-s390image":
		return touch(args[1], "s390 boot image")
	}
	return nil
}

func (r *fakeRunner) checkout(args []string) error {
	dst := args[len(args)-1]
	if argAfter(args, "--subpath") == "/usr/lib/modules" {
		for _, version := range r.kernelVersions {
			for _, name := range []string{"vmlinuz", "initramfs.img"} {
				if err := touch(filepath.Join(dst, version, name), name+" "+version); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return touch(filepath.Join(dst, "BOOT", "BOOTX64.EFI"), "efi binary")
}

func (r *fakeRunner) callsTo(name string) []call {
	var out []call
	for _, c := range r.calls {
		if c.name == name {
			out = append(out, c)
		}
	}
	return out
}

func argAfter(args []string, flag string) string {
	for i, arg := range args {
		if arg == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func touch(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0644)
}

func testAssembler(t *testing.T, when spec.G, it spec.S) {
	var (
		buildDir    string
		configDir   string
		syslinuxDir string
		build       *meta.Build
		runner      *fakeRunner
		assembler   *assemble.Assembler
	)

	scratchDir := func() string {
		t.Helper()
		matches, err := filepath.Glob(filepath.Join(buildDir, "tmp", "assembler-*"))
		h.AssertNil(t, err)
		h.AssertEq(t, len(matches), 1)
		return matches[0]
	}

	it.Before(func() {
		buildDir = filepath.Join(t.TempDir(), "20240101.0.0")
		h.Mkdir(t, buildDir)

		configDir = t.TempDir()
		h.Mkfile(t, "default menu.c32\n", filepath.Join(configDir, "isolinux", "isolinux.cfg"))
		h.Mkfile(t, "search --label\n", filepath.Join(configDir, "EFI", "BOOT", "grub.cfg"))
		h.Mkfile(t, `kernel-args = "coreos.inst=yes"`+"\n", filepath.Join(configDir, assemble.ConfigFileName))

		syslinuxDir = t.TempDir()
		for _, name := range []string{"isolinux.bin", "ldlinux.c32", "libcom32.c32", "libutil.c32", "vesamenu.c32"} {
			h.Mkfile(t, name, filepath.Join(syslinuxDir, name))
		}

		build = &meta.Build{
			ID:           "20240101.0.0",
			Name:         "myos",
			OSTreeCommit: testCommit,
			Images:       map[string]meta.Artifact{},
		}
		runner = &fakeRunner{kernelVersions: []string{"6.8.0-300.fc40"}}
		assembler = &assemble.Assembler{
			Build:       build,
			BuildDir:    buildDir,
			RepoDir:     "/srv/repo",
			ConfigDir:   configDir,
			Arch:        "x86_64",
			Runner:      runner,
			Logger:      &apexlog.Logger{Handler: discard.Default, Level: apexlog.InfoLevel},
			SyslinuxDir: syslinuxDir,
		}
	})

	when("#Assemble", func() {
		it("produces and registers the iso, kernel, and initramfs", func() {
			result, err := assembler.Assemble(context.Background())
			h.AssertNil(t, err)

			for key, name := range map[string]string{
				"iso":       "myos-20240101.0.0-installer.iso",
				"kernel":    "myos-20240101.0.0-installer-kernel",
				"initramfs": "myos-20240101.0.0-installer-initramfs.img",
			} {
				artifact, ok := result.Images[key]
				h.AssertEq(t, ok, true)
				h.AssertEq(t, artifact.Path, name)
				h.AssertPathExists(t, filepath.Join(buildDir, name))
				h.AssertNil(t, checksum.Verify(filepath.Join(buildDir, name), artifact.SHA256))
			}

			record, err := meta.ReadBuild(filepath.Join(buildDir, meta.MetaFileName))
			h.AssertNil(t, err)
			h.AssertEq(t, record.Images["iso"].Path, "myos-20240101.0.0-installer.iso")
		})

		it("stages the payload without the descriptor or the EFI tree", func() {
			_, err := assembler.Assemble(context.Background())
			h.AssertNil(t, err)

			staging := filepath.Join(scratchDir(), "iso")
			h.AssertPathExists(t, filepath.Join(staging, "isolinux", "isolinux.cfg"))
			h.AssertPathExists(t, filepath.Join(staging, "isolinux", "isolinux.bin"))
			h.AssertPathExists(t, filepath.Join(staging, "images", "vmlinuz"))
			h.AssertPathExists(t, filepath.Join(staging, "images", "initramfs.img"))
			h.AssertPathExists(t, filepath.Join(staging, "images", "efiboot.img"))
			for _, absent := range []string{assemble.ConfigFileName, "EFI"} {
				_, err := os.Stat(filepath.Join(staging, absent))
				h.AssertEq(t, os.IsNotExist(err), true)
			}
		})

		it("authors the ISO with BIOS and UEFI boot entries on x86_64", func() {
			_, err := assembler.Assemble(context.Background())
			h.AssertNil(t, err)

			isoCalls := runner.callsTo("genisoimage")
			h.AssertEq(t, len(isoCalls), 1)
			args := isoCalls[0].args
			h.AssertEq(t, argAfter(args, "-volid"), "myos-20240101.0.0")
			h.AssertEq(t, argAfter(args, "-b"), "isolinux/isolinux.bin")
			h.AssertEq(t, argAfter(args, "-c"), "isolinux/boot.cat")
			h.AssertEq(t, argAfter(args, "-e"), "images/efiboot.img")
			h.AssertEq(t, contains(args, "-eltorito-alt-boot"), true)
			h.AssertEq(t, contains(args, "-rational-rock"), true)

			hybridCalls := runner.callsTo("isohybrid")
			h.AssertEq(t, len(hybridCalls), 1)
			h.AssertEq(t, hybridCalls[0].args[0], "--uefi")
		})

		it("builds efiboot.img from a normalized EFI tree", func() {
			_, err := assembler.Assemble(context.Background())
			h.AssertNil(t, err)

			headers := readTarHeaders(t, filepath.Join(scratchDir(), "efiboot.tar"))
			names := map[string]*tar.Header{}
			for _, hdr := range headers {
				names[hdr.Name] = hdr
				h.AssertEq(t, hdr.Uid, 0)
				h.AssertEq(t, hdr.Gid, 0)
			}
			// Merged from the commit checkout and the installer payload.
			_, fromCommit := names["EFI/BOOT/BOOTX64.EFI"]
			h.AssertEq(t, fromCommit, true)
			grub, fromPayload := names["EFI/BOOT/grub.cfg"]
			h.AssertEq(t, fromPayload, true)
			h.AssertEq(t, grub.Mode, int64(0644))
			bootDir, ok := names["EFI/BOOT"]
			h.AssertEq(t, ok, true)
			h.AssertEq(t, bootDir.Mode, int64(0755))

			makeFS := runner.callsTo("virt-make-fs")
			h.AssertEq(t, len(makeFS), 1)
			h.AssertEq(t, makeFS[0].args[0], "--format=raw")
			h.AssertEq(t, makeFS[0].args[1], "--type=vfat")
		})

		it("is a no-op when the build already has an installer ISO", func() {
			build.Images["iso"] = meta.Artifact{Path: "myos-20240101.0.0-installer.iso", SHA256: "aaaa"}

			_, err := assembler.Assemble(context.Background())
			h.AssertNil(t, err)
			h.AssertEq(t, len(runner.calls), 0)
		})

		it("rebuilds when forced", func() {
			build.Images["iso"] = meta.Artifact{Path: "myos-20240101.0.0-installer.iso", SHA256: "aaaa"}
			assembler.Force = true

			result, err := assembler.Assemble(context.Background())
			h.AssertNil(t, err)
			h.AssertNil(t, checksum.Verify(
				filepath.Join(buildDir, result.Images["iso"].Path), result.Images["iso"].SHA256))
		})

		it("removes scratch space left by earlier runs", func() {
			h.Mkfile(t, "stale", filepath.Join(buildDir, "tmp", "assembler-dead", "modules", "leftover"))

			_, err := assembler.Assemble(context.Background())
			h.AssertNil(t, err)
			scratchDir()
		})

		it("honors a volume-id override from the descriptor", func() {
			h.Mkfile(t, `volume-id = "MYOS-INSTALL"`+"\n", filepath.Join(configDir, assemble.ConfigFileName))

			_, err := assembler.Assemble(context.Background())
			h.AssertNil(t, err)
			h.AssertEq(t, argAfter(runner.callsTo("genisoimage")[0].args, "-volid"), "MYOS-INSTALL")
		})

		it("fails when the build names no commit", func() {
			build.OSTreeCommit = ""

			_, err := assembler.Assemble(context.Background())
			h.AssertError(t, err, "names no ostree commit")
		})

		it("fails when the commit carries more than one kernel", func() {
			runner.kernelVersions = []string{"6.8.0-300.fc40", "6.9.0-100.fc41"}

			_, err := assembler.Assemble(context.Background())
			h.AssertError(t, err, "exactly one kernel version")
		})

		it("leaves no record behind when a tool fails", func() {
			runner.failTool = "genisoimage"

			_, err := assembler.Assemble(context.Background())
			h.AssertError(t, err, "author ISO")
			_, statErr := os.Stat(filepath.Join(buildDir, meta.MetaFileName))
			h.AssertEq(t, os.IsNotExist(statErr), true)
		})

		when("aarch64", func() {
			it("boots via UEFI only", func() {
				assembler.Arch = "aarch64"

				_, err := assembler.Assemble(context.Background())
				h.AssertNil(t, err)

				args := runner.callsTo("genisoimage")[0].args
				h.AssertEq(t, argAfter(args, "-e"), "images/efiboot.img")
				h.AssertEq(t, contains(args, "-b"), false)
				h.AssertEq(t, len(runner.callsTo("isohybrid")), 0)
			})
		})

		when("ppc64le", func() {
			it("selects CHRP boot and skips the EFI image", func() {
				assembler.Arch = "ppc64le"

				_, err := assembler.Assemble(context.Background())
				h.AssertNil(t, err)

				args := runner.callsTo("genisoimage")[0].args
				h.AssertEq(t, contains(args, "-chrp-boot"), true)
				h.AssertEq(t, len(runner.callsTo("virt-make-fs")), 0)
			})
		})

		when("s390x", func() {
			it("combines kernel, initramfs, and parameters into cdboot.img", func() {
				assembler.Arch = "s390x"

				_, err := assembler.Assemble(context.Background())
				h.AssertNil(t, err)

				mkCalls := runner.callsTo("mk-s390image")
				h.AssertEq(t, len(mkCalls), 1)
				h.AssertEq(t, filepath.Base(mkCalls[0].args[1]), "cdboot.img")

				prm, err := os.ReadFile(filepath.Join(scratchDir(), "cdboot.prm"))
				h.AssertNil(t, err)
				h.AssertEq(t, string(prm), "coreos.inst=yes\n")

				isoCalls := runner.callsTo("xorrisofs")
				h.AssertEq(t, len(isoCalls), 1)
				h.AssertEq(t, argAfter(isoCalls[0].args, "-b"), "images/cdboot.img")
				h.AssertEq(t, len(runner.callsTo("genisoimage")), 0)
			})
		})

		when("an unsupported architecture", func() {
			it("fails before authoring anything", func() {
				assembler.Arch = "riscv64"

				_, err := assembler.Assemble(context.Background())
				h.AssertError(t, err, "no installer boot support")
			})
		})
	})
}

func contains(args []string, flag string) bool {
	for _, arg := range args {
		if arg == flag {
			return true
		}
	}
	return false
}

func readTarHeaders(t *testing.T, path string) []*tar.Header {
	t.Helper()
	f, err := os.Open(path)
	h.AssertNil(t, err)
	defer f.Close()

	var headers []*tar.Header
	tr := tar.NewReader(f)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return headers
		}
		h.AssertNil(t, err)
		headers = append(headers, hdr)
	}
}
