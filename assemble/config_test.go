package assemble

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/sclevine/spec"
	"github.com/sclevine/spec/report"

	"github.com/osforge/forge/meta"
	h "github.com/osforge/forge/testhelpers"
)

func TestConfig(t *testing.T) {
	spec.Run(t, "Config", testConfig, spec.Report(report.Terminal{}))
}

func testConfig(t *testing.T, when spec.G, it spec.S) {
	var tmpDir string

	it.Before(func() {
		tmpDir = t.TempDir()
	})

	when("#LoadConfig", func() {
		it("returns defaults when the descriptor is absent", func() {
			config, err := LoadConfig(tmpDir)
			h.AssertNil(t, err)
			h.AssertEq(t, config.EFIDir, "EFI")
			h.AssertEq(t, config.VolumeID, "")
		})

		it("reads the descriptor", func() {
			h.Mkfile(t, "volume-id = \"MYOS\"\nkernel-args = \"quiet\"\nefi-dir = \"efi-payload\"\n",
				filepath.Join(tmpDir, ConfigFileName))

			config, err := LoadConfig(tmpDir)
			h.AssertNil(t, err)
			h.AssertEq(t, config.VolumeID, "MYOS")
			h.AssertEq(t, config.KernelArgs, "quiet")
			h.AssertEq(t, config.EFIDir, "efi-payload")
		})

		it("rejects a malformed descriptor", func() {
			h.Mkfile(t, "volume-id = [broken", filepath.Join(tmpDir, ConfigFileName))

			_, err := LoadConfig(tmpDir)
			h.AssertError(t, err, ConfigFileName)
		})
	})

	when("#volumeLabel", func() {
		it("derives the label from the build when not overridden", func() {
			label := volumeLabel(&Config{}, &meta.Build{ID: "20240101.0.0", Name: "myos"})
			h.AssertEq(t, label, "myos-20240101.0.0")
		})

		it("prefers the descriptor's volume id", func() {
			label := volumeLabel(&Config{VolumeID: "MYOS-INSTALL"}, &meta.Build{ID: "20240101.0.0", Name: "myos"})
			h.AssertEq(t, label, "MYOS-INSTALL")
		})

		it("caps the label at 32 characters", func() {
			build := &meta.Build{ID: "20240101.0.0", Name: strings.Repeat("x", 40)}
			label := volumeLabel(&Config{}, build)
			h.AssertEq(t, len(label), 32)
		})
	})
}
