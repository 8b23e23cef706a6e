package assemble

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/osforge/forge/meta"
)

// ConfigFileName is the descriptor shipped at the root of the installer
// configuration payload. The payload itself (boot menu templates, EFI
// binaries) is declarative data staged verbatim; the descriptor names
// the few values the assembler must know about it.
const ConfigFileName = "installer.toml"

type Config struct {
	// VolumeID overrides the generated ISO volume label.
	VolumeID string `toml:"volume-id"`
	// KernelArgs is the boot parameter line, written into the s390x
	// cdboot parameter file.
	KernelArgs string `toml:"kernel-args"`
	// EFIDir is the payload subdirectory holding the static EFI tree
	// merged into efiboot.img. Defaults to "EFI".
	EFIDir string `toml:"efi-dir"`
}

// LoadConfig reads installer.toml from the payload directory. A missing
// descriptor yields the defaults; a malformed one is an error.
func LoadConfig(dir string) (*Config, error) {
	config := &Config{EFIDir: "EFI"}
	_, err := toml.DecodeFile(filepath.Join(dir, ConfigFileName), config)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, errors.Wrapf(err, "parse %s", ConfigFileName)
	}
	if config.EFIDir == "" {
		config.EFIDir = "EFI"
	}
	return config, nil
}

// volumeLabel derives the ISO volume label. ISO 9660 caps labels at 32
// characters.
func volumeLabel(config *Config, build *meta.Build) string {
	label := config.VolumeID
	if label == "" {
		label = fmt.Sprintf("%s-%s", build.Name, build.ID)
	}
	if len(label) > 32 {
		label = label[:32]
	}
	return label
}
