package checksum_test

import (
	"path/filepath"
	"testing"

	"github.com/sclevine/spec"
	"github.com/sclevine/spec/report"

	"github.com/osforge/forge/checksum"
	h "github.com/osforge/forge/testhelpers"
)

func TestChecksum(t *testing.T) {
	spec.Run(t, "Checksum", testChecksum, spec.Report(report.Terminal{}))
}

func testChecksum(t *testing.T, when spec.G, it spec.S) {
	var tmpDir string

	it.Before(func() {
		tmpDir = t.TempDir()
	})

	when("#SHA256File", func() {
		it("digests the file's exact bytes as lowercase hex", func() {
			path := filepath.Join(tmpDir, "artifact")
			h.Mkfile(t, "hello", path)

			sum, err := checksum.SHA256File(path)
			h.AssertNil(t, err)
			h.AssertEq(t, sum, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824")
		})

		it("fails for a missing file", func() {
			_, err := checksum.SHA256File(filepath.Join(tmpDir, "missing"))
			h.AssertNotNil(t, err)
		})
	})

	when("#Verify", func() {
		it("accepts a matching digest", func() {
			path := filepath.Join(tmpDir, "artifact")
			h.Mkfile(t, "hello", path)

			h.AssertNil(t, checksum.Verify(path, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"))
		})

		it("rejects a stale digest", func() {
			path := filepath.Join(tmpDir, "artifact")
			h.Mkfile(t, "changed content", path)

			err := checksum.Verify(path, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824")
			h.AssertError(t, err, "checksum mismatch")
		})
	})
}
