package publish

import (
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

const compressedSuffix = ".gz"

// reservedSuffixes mark raw disk images, which must remain compressed
// end-to-end: the installers that consume them decompress them
// themselves, so serving them transparently decompressed would break
// the download flow.
var reservedSuffixes = []string{".raw.gz", ".img.gz"}

// rewriteName strips the generic compressed suffix from an artifact
// name eligible for the compression-transparency rewrite. The second
// return reports whether the rewrite applies.
func rewriteName(name string) (string, bool) {
	if !strings.HasSuffix(name, compressedSuffix) {
		return name, false
	}
	for _, reserved := range reservedSuffixes {
		if strings.HasSuffix(name, reserved) {
			return name, false
		}
	}
	return strings.TrimSuffix(name, compressedSuffix), true
}

// verifyGzip confirms the file really is a gzip stream before it is
// published with a gzip content-encoding.
func verifyGzip(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r, err := gzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "%s is not a gzip stream", path)
	}
	return r.Close()
}
