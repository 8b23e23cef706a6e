package objstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/osforge/forge/log"
)

// DryRunStore prints every operation it would have performed and
// touches nothing. Existence checks are not made either: every object
// is reported as "would upload" so the printed plan is complete.
type DryRunStore struct {
	Bucket string
	Logger log.Logger
}

func (s *DryRunStore) Exists(ctx context.Context, key string) (bool, error) {
	return false, nil
}

func (s *DryRunStore) Upload(ctx context.Context, key, path string, opts UploadOptions) error {
	var headers []string
	if opts.ACL != "" {
		headers = append(headers, "acl="+opts.ACL)
	}
	if opts.CacheControl != "" {
		headers = append(headers, fmt.Sprintf("cache-control=%q", opts.CacheControl))
	}
	if opts.ContentEncoding != "" {
		headers = append(headers, "content-encoding="+opts.ContentEncoding)
	}
	if opts.ContentDisposition != "" {
		headers = append(headers, fmt.Sprintf("content-disposition=%q", opts.ContentDisposition))
	}
	s.Logger.Infof("would upload %s to s3://%s/%s [%s]", path, s.Bucket, key, strings.Join(headers, " "))
	return nil
}
