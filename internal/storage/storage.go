package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/hedeshawqiomer/my-app-backend/internal/config"
)

// Store is the physical file backing for post images. Save runs before a
// post is persisted; Remove is advisory cleanup after image rows are gone.
type Store interface {
	Save(ctx context.Context, filename string, r io.Reader) (string, error)
	Remove(ctx context.Context, locator string) error
}

// New picks the backend from config. Disk is the default; s3 is opt-in.
func New(ctx context.Context, cfg config.Config) (Store, error) {
	switch cfg.StorageBackend {
	case "", "disk":
		return NewDisk(cfg.UploadsDir)
	case "s3":
		return NewS3(ctx, cfg)
	}
	return nil, fmt.Errorf("unknown storage backend: %s", cfg.StorageBackend)
}

// NormalizeLocator canonicalizes any representation of an image reference
// (full URL, bare filename, path with or without the uploads prefix) to the
// root-relative "/uploads/<name>" form stored in the database, so equivalent
// spellings of the same file compare equal.
func NormalizeLocator(in string) string {
	if u, err := url.Parse(in); err == nil && u.Host != "" {
		in = u.Path
	}
	in = "/" + strings.TrimLeft(in, "/")
	if strings.HasPrefix(in, "/uploads/") {
		return in
	}
	return "/uploads" + in
}
