package storage

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Disk stores files under a local uploads directory, served statically by
// the HTTP layer.
type Disk struct {
	dir string
}

func NewDisk(dir string) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Disk{dir: dir}, nil
}

func (d *Disk) Save(_ context.Context, filename string, r io.Reader) (string, error) {
	name := fmt.Sprintf("%d-%d%s", time.Now().UnixMilli(), rand.Intn(1_000_000_000), filepath.Ext(filename))
	f, err := os.Create(filepath.Join(d.dir, name))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return "/uploads/" + name, nil
}

func (d *Disk) Remove(_ context.Context, locator string) error {
	rel := strings.TrimPrefix(NormalizeLocator(locator), "/uploads/")
	return os.Remove(filepath.Join(d.dir, rel))
}

// Dir is the directory served under /uploads.
func (d *Disk) Dir() string { return d.dir }
