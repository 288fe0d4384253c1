package sources

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// remoteCache stores downloaded objects at <dir>/<etag>-<key>. With keep
// set, a file already present for the same etag is reused and files stay
// on disk after scanning; otherwise each file is removed once scanned.
type remoteCache struct {
	dir  string
	keep bool
}

func newRemoteCache(base, source string, keep bool) (*remoteCache, error) {
	if base == "" {
		base = "data"
	}
	dir := filepath.Join(base, source)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &remoteCache{dir: dir, keep: keep}, nil
}

func (c *remoteCache) path(etag, key string) string {
	etag = strings.Trim(etag, `"`)
	name := strings.NewReplacer("/", "_", `\`, "_").Replace(key)
	return filepath.Join(c.dir, etag+"-"+name)
}

// fetch returns the local path of the object, downloading it unless a
// cached copy for the same etag can be reused.
func (c *remoteCache) fetch(ctx context.Context, etag, key string, download func(ctx context.Context, w io.Writer) error) (string, bool, error) {
	dst := c.path(etag, key)
	if c.keep {
		if info, err := os.Stat(dst); err == nil && info.Mode().IsRegular() {
			return dst, true, nil
		}
	}

	tmp, err := os.CreateTemp(c.dir, ".download-*")
	if err != nil {
		return "", false, err
	}
	defer os.Remove(tmp.Name())

	if err := download(ctx, tmp); err != nil {
		tmp.Close()
		return "", false, err
	}
	if err := tmp.Close(); err != nil {
		return "", false, err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", false, err
	}
	return dst, false, nil
}

// release drops a scanned file unless the cache keeps it.
func (c *remoteCache) release(path string) {
	if !c.keep {
		os.Remove(path)
	}
}
