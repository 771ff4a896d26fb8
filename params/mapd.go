package params

import (
	"os"
	"path/filepath"

	homedir "github.com/mitchellh/go-homedir"
)

// DatadirRoot is the default application data directory.
var DatadirRoot = func() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".mapd")
	}
	return filepath.Join(home, ".mapd")
}()

// DefaultAssetsDir is where regional .mbtiles stores are discovered.
var DefaultAssetsDir = filepath.Join(DatadirRoot, "assets")

// ExpandPath resolves ~ and relative paths to an absolute path.
func ExpandPath(path string) string {
	p, err := homedir.Expand(path)
	if err != nil {
		p = path
	}
	if !filepath.IsAbs(p) {
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
	}
	return filepath.Clean(p)
}
