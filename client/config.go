package client

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// Config is the ambient configuration the core needs but never loads
// itself (spec.md §1's "configuration-file loading ... out of scope"):
// cmd/warg parses flags/viper config into this struct and passes it to
// New.
type Config struct {
	// DefaultUrl is the registry used when a caller passes an empty
	// namespace-domain.
	DefaultUrl string
	// DataDir roots every derived storage path; StoragePathsForURL derives
	// registries-dir, content-dir, and namespace-map-path beneath it,
	// one subtree per registry URL so multiple registries never collide.
	DataDir string
}

// StoragePaths names the three independently-lockable on-disk locations
// spec.md §6 enumerates for one registry URL.
type StoragePaths struct {
	RegistriesDir    string
	ContentDir       string
	NamespaceMapPath string
}

// StoragePathsForURL derives StoragePaths for registryURL, scoped beneath
// cfg.DataDir by a filesystem-safe encoding of the URL so two distinct
// registries never share a directory.
func (cfg Config) StoragePathsForURL(registryURL string) (StoragePaths, error) {
	if registryURL == "" {
		registryURL = cfg.DefaultUrl
	}
	if registryURL == "" {
		return StoragePaths{}, &Error{Kind: KindNoDefaultUrl}
	}
	u, err := url.Parse(registryURL)
	if err != nil {
		return StoragePaths{}, fmt.Errorf("client: invalid registry URL %q: %w", registryURL, err)
	}
	slug := slugifyURL(u)
	root := filepath.Join(cfg.DataDir, slug)
	return StoragePaths{
		RegistriesDir:    filepath.Join(root, "registries"),
		ContentDir:       filepath.Join(root, "content"),
		NamespaceMapPath: filepath.Join(root, "namespaces.json"),
	}, nil
}

func slugifyURL(u *url.URL) string {
	host := u.Host
	path := strings.Trim(u.Path, "/")
	slug := host
	if path != "" {
		slug += "_" + strings.ReplaceAll(path, "/", "_")
	}
	if slug == "" {
		slug = "default"
	}
	return slug
}
