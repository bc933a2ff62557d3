package client

import (
	"context"
	"errors"

	"github.com/wargproto/warg-go/api"
	"github.com/wargproto/warg-go/internal/obs"
	"github.com/wargproto/warg-go/resolver"
	"github.com/wargproto/warg-go/storage"
)

// Client is the registry client core: it owns no network or filesystem
// code itself, only the algorithms in update_checkpoint.go, publish.go,
// and download.go, wired against whatever storage.* and api.Client
// implementations the caller supplies.
type Client struct {
	cfg      Config
	registry storage.RegistryStorage
	content  storage.ContentStorage
	nsMap    storage.NamespaceMapStorage
	api      api.Client
	log      *obs.Logger
	metrics  *obs.Metrics
}

// New builds a Client from its storage and transport dependencies. log and
// metrics may be nil; a nil log gets obs.NewNop(), a nil metrics disables
// instrumentation entirely.
func New(cfg Config, registry storage.RegistryStorage, content storage.ContentStorage, nsMap storage.NamespaceMapStorage, apiClient api.Client, log *obs.Logger, metrics *obs.Metrics) *Client {
	if log == nil {
		log = obs.NewNop()
	}
	return &Client{cfg: cfg, registry: registry, content: content, nsMap: nsMap, api: apiClient, log: log, metrics: metrics}
}

// URL returns the configured default registry URL.
func (c *Client) URL() string { return c.cfg.DefaultUrl }

// Registry exposes the underlying registry storage, for callers (cmd/warg's
// subcommands) that need direct access beyond what Client's own methods
// cover.
func (c *Client) Registry() storage.RegistryStorage { return c.registry }

// Content exposes the underlying content storage.
func (c *Client) Content() storage.ContentStorage { return c.content }

// ResetRegistry drops cached registry state (spec.md §6's reset operation).
func (c *Client) ResetRegistry(ctx context.Context, allRegistries bool) error {
	if err := c.registry.Reset(ctx, allRegistries); err != nil {
		return newErr(KindResettingRegistryLocalStateFailed, err)
	}
	return nil
}

// ClearContentCache drops all cached content blobs.
func (c *Client) ClearContentCache(ctx context.Context) error {
	if err := c.content.Clear(ctx); err != nil {
		return newErr(KindClearContentCacheFailed, err)
	}
	return nil
}

// GetPackageNamespaceDomain resolves the registry domain that owns a
// package namespace, per C4. It is deterministic for a fixed filesystem and
// store state (spec.md §8 property 5).
func (c *Client) GetPackageNamespaceDomain(ctx context.Context, namespace string) (string, bool, error) {
	domain, found, err := resolver.PackageNamespaceDomain(ctx, resolver.Deps{Registry: c.registry, NamespaceMap: c.nsMap}, namespace)
	if err != nil {
		var re *resolver.Error
		if errors.As(err, &re) {
			switch re.Kind {
			case resolver.ErrNoCurrentDirectory:
				return "", false, newErr(KindNoCurrentDirectory, err)
			case resolver.ErrNoNamespaceConfig:
				return "", false, &Error{Kind: KindNoNamespaceConfig, Path: re.Path, Err: err}
			case resolver.ErrInvalidLocalNamespaceConfig:
				return "", false, &Error{Kind: KindInvalidLocalNamespaceConfig, Path: re.Path, Err: err}
			}
		}
		return "", false, newErr(KindNamespaceStateError, err)
	}
	return domain, found, nil
}
