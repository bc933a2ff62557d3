package client

import (
	"context"
	"fmt"

	"github.com/wargproto/warg-go/crypto"
	"github.com/wargproto/warg-go/protocol"
	"github.com/wargproto/warg-go/storage"
)

// DownloadResult is what Download/DownloadExact return: the resolved
// version, its content digest, and a location identifier for the cached
// blob (spec.md §4.7's "{ version, digest, path }").
type DownloadResult struct {
	Version string
	Digest  crypto.Hash
	Path    string
}

// Download synchronizes name if uncached, resolves the latest release
// satisfying requirement, and ensures its content is present in the local
// content store, per spec.md §4.7.
func (c *Client) Download(ctx context.Context, domain, name string, requirement protocol.VersionReq) (DownloadResult, error) {
	p, err := c.loadOrSyncPackage(ctx, domain, name)
	if err != nil {
		return DownloadResult{}, err
	}

	release, ok := p.State.FindLatestRelease(requirement)
	if !ok {
		return DownloadResult{}, packageErr(KindPackageVersionDoesNotExist, name, nil)
	}
	return c.fetchRelease(ctx, domain, name, release)
}

// DownloadExact is like Download but requires an exact version match.
func (c *Client) DownloadExact(ctx context.Context, domain, name, version string) (DownloadResult, error) {
	p, err := c.loadOrSyncPackage(ctx, domain, name)
	if err != nil {
		return DownloadResult{}, err
	}

	release, ok := p.State.Release(version)
	if !ok || !release.HasContent() {
		return DownloadResult{}, packageErr(KindPackageVersionDoesNotExist, name, nil)
	}
	return c.fetchRelease(ctx, domain, name, release)
}

func (c *Client) loadOrSyncPackage(ctx context.Context, domain, name string) (*storage.PackageInfo, error) {
	p, err := c.registry.LoadPackage(ctx, domain, name)
	if err != nil {
		return nil, newErr(KindApi, err)
	}
	if p == nil || p.State.Head() == nil {
		if p == nil {
			p = storage.NewPackageInfo(name)
		}
		if err := c.resyncSinglePackage(ctx, domain, p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// fetchRelease streams release's content into the local store if absent and
// returns its location. release.HasContent() must already be known true to
// the caller; a release with no digest here would indicate the validator
// let a yanked release through, which never happens by construction.
func (c *Client) fetchRelease(ctx context.Context, domain, name string, release protocol.Release) (DownloadResult, error) {
	if !release.HasContent() {
		return DownloadResult{}, fmt.Errorf("client: release %s of %q has no content digest (invariant violation: yanked release surfaced by the validator)", release.Version, name)
	}
	digest := release.Content

	if path, ok := c.content.ContentLocation(digest); ok {
		return DownloadResult{Version: release.Version, Digest: digest, Path: path}, nil
	}

	hostURL, err := c.resolveContentHost(ctx, name)
	if err != nil {
		return DownloadResult{}, err
	}

	body, err := c.api.DownloadContent(ctx, hostURL, digest.Bytes)
	if err != nil {
		return DownloadResult{}, translateFetchError(name, err)
	}
	defer body.Close()

	if err := c.content.StoreContent(ctx, body, &digest); err != nil {
		return DownloadResult{}, packageErr(KindContentNotFound, name, err)
	}

	path, ok := c.content.ContentLocation(digest)
	if !ok {
		return DownloadResult{}, packageErr(KindContentNotFound, name, nil)
	}
	return DownloadResult{Version: release.Version, Digest: digest, Path: path}, nil
}

// resolveContentHost implements spec.md §4.7's "namespace-map store (step 3
// of C4 only - not the operator import)": it consults only the client-wide
// NamespaceMapStorage, skipping the operator-log and .warg.json tiers that
// PackageNamespaceDomain applies for publish-target resolution.
func (c *Client) resolveContentHost(ctx context.Context, name string) (string, error) {
	m, err := c.nsMap.LoadNamespaceMap(ctx)
	if err != nil {
		return "", newErr(KindApi, err)
	}
	if host, ok := m[protocol.PackageNamespace(name)]; ok {
		return host, nil
	}
	return "", nil
}
