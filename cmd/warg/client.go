package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wargproto/warg-go/api"
	"github.com/wargproto/warg-go/client"
	"github.com/wargproto/warg-go/internal/obs"
	"github.com/wargproto/warg-go/protocol"
	"github.com/wargproto/warg-go/storage/fsstore"
)

// openedStores bundles the locked fsstore handles a CLI invocation opens so
// they can be released together once the command completes.
type openedStores struct {
	registry *fsstore.Registry
	content  *fsstore.Content
	nsMap    *fsstore.NamespaceMap
}

func (s *openedStores) Close() {
	if s.registry != nil {
		_ = s.registry.Close()
	}
	if s.content != nil {
		_ = s.content.Close()
	}
	if s.nsMap != nil {
		_ = s.nsMap.Close()
	}
}

// newClient builds a client.Client against the CLI's resolved registry URL
// and data directory, blocking to acquire each storage directory's advisory
// lock (spec.md §5/§6's new_with_config semantics; the CLI always blocks
// rather than surfacing the try_new "not acquired" marker, since there is
// no interactive caller to hand it to).
func newClient(registryURL string) (*client.Client, api.Client, *openedStores, error) {
	cfg := client.Config{DefaultUrl: flagURL, DataDir: flagData}
	paths, err := cfg.StoragePathsForURL(registryURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("warg: %w", err)
	}

	reg, err := fsstore.LockRegistry(paths.RegistriesDir)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("warg: lock registry dir: %w", err)
	}
	content, err := fsstore.LockContent(paths.ContentDir)
	if err != nil {
		_ = reg.Close()
		return nil, nil, nil, fmt.Errorf("warg: lock content dir: %w", err)
	}
	nsMap, err := fsstore.LockNamespaceMap(filepath.Dir(paths.NamespaceMapPath))
	if err != nil {
		_ = reg.Close()
		_ = content.Close()
		return nil, nil, nil, fmt.Errorf("warg: lock namespace map dir: %w", err)
	}

	root, err := url.Parse(firstNonEmpty(registryURL, flagURL))
	if err != nil {
		reg.Close()
		content.Close()
		nsMap.Close()
		return nil, nil, nil, fmt.Errorf("warg: invalid registry URL: %w", err)
	}
	apiClient, err := api.NewHTTPClient(root, nil)
	if err != nil {
		reg.Close()
		content.Close()
		nsMap.Close()
		return nil, nil, nil, fmt.Errorf("warg: %w", err)
	}

	log := newLogger()
	metrics := newMetrics()
	c := client.New(cfg, reg, content, nsMap, apiClient, log, metrics)
	return c, apiClient, &openedStores{registry: reg, content: content, nsMap: nsMap}, nil
}

// resolveDomain runs C4 for the package name's namespace, returning the
// resolved registry domain or "" if no tier produced an answer (the
// default registry). A resolver error (a broken .warg.json, an
// unreadable operator log) is surfaced rather than silently defaulted.
func resolveDomain(ctx context.Context, c *client.Client, name string) (string, error) {
	domain, found, err := c.GetPackageNamespaceDomain(ctx, protocol.PackageNamespace(name))
	if err != nil {
		return "", fmt.Errorf("warg: resolve namespace domain: %w", err)
	}
	if !found {
		return "", nil
	}
	return domain, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// newMetrics registers the client's Prometheus metrics and, if
// --metrics-addr was set, serves them; otherwise it returns a Metrics that
// is updated but never scraped, which is harmless.
func newMetrics() *obs.Metrics {
	reg := prometheus.NewRegistry()
	m := obs.NewMetrics(reg)
	if flagMetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			_ = http.ListenAndServe(flagMetricsAddr, mux)
		}()
	}
	return m
}
