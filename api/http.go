package api

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/wargproto/warg-go/protocol"
)

// HTTPClient is the one concrete transport this module ships: a
// JSON-over-net/http implementation of Client, generalizing the teacher's
// newFetcher (a GET-only closure over a root URL) to the registry's full
// read/write surface — POST for fetch/publish/proof requests, PUT for
// content uploads, GET for downloads.
type HTTPClient struct {
	root *url.URL
	hc   *http.Client
}

// NewHTTPClient returns an HTTPClient rooted at root, matching the
// teacher's newFetcher(root *url.URL) constructor shape. hc may be nil, in
// which case http.DefaultClient is used.
func NewHTTPClient(root *url.URL, hc *http.Client) (*HTTPClient, error) {
	if s := root.Scheme; s != "http" && s != "https" {
		return nil, fmt.Errorf("api: unsupported URL scheme %q", s)
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	return &HTTPClient{root: root, hc: hc}, nil
}

var _ Client = (*HTTPClient)(nil)

func (c *HTTPClient) resolve(domain, p string) (*url.URL, error) {
	root := c.root
	if domain != "" {
		d, err := url.Parse(domain)
		if err != nil {
			return nil, fmt.Errorf("api: invalid namespace domain %q: %w", domain, err)
		}
		root = d
	}
	return root.Parse(p)
}

func (c *HTTPClient) postJSON(ctx context.Context, u *url.URL, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("api: encode request: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), &buf)
	if err != nil {
		return fmt.Errorf("api: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("api: request %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &FetchError{Err: fmt.Errorf("api: %s: not found", u)}
	}
	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("api: %s: status %d: %s", u, resp.StatusCode, string(data))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("api: decode response from %s: %w", u, err)
	}
	return nil
}

func (c *HTTPClient) getJSON(ctx context.Context, u *url.URL, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("api: build request: %w", err)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("api: request %s: %w", u, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("api: %s: status %d: %s", u, resp.StatusCode, string(data))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *HTTPClient) LatestCheckpoint(ctx context.Context, domain string) (protocol.SignedEnvelope[protocol.TimestampedCheckpoint], error) {
	u, err := c.resolve(domain, "checkpoint")
	if err != nil {
		return protocol.SignedEnvelope[protocol.TimestampedCheckpoint]{}, err
	}
	var out protocol.SignedEnvelope[protocol.TimestampedCheckpoint]
	if err := c.getJSON(ctx, u, &out); err != nil {
		return protocol.SignedEnvelope[protocol.TimestampedCheckpoint]{}, err
	}
	return out, nil
}

func (c *HTTPClient) FetchLogs(ctx context.Context, domain string, req FetchLogsRequest) (FetchLogsResponse, error) {
	u, err := c.resolve(domain, "fetch")
	if err != nil {
		return FetchLogsResponse{}, err
	}
	var out FetchLogsResponse
	if err := c.postJSON(ctx, u, req, &out); err != nil {
		return FetchLogsResponse{}, err
	}
	return out, nil
}

func (c *HTTPClient) ProveInclusion(ctx context.Context, domain string, req InclusionRequest) (InclusionResponse, error) {
	u, err := c.resolve(domain, "proof/inclusion")
	if err != nil {
		return InclusionResponse{}, err
	}
	var out InclusionResponse
	if err := c.postJSON(ctx, u, req, &out); err != nil {
		return InclusionResponse{}, err
	}
	return out, nil
}

func (c *HTTPClient) ProveConsistency(ctx context.Context, domain string, req ConsistencyRequest) (ConsistencyResponse, error) {
	u, err := c.resolve(domain, "proof/consistency")
	if err != nil {
		return ConsistencyResponse{}, err
	}
	var out ConsistencyResponse
	if err := c.postJSON(ctx, u, req, &out); err != nil {
		return ConsistencyResponse{}, err
	}
	return out, nil
}

func (c *HTTPClient) PublishPackageRecord(ctx context.Context, domain string, logID protocol.LogId, req PublishRecordRequest) (PackageRecord, error) {
	u, err := c.resolve(domain, "package/"+logID.String()+"/record")
	if err != nil {
		return PackageRecord{}, err
	}
	var out PackageRecord
	if err := c.postJSON(ctx, u, req, &out); err != nil {
		var fe *FetchError
		if asFetchError(err, &fe) {
			fe.LogNotFound = &logID
		}
		return PackageRecord{}, err
	}
	return out, nil
}

func (c *HTTPClient) UploadContent(ctx context.Context, endpoint UploadEndpoint, body io.Reader) error {
	if !endpoint.IsHttp() {
		return nil
	}
	method := endpoint.Method
	if method == "" {
		method = http.MethodPut
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint.URL, body)
	if err != nil {
		return fmt.Errorf("api: build upload request: %w", err)
	}
	for k, v := range endpoint.Headers {
		req.Header.Set(k, v)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("api: upload to %s: %w", endpoint.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusUnprocessableEntity {
		data, _ := io.ReadAll(resp.Body)
		return &PackageError{Rejection: string(data)}
	}
	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("api: upload to %s: status %d: %s", endpoint.URL, resp.StatusCode, string(data))
	}
	return nil
}

func (c *HTTPClient) DownloadContent(ctx context.Context, urlStr string, digest []byte) (io.ReadCloser, error) {
	target := urlStr
	if target == "" {
		u, err := c.resolve("", "content/"+encodeDigest(digest))
		if err != nil {
			return nil, err
		}
		target = u.String()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("api: build download request: %w", err)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api: download %s: %w", target, err)
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("api: download %s: status %d: %s", target, resp.StatusCode, string(data))
	}
	return resp.Body, nil
}

func (c *HTTPClient) GetPackageRecord(ctx context.Context, domain string, logID protocol.LogId, recordID protocol.RecordId) (PackageRecord, error) {
	u, err := c.resolve(domain, "package/"+logID.String()+"/record/"+recordID.String())
	if err != nil {
		return PackageRecord{}, err
	}
	var out PackageRecord
	if err := c.getJSON(ctx, u, &out); err != nil {
		return PackageRecord{}, err
	}
	return out, nil
}

func encodeDigest(digest []byte) string {
	return hex.EncodeToString(digest)
}

func asFetchError(err error, target **FetchError) bool {
	fe, ok := err.(*FetchError)
	if !ok {
		return false
	}
	*target = fe
	return true
}
