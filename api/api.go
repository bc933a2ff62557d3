// Package api is the logical registry API the client core consumes (spec
// §6): fetching logs, proving inclusion and consistency, publishing
// records, uploading content, and polling record state. Client is the
// interface the client package programs against; http.go provides the one
// concrete JSON-over-net/http transport this module ships, grounded on the
// teacher's newFetcher GET-only pattern in cmd/monitor/main.go generalized
// to the registry's full read/write surface.
package api

import (
	"context"
	"io"

	"github.com/wargproto/warg-go/crypto"
	"github.com/wargproto/warg-go/protocol"
)

// FetchLogsRequest is the incremental-fetch request body (spec §6).
// Packages is keyed by LogId.String() rather than LogId itself: LogId wraps
// a variable-length crypto.Hash and so is not a comparable Go map key.
type FetchLogsRequest struct {
	LogLength uint64             `json:"log_length"`
	Operator  *string            `json:"operator"`
	Packages  map[string]*string `json:"packages"`
	Limit     *uint16            `json:"limit,omitempty"`
}

// LogRecord is one record returned by fetch_logs, carrying the server's
// bookkeeping alongside the signed envelope.
type LogRecord[T crypto.Signable] struct {
	Envelope      protocol.Envelope[T] `json:"envelope"`
	RegistryIndex uint64               `json:"registry_index"`
	FetchToken    string               `json:"fetch_token"`
}

// FetchLogsResponse is fetch_logs's response body. Packages is keyed by
// LogId.String(), for the same reason as FetchLogsRequest.Packages.
type FetchLogsResponse struct {
	Operator []LogRecord[protocol.OperatorRecord]          `json:"operator"`
	Packages map[string][]LogRecord[protocol.PackageRecord] `json:"packages"`
	More     bool                                           `json:"more"`
}

// InclusionRequest asks the server to prove that the leaves at Leafs were
// present when the log had length LogLength.
type InclusionRequest struct {
	LogLength uint64   `json:"log_length"`
	Leafs     []uint64 `json:"leafs"`
}

// InclusionProof is one leaf's proof: its registry index, the leaf hash
// committed to, and the sibling hashes package api/verify consumes.
type InclusionProof struct {
	LeafIndex uint64   `json:"leaf_index"`
	LeafHash  []byte   `json:"leaf_hash"`
	Proof     [][]byte `json:"proof"`
}

// InclusionResponse is prove_inclusion's response: one proof per requested
// leaf, in the same order as the request's Leafs.
type InclusionResponse struct {
	Proofs []InclusionProof `json:"proofs"`
}

// ConsistencyRequest asks the server to prove that the log at length From
// is a prefix of the log at length To.
type ConsistencyRequest struct {
	From uint64 `json:"from"`
	To   uint64 `json:"to"`
}

// ConsistencyResponse is prove_log_consistency's response.
type ConsistencyResponse struct {
	Proof [][]byte `json:"proof"`
}

// UploadEndpoint names where missing content should be streamed.
// UploadEndpoint.Http is presently the only variant the server emits;
// others are reserved for future transports and are skipped by the client.
type UploadEndpoint struct {
	Scheme  string            `json:"scheme"`
	Method  string            `json:"method,omitempty"`
	URL     string            `json:"url,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// IsHttp reports whether e is the Http variant.
func (e UploadEndpoint) IsHttp() bool { return e.Scheme == "http" }

// MissingContent names one content digest the server has not yet received,
// plus the endpoints it may be uploaded to.
type MissingContent struct {
	Digest []byte           `json:"digest"`
	Upload []UploadEndpoint `json:"upload"`
}

// PackageRecordState discriminates a submitted record's lifecycle.
type PackageRecordState int

const (
	PackageRecordSourcing PackageRecordState = iota
	PackageRecordProcessing
	PackageRecordPublished
	PackageRecordRejected
)

func (s PackageRecordState) String() string {
	switch s {
	case PackageRecordSourcing:
		return "sourcing"
	case PackageRecordProcessing:
		return "processing"
	case PackageRecordPublished:
		return "published"
	case PackageRecordRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// PackageRecord is the server's view of a submitted record.
type PackageRecord struct {
	RecordId protocol.RecordId             `json:"record_id"`
	Envelope protocol.Envelope[protocol.PackageRecord] `json:"envelope"`
	State    PackageRecordState            `json:"state"`
	Missing  []MissingContent              `json:"missing,omitempty"`
	Reason   string                        `json:"reason,omitempty"`
}

// MissingContentList returns r.Missing, matching the protocol's
// missing_content() accessor name.
func (r PackageRecord) MissingContentList() []MissingContent { return r.Missing }

// PublishRecordRequest is publish_package_record's request body.
type PublishRecordRequest struct {
	PackageName    string                          `json:"package_name"`
	Record         protocol.Envelope[protocol.PackageRecord] `json:"record"`
	ContentSources []string                         `json:"content_sources"`
}

// FetchError distinguishes server errors the client must translate
// specially (a log the server doesn't recognize) from everything else,
// which propagates as the client package's Kind Api.
type FetchError struct {
	LogNotFound *protocol.LogId
	Err         error
}

func (e *FetchError) Error() string {
	if e.LogNotFound != nil {
		return "api: log not found: " + e.LogNotFound.String()
	}
	return e.Err.Error()
}

func (e *FetchError) Unwrap() error { return e.Err }

// PackageError is returned by publish/upload operations the server rejects
// outright, as opposed to a transport failure.
type PackageError struct {
	Rejection string
}

func (e *PackageError) Error() string { return "api: rejected: " + e.Rejection }

// Client is the logical registry API surface the client core consumes.
// domain selects which federated registry the call targets; the empty
// string denotes the caller's default registry.
type Client interface {
	LatestCheckpoint(ctx context.Context, domain string) (protocol.SignedEnvelope[protocol.TimestampedCheckpoint], error)
	FetchLogs(ctx context.Context, domain string, req FetchLogsRequest) (FetchLogsResponse, error)
	ProveInclusion(ctx context.Context, domain string, req InclusionRequest) (InclusionResponse, error)
	ProveConsistency(ctx context.Context, domain string, req ConsistencyRequest) (ConsistencyResponse, error)
	PublishPackageRecord(ctx context.Context, domain string, logID protocol.LogId, req PublishRecordRequest) (PackageRecord, error)
	UploadContent(ctx context.Context, endpoint UploadEndpoint, body io.Reader) error
	DownloadContent(ctx context.Context, url string, digest []byte) (io.ReadCloser, error)
	GetPackageRecord(ctx context.Context, domain string, logID protocol.LogId, recordID protocol.RecordId) (PackageRecord, error)
}
