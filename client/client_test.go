package client

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/trillian/merkle/rfc6962/hasher"

	"github.com/wargproto/warg-go/api"
	"github.com/wargproto/warg-go/api/verify"
	"github.com/wargproto/warg-go/crypto"
	"github.com/wargproto/warg-go/protocol"
	"github.com/wargproto/warg-go/storage"
	"github.com/wargproto/warg-go/storage/memstore"
)

// fakeAPI is a scriptable api.Client test double: each scenario sets only
// the fields it needs and leaves the rest at their zero value.
type fakeAPI struct {
	checkpoint protocol.SignedEnvelope[protocol.TimestampedCheckpoint]
	fetchResp  api.FetchLogsResponse

	inclusionProofs map[uint64][][]byte
	consistency     api.ConsistencyResponse

	publishResult api.PackageRecord
	publishErr    error

	getRecordResults []api.PackageRecord
	getRecordCalls   int

	uploads [][]byte

	blobs map[string][]byte
}

func (f *fakeAPI) LatestCheckpoint(context.Context, string) (protocol.SignedEnvelope[protocol.TimestampedCheckpoint], error) {
	return f.checkpoint, nil
}

func (f *fakeAPI) FetchLogs(context.Context, string, api.FetchLogsRequest) (api.FetchLogsResponse, error) {
	return f.fetchResp, nil
}

func (f *fakeAPI) ProveInclusion(_ context.Context, _ string, req api.InclusionRequest) (api.InclusionResponse, error) {
	resp := api.InclusionResponse{Proofs: make([]api.InclusionProof, 0, len(req.Leafs))}
	for _, idx := range req.Leafs {
		resp.Proofs = append(resp.Proofs, api.InclusionProof{LeafIndex: idx, Proof: f.inclusionProofs[idx]})
	}
	return resp, nil
}

func (f *fakeAPI) ProveConsistency(context.Context, string, api.ConsistencyRequest) (api.ConsistencyResponse, error) {
	return f.consistency, nil
}

func (f *fakeAPI) PublishPackageRecord(context.Context, string, protocol.LogId, api.PublishRecordRequest) (api.PackageRecord, error) {
	return f.publishResult, f.publishErr
}

func (f *fakeAPI) UploadContent(_ context.Context, _ api.UploadEndpoint, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.uploads = append(f.uploads, data)
	return nil
}

func (f *fakeAPI) DownloadContent(_ context.Context, _ string, digest []byte) (io.ReadCloser, error) {
	data, ok := f.blobs[string(digest)]
	if !ok {
		return nil, errors.New("fakeAPI: no such blob")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeAPI) GetPackageRecord(context.Context, string, protocol.LogId, protocol.RecordId) (api.PackageRecord, error) {
	if f.getRecordCalls >= len(f.getRecordResults) {
		f.getRecordCalls = len(f.getRecordResults) - 1
	}
	r := f.getRecordResults[f.getRecordCalls]
	f.getRecordCalls++
	return r, nil
}

func signOperatorInit(t *testing.T, key crypto.PrivateKey, ts time.Time) protocol.Envelope[protocol.OperatorRecord] {
	t.Helper()
	record := protocol.OperatorRecord{
		RecordHeader: protocol.RecordHeader{Timestamp: ts},
		Entries:      []protocol.OperatorEntry{{Kind: protocol.OperatorEntryInit, Key: key.PublicKey()}},
	}
	_, sig, err := crypto.Sign(key, record)
	if err != nil {
		t.Fatalf("Sign(operator init) failed: %v", err)
	}
	return protocol.Envelope[protocol.OperatorRecord]{Contents: record, KeyID: key.KeyID(), Signature: sig}
}

func signPackageInit(t *testing.T, key crypto.PrivateKey, ts time.Time) protocol.Envelope[protocol.PackageRecord] {
	t.Helper()
	record := protocol.PackageRecord{
		RecordHeader: protocol.RecordHeader{Timestamp: ts},
		Entries:      []protocol.PackageEntry{{Kind: protocol.PackageEntryInit, Key: key.PublicKey()}},
	}
	_, sig, err := crypto.Sign(key, record)
	if err != nil {
		t.Fatalf("Sign(package init) failed: %v", err)
	}
	return protocol.Envelope[protocol.PackageRecord]{Contents: record, KeyID: key.KeyID(), Signature: sig}
}

// twoLeafTree builds the root and per-leaf inclusion proofs for a
// two-leaf RFC6962 log, matching the math api/verify/verify_test.go's
// buildLog exercises for a larger log.
func twoLeafTree(leaf0, leaf1 []byte) (root []byte, proof0, proof1 [][]byte) {
	h := hasher.DefaultHasher
	root = h.HashChildren(leaf0, leaf1)
	return root, [][]byte{leaf1}, [][]byte{leaf0}
}

func signCheckpoint(t *testing.T, key crypto.PrivateKey, cp protocol.Checkpoint, ts time.Time) protocol.SignedEnvelope[protocol.TimestampedCheckpoint] {
	t.Helper()
	tsc := protocol.TimestampedCheckpoint{Checkpoint: cp, Timestamp: ts}
	_, sig, err := crypto.Sign(key, tsc)
	if err != nil {
		t.Fatalf("Sign(checkpoint) failed: %v", err)
	}
	return protocol.SignedEnvelope[protocol.TimestampedCheckpoint]{Content: tsc, KeyID: key.KeyID(), Signature: sig}
}

func newTestClient(t *testing.T, a api.Client) (*Client, storage.RegistryStorage) {
	t.Helper()
	reg := memstore.NewRegistry()
	content := memstore.NewContent()
	nsMap := memstore.NewNamespaceMap()
	return New(Config{DefaultUrl: "https://registry.example"}, reg, content, nsMap, a, nil, nil), reg
}

// TestUpdateCheckpointBootstrap exercises S1: an empty client synchronizing
// one package for the first time against a two-record log (operator init,
// package init), with real trillian inclusion-proof verification.
func TestUpdateCheckpointBootstrap(t *testing.T) {
	ts := time.Unix(1000, 0)
	opKey, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() failed: %v", err)
	}

	opEnv := signOperatorInit(t, opKey, ts)
	opRecordID, err := opEnv.RecordId()
	if err != nil {
		t.Fatalf("RecordId(operator) failed: %v", err)
	}
	pkgEnv := signPackageInit(t, opKey, ts)
	pkgRecordID, err := pkgEnv.RecordId()
	if err != nil {
		t.Fatalf("RecordId(package) failed: %v", err)
	}

	leaf0 := verify.HashLeaf(opRecordID.Bytes)
	leaf1 := verify.HashLeaf(pkgRecordID.Bytes)
	root, proof0, proof1 := twoLeafTree(leaf0, leaf1)

	checkpoint := protocol.Checkpoint{
		LogLength: 2,
		LogRoot:   crypto.Hash{Algorithm: crypto.Sha256, Bytes: root},
		MapRoot:   crypto.HashOf([]byte("map-state")),
	}
	trusted := signCheckpoint(t, opKey, checkpoint, ts)

	a := &fakeAPI{
		checkpoint: trusted,
		fetchResp: api.FetchLogsResponse{
			Operator: []api.LogRecord[protocol.OperatorRecord]{{Envelope: opEnv, RegistryIndex: 0, FetchToken: "op-1"}},
			Packages: map[string][]api.LogRecord[protocol.PackageRecord]{
				protocol.PackageLogId("demo").String(): {{Envelope: pkgEnv, RegistryIndex: 1, FetchToken: "pkg-1"}},
			},
			More: false,
		},
		inclusionProofs: map[uint64][][]byte{0: proof0, 1: proof1},
	}

	c, reg := newTestClient(t, a)
	if err := c.UpdateCheckpoint(context.Background(), "", trusted, []string{"demo"}); err != nil {
		t.Fatalf("UpdateCheckpoint() failed: %v", err)
	}

	p, err := reg.LoadPackage(context.Background(), "", "demo")
	if err != nil {
		t.Fatalf("LoadPackage() failed: %v", err)
	}
	if p == nil || p.State.Head() == nil {
		t.Fatal("LoadPackage() after sync: no head, want the package's init record applied")
	}
	if p.Checkpoint == nil || !p.Checkpoint.Equal(checkpoint) {
		t.Errorf("PackageInfo.Checkpoint = %+v, want %+v", p.Checkpoint, checkpoint)
	}

	// Re-running against the same trusted checkpoint is a no-op
	// (idempotency): step A filters the package out entirely.
	a.fetchResp = api.FetchLogsResponse{}
	if err := c.UpdateCheckpoint(context.Background(), "", trusted, []string{"demo"}); err != nil {
		t.Fatalf("UpdateCheckpoint() second call failed: %v", err)
	}
}

// TestUpdateCheckpointRejectsBadSignature exercises the key-lookup half of
// step C: a checkpoint signed by a key the operator log never registered
// must be rejected with InvalidCheckpointKeyId before any proof work
// happens.
func TestUpdateCheckpointRejectsBadSignature(t *testing.T) {
	ts := time.Unix(1000, 0)
	opKey, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() failed: %v", err)
	}
	otherKey, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() failed: %v", err)
	}

	opEnv := signOperatorInit(t, opKey, ts)
	opRecordID, _ := opEnv.RecordId()
	pkgEnv := signPackageInit(t, opKey, ts)
	pkgRecordID, _ := pkgEnv.RecordId()

	leaf0 := verify.HashLeaf(opRecordID.Bytes)
	leaf1 := verify.HashLeaf(pkgRecordID.Bytes)
	root, _, _ := twoLeafTree(leaf0, leaf1)

	checkpoint := protocol.Checkpoint{
		LogLength: 2,
		LogRoot:   crypto.Hash{Algorithm: crypto.Sha256, Bytes: root},
		MapRoot:   crypto.HashOf([]byte("map-state")),
	}
	// Signed by a key the operator log never registered.
	trusted := signCheckpoint(t, otherKey, checkpoint, ts)

	a := &fakeAPI{
		checkpoint: trusted,
		fetchResp: api.FetchLogsResponse{
			Operator: []api.LogRecord[protocol.OperatorRecord]{{Envelope: opEnv, RegistryIndex: 0, FetchToken: "op-1"}},
			Packages: map[string][]api.LogRecord[protocol.PackageRecord]{
				protocol.PackageLogId("demo").String(): {{Envelope: pkgEnv, RegistryIndex: 1, FetchToken: "pkg-1"}},
			},
		},
	}
	c, _ := newTestClient(t, a)

	err = c.UpdateCheckpoint(context.Background(), "", trusted, []string{"demo"})
	var cerr *Error
	if !errors.As(err, &cerr) || cerr.Kind != KindInvalidCheckpointKeyId {
		t.Fatalf("UpdateCheckpoint() error = %v, want Kind InvalidCheckpointKeyId", err)
	}
}

func TestPublishNothingToPublish(t *testing.T) {
	c, _ := newTestClient(t, &fakeAPI{})
	key, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() failed: %v", err)
	}

	_, err = c.Publish(context.Background(), key, storage.PublishInfo{Name: "demo"})
	if !errors.Is(err, &Error{Kind: KindNothingToPublish}) {
		t.Fatalf("Publish() error = %v, want Kind NothingToPublish", err)
	}
}

func TestPublishCannotInitializeAlreadyInitializedPackage(t *testing.T) {
	ts := time.Unix(1000, 0)
	key, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() failed: %v", err)
	}

	c, reg := newTestClient(t, &fakeAPI{})
	pkgEnv := signPackageInit(t, key, ts)
	p := storage.NewPackageInfo("demo")
	if err := p.State.Validate(pkgEnv); err != nil {
		t.Fatalf("Validate(package init) failed: %v", err)
	}
	idx := uint64(0)
	p.HeadRegistryIndex = &idx
	if err := reg.StorePackage(context.Background(), "", p); err != nil {
		t.Fatalf("StorePackage() failed: %v", err)
	}

	_, err = c.Publish(context.Background(), key, storage.PublishInfo{
		Name:    "demo",
		Entries: []protocol.PackageEntry{{Kind: protocol.PackageEntryInit, Key: key.PublicKey()}},
	})
	var cerr *Error
	if !errors.As(err, &cerr) || cerr.Kind != KindCannotInitializePackage {
		t.Fatalf("Publish() error = %v, want Kind CannotInitializePackage", err)
	}
}

func TestWaitForPublishPublished(t *testing.T) {
	a := &fakeAPI{
		getRecordResults: []api.PackageRecord{
			{State: api.PackageRecordProcessing},
			{State: api.PackageRecordPublished},
		},
	}
	c, _ := newTestClient(t, a)

	var recordID protocol.RecordId
	err := c.WaitForPublish(context.Background(), "", "demo", recordID, time.Millisecond)
	if err != nil {
		t.Fatalf("WaitForPublish() failed: %v", err)
	}
	if a.getRecordCalls != 2 {
		t.Errorf("GetPackageRecord called %d times, want 2", a.getRecordCalls)
	}
}

func TestWaitForPublishRejected(t *testing.T) {
	a := &fakeAPI{
		getRecordResults: []api.PackageRecord{
			{State: api.PackageRecordRejected, Reason: "duplicate version"},
		},
	}
	c, _ := newTestClient(t, a)

	var recordID protocol.RecordId
	err := c.WaitForPublish(context.Background(), "", "demo", recordID, time.Millisecond)
	var cerr *Error
	if !errors.As(err, &cerr) || cerr.Kind != KindPublishRejected {
		t.Fatalf("WaitForPublish() error = %v, want Kind PublishRejected", err)
	}
}

func TestDownloadUsesCachedContent(t *testing.T) {
	ts := time.Unix(1000, 0)
	key, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() failed: %v", err)
	}
	data := []byte("package contents")
	digest := crypto.HashOf(data)

	release := protocol.PackageEntry{Kind: protocol.PackageEntryRelease, Version: "1.0.0", Content: digest}
	initEnv := signPackageInit(t, key, ts)

	c, reg := newTestClient(t, &fakeAPI{})
	p := storage.NewPackageInfo("demo")
	if err := p.State.Validate(initEnv); err != nil {
		t.Fatalf("Validate(init) failed: %v", err)
	}

	releaseRecord := protocol.PackageRecord{
		RecordHeader: protocol.RecordHeader{Timestamp: ts.Add(time.Second), HasPrev: true},
		Entries:      []protocol.PackageEntry{release},
	}
	head := p.State.Head()
	releaseRecord.Prev = head.RecordId
	_, sig, err := crypto.Sign(key, releaseRecord)
	if err != nil {
		t.Fatalf("Sign(release) failed: %v", err)
	}
	releaseEnv := protocol.Envelope[protocol.PackageRecord]{Contents: releaseRecord, KeyID: key.KeyID(), Signature: sig}
	if err := p.State.Validate(releaseEnv); err != nil {
		t.Fatalf("Validate(release) failed: %v", err)
	}
	idx := uint64(1)
	p.HeadRegistryIndex = &idx
	if err := reg.StorePackage(context.Background(), "", p); err != nil {
		t.Fatalf("StorePackage() failed: %v", err)
	}
	if err := c.Content().StoreContent(context.Background(), bytes.NewReader(data), &digest); err != nil {
		t.Fatalf("StoreContent() failed: %v", err)
	}

	result, err := c.Download(context.Background(), "", "demo", protocol.VersionReq("*"))
	if err != nil {
		t.Fatalf("Download() failed: %v", err)
	}
	if result.Version != "1.0.0" || !result.Digest.Equal(digest) {
		t.Errorf("Download() = %+v, want version 1.0.0 digest %s", result, digest)
	}
}
