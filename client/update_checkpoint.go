package client

import (
	"context"
	"fmt"
	"time"

	"github.com/wargproto/warg-go/api"
	"github.com/wargproto/warg-go/api/verify"
	"github.com/wargproto/warg-go/protocol"
	"github.com/wargproto/warg-go/storage"
)

// UpdateCheckpoint is the checkpoint synchronizer (C5): it fetches,
// validates, and persists new records for the named packages up to trusted,
// verifying the checkpoint signature and proving inclusion and consistency
// before committing anything. Steps are lettered A-F to match spec.md §4.5.
//
// Per the pack's available Merkle primitives (trillian's compact-range log
// verifier; no sparse-Merkle-map verifier appears anywhere in the retrieval
// pack), step D's inclusion proof is verified against the checkpoint's
// log_root using per-leaf compact-range proofs. map_root is carried and
// equality/consistency-checked across syncs (step E) as the integrity
// anchor for the head mapping, but no independent map-membership proof is
// requested or verified — see DESIGN.md.
func (c *Client) UpdateCheckpoint(ctx context.Context, domain string, trusted protocol.SignedEnvelope[protocol.TimestampedCheckpoint], names []string) error {
	start := time.Now()
	defer func() { c.metrics.ObserveSync(time.Since(start)) }()

	target := trusted.Content.Checkpoint

	// Step A: load cached PackageInfo for each name, filter out anything
	// already synced to target.
	ps := make([]*storage.PackageInfo, 0, len(names))
	for _, name := range names {
		p, err := c.registry.LoadPackage(ctx, domain, name)
		if err != nil {
			return newErr(KindApi, err)
		}
		if p == nil {
			p = storage.NewPackageInfo(name)
		}
		if p.Checkpoint != nil && p.Checkpoint.Equal(target) {
			continue
		}
		ps = append(ps, p)
	}
	if len(ps) == 0 {
		return nil
	}

	// Step B: incremental fetch loop.
	opInfo, err := c.registry.LoadOperator(ctx, domain)
	if err != nil {
		return newErr(KindApi, err)
	}
	if opInfo == nil {
		opInfo = storage.NewOperatorInfo()
	}

	logIDToPackage := make(map[string]*storage.PackageInfo, len(ps))
	lastKnown := make(map[string]*string, len(ps))
	for _, p := range ps {
		id := protocol.PackageLogId(p.Name).String()
		logIDToPackage[id] = p
		lastKnown[id] = p.HeadFetchToken
	}

	for {
		req := api.FetchLogsRequest{
			LogLength: target.LogLength,
			Operator:  opInfo.HeadFetchToken,
			Packages:  lastKnown,
		}
		resp, err := c.api.FetchLogs(ctx, domain, req)
		if err != nil {
			return newErr(KindApi, err)
		}

		for _, rec := range resp.Operator {
			if opInfo.HeadRegistryIndex != nil && rec.RegistryIndex <= *opInfo.HeadRegistryIndex {
				continue
			}
			if err := opInfo.State.Validate(rec.Envelope); err != nil {
				return newErr(KindOperatorValidationFailed, err)
			}
			idx := rec.RegistryIndex
			opInfo.HeadRegistryIndex = &idx
			token := rec.FetchToken
			opInfo.HeadFetchToken = &token
			c.metrics.AddRecordsApplied(1)
		}

		for logID, records := range resp.Packages {
			p, ok := logIDToPackage[logID]
			if !ok {
				return newErr(KindApi, fmt.Errorf("client: server returned records for unknown log %q", logID))
			}
			for _, rec := range records {
				if p.HeadRegistryIndex != nil && rec.RegistryIndex <= *p.HeadRegistryIndex {
					continue
				}
				if err := p.State.Validate(rec.Envelope); err != nil {
					return packageErr(KindPackageValidationFailed, p.Name, err)
				}
				idx := rec.RegistryIndex
				p.HeadRegistryIndex = &idx
				token := rec.FetchToken
				p.HeadFetchToken = &token
				c.metrics.AddRecordsApplied(1)
			}
		}

		if !resp.More {
			break
		}
		for logID, p := range logIDToPackage {
			lastKnown[logID] = p.HeadFetchToken
		}
	}

	for _, p := range ps {
		if p.State.Head() == nil {
			return packageErr(KindPackageLogEmpty, p.Name, nil)
		}
	}

	// Step C: checkpoint signature.
	signingKey, ok := opInfo.State.PublicKey(trusted.KeyID)
	if !ok {
		return newErr(KindInvalidCheckpointKeyId, fmt.Errorf("client: unknown checkpoint key %q", trusted.KeyID))
	}
	if err := trusted.Verify(signingKey); err != nil {
		return newErr(KindInvalidCheckpointSignature, err)
	}

	// Step D: inclusion proof over the deterministic leaf ordering: operator
	// head first, then each package head in ps order.
	opHead := opInfo.State.Head()
	if opHead == nil {
		return newErr(KindNoOperatorRecords, nil)
	}
	leafIndices := make([]uint64, 0, 1+len(ps))
	leafData := make([][]byte, 0, 1+len(ps))
	leafIndices = append(leafIndices, *opInfo.HeadRegistryIndex)
	leafData = append(leafData, opHead.Digest.Bytes)
	for _, p := range ps {
		leafIndices = append(leafIndices, *p.HeadRegistryIndex)
		leafData = append(leafData, p.State.Head().Digest.Bytes)
	}

	incResp, err := c.api.ProveInclusion(ctx, domain, api.InclusionRequest{LogLength: target.LogLength, Leafs: leafIndices})
	if err != nil {
		return newErr(KindApi, err)
	}
	proofByIndex := make(map[uint64][][]byte, len(incResp.Proofs))
	for _, pr := range incResp.Proofs {
		proofByIndex[pr.LeafIndex] = pr.Proof
	}
	leaves := make([]verify.Leaf, 0, len(leafIndices))
	for i, idx := range leafIndices {
		proof, ok := proofByIndex[idx]
		if !ok {
			return newErr(KindApi, fmt.Errorf("client: server omitted inclusion proof for leaf %d", idx))
		}
		leaves = append(leaves, verify.Leaf{Hash: verify.HashLeaf(leafData[i]), LeafIndex: idx, Proof: proof})
	}
	if err := verify.Inclusion(target.LogLength, target.LogRoot.Bytes, leaves); err != nil {
		return newErr(KindInvalidCheckpointSignature, err)
	}

	// Step E: consistency proof against the previously trusted checkpoint.
	prevEnv, err := c.registry.LoadCheckpoint(ctx, domain)
	if err != nil {
		return newErr(KindApi, err)
	}
	if prevEnv != nil {
		prev := prevEnv.Content.Checkpoint
		switch {
		case prev.LogLength > target.LogLength:
			return &Error{Kind: KindCheckpointLogLengthRewind, From: prev.LogLength, To: target.LogLength}
		case prev.LogLength < target.LogLength:
			consResp, err := c.api.ProveConsistency(ctx, domain, api.ConsistencyRequest{From: prev.LogLength, To: target.LogLength})
			if err != nil {
				return newErr(KindApi, err)
			}
			if err := verify.Consistency(prev.LogLength, target.LogLength, prev.LogRoot.Bytes, target.LogRoot.Bytes, consResp.Proof); err != nil {
				return newErr(KindCheckpointChangedLogRootOrMapRoot, err)
			}
		default:
			if !prev.Equal(target) {
				return &Error{Kind: KindCheckpointChangedLogRootOrMapRoot, LogLength: target.LogLength}
			}
		}
	}

	// Step F: commit, in the order operator, packages, checkpoint.
	if err := c.registry.StoreOperator(ctx, domain, opInfo); err != nil {
		return newErr(KindApi, err)
	}
	for _, p := range ps {
		cp := target
		p.Checkpoint = &cp
		if err := c.registry.StorePackage(ctx, domain, p); err != nil {
			return newErr(KindApi, err)
		}
	}
	if err := c.registry.StoreCheckpoint(ctx, domain, trusted); err != nil {
		return newErr(KindApi, err)
	}
	return nil
}
