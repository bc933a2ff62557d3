package client

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wargproto/warg-go/api"
	"github.com/wargproto/warg-go/crypto"
	"github.com/wargproto/warg-go/protocol"
	"github.com/wargproto/warg-go/storage"
)

// maxConcurrentUploads bounds the errgroup spawned for step 6's missing
// content uploads (spec.md §5: "SHOULD issue them concurrently bounded by a
// small degree").
const maxConcurrentUploads = 4

// Publish runs the publish pipeline (C6) against the client's default
// registry domain and returns the server-assigned record id.
func (c *Client) Publish(ctx context.Context, key crypto.PrivateKey, info storage.PublishInfo) (protocol.RecordId, error) {
	return c.PublishWithInfo(ctx, "", key, info)
}

// PublishWithInfo runs the publish pipeline (C6) against domain.
func (c *Client) PublishWithInfo(ctx context.Context, domain string, key crypto.PrivateKey, info storage.PublishInfo) (protocol.RecordId, error) {
	var zero protocol.RecordId

	// Clear any stored pending publish regardless of how this call ends,
	// per step 8.
	defer func() {
		_ = c.registry.StorePublish(ctx, domain, nil)
	}()

	// Step 1.
	if len(info.Entries) == 0 {
		return zero, newErr(KindNothingToPublish, nil)
	}

	logID := protocol.PackageLogId(info.Name)

	// Step 2.
	p, err := c.registry.LoadPackage(ctx, domain, info.Name)
	if err != nil {
		return zero, newErr(KindApi, err)
	}
	if p == nil {
		p = storage.NewPackageInfo(info.Name)
	}
	initializing := info.Initializing()
	if !initializing && p.State.Head() == nil {
		if err := c.resyncSinglePackage(ctx, domain, p); err != nil {
			return zero, err
		}
		if head := p.State.Head(); head != nil {
			recordID := head.RecordId
			info.Head = &recordID
		}
	} else if head := p.State.Head(); head != nil {
		recordID := head.RecordId
		info.Head = &recordID
	}

	// Step 3.
	switch {
	case initializing && p.State.Head() != nil:
		return zero, packageErr(KindCannotInitializePackage, info.Name, nil)
	case !initializing && p.State.Head() == nil:
		return zero, packageErr(KindMustInitializePackage, info.Name, nil)
	}

	if err := c.registry.StorePublish(ctx, domain, &info); err != nil {
		return zero, newErr(KindApi, err)
	}

	// Step 4.
	envelope, err := info.Finalize(key, time.Now())
	if err != nil {
		return zero, newErr(KindApi, err)
	}

	// Step 5.
	result, err := c.api.PublishPackageRecord(ctx, domain, logID, api.PublishRecordRequest{
		PackageName:    info.Name,
		Record:         envelope,
		ContentSources: nil,
	})
	if err != nil {
		return zero, translateFetchError(info.Name, err)
	}

	// Step 6.
	if err := c.uploadMissingContent(ctx, info.Name, result.RecordId, result.MissingContentList()); err != nil {
		return zero, err
	}

	// Step 7.
	return result.RecordId, nil
}

// resyncSinglePackage re-synchronizes one package's log to the latest
// checkpoint (spec.md §4.6 step 2), as a sub-call of C5 with Ps = [p].
func (c *Client) resyncSinglePackage(ctx context.Context, domain string, p *storage.PackageInfo) error {
	trusted, err := c.api.LatestCheckpoint(ctx, domain)
	if err != nil {
		return newErr(KindApi, err)
	}
	if err := c.UpdateCheckpoint(ctx, domain, trusted, []string{p.Name}); err != nil {
		return err
	}
	refreshed, err := c.registry.LoadPackage(ctx, domain, p.Name)
	if err != nil {
		return newErr(KindApi, err)
	}
	if refreshed != nil {
		*p = *refreshed
	}
	return nil
}

// uploadMissingContent streams every digest the server reported missing to
// its first Http upload endpoint, bounded by maxConcurrentUploads concurrent
// uploads (spec.md §5's "SHOULD issue them concurrently").
func (c *Client) uploadMissingContent(ctx context.Context, name string, recordID protocol.RecordId, missing []api.MissingContent) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentUploads)

	for _, m := range missing {
		m := m
		if len(m.Upload) == 0 || !m.Upload[0].IsHttp() {
			continue
		}
		endpoint := m.Upload[0]
		digest := crypto.Hash{Algorithm: crypto.Sha256, Bytes: m.Digest}

		g.Go(func() error {
			r, ok, err := c.content.LoadContent(ctx, digest)
			if err != nil {
				return newErr(KindApi, err)
			}
			if !ok {
				return packageErr(KindContentNotFound, name, nil)
			}
			defer r.Close()

			if err := c.api.UploadContent(ctx, endpoint, r); err != nil {
				c.metrics.IncUploadFailures()
				var pe *api.PackageError
				if errors.As(err, &pe) {
					return &Error{Kind: KindPublishRejected, Name: name, RecordId: recordID, Reason: pe.Rejection, Err: err}
				}
				return newErr(KindApi, err)
			}
			return nil
		})
	}

	return g.Wait()
}

// WaitForPublish polls get_package_record at interval until the record
// reaches a terminal state, per spec.md §4.6's wait_for_publish.
func (c *Client) WaitForPublish(ctx context.Context, domain string, name string, recordID protocol.RecordId, interval time.Duration) error {
	logID := protocol.PackageLogId(name)
	for {
		rec, err := c.api.GetPackageRecord(ctx, domain, logID, recordID)
		if err != nil {
			return translateFetchError(name, err)
		}
		switch rec.State {
		case api.PackageRecordSourcing:
			return packageErr(KindPackageMissingContent, name, nil)
		case api.PackageRecordProcessing:
			select {
			case <-ctx.Done():
				return newErr(KindApi, ctx.Err())
			case <-time.After(interval):
			}
		case api.PackageRecordPublished:
			return nil
		case api.PackageRecordRejected:
			return &Error{Kind: KindPublishRejected, Name: name, RecordId: recordID, Reason: rec.Reason}
		}
	}
}
