package workbench

import (
	"context"
	"errors"
	"fmt"

	"github.com/oceanobs/objstore/internal/blobstore"
	"github.com/oceanobs/objstore/internal/element"
)

// FetchBlobsRequest mirrors spec §6's fetch_blobs request fields.
type FetchBlobsRequest struct {
	BlobKeys []string
}

// FetchBlobsReply mirrors spec §6's fetch_blobs reply fields.
type FetchBlobsReply struct {
	BlobElements [][]byte
}

// OpFetchBlobs implements spec §4.5.3's fetch_blobs: return each
// requested key from the workbench cache if present, else from the
// blob store. Any miss is a not_found error for the whole request.
func (m *Manager) OpFetchBlobs(ctx context.Context, req FetchBlobsRequest) (*FetchBlobsReply, error) {
	reply := &FetchBlobsReply{BlobElements: make([][]byte, 0, len(req.BlobKeys))}
	for _, key := range req.BlobKeys {
		if e, ok := m.cache.get(key); ok {
			raw, err := element.Encode(e)
			if err != nil {
				return nil, fmt.Errorf("workbench: encode cached blob %s: %w", key, err)
			}
			reply.BlobElements = append(reply.BlobElements, raw)
			continue
		}

		raw, err := m.blobs.Get(ctx, key)
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("workbench: fetch blob %s: %w", key, err)
		}
		reply.BlobElements = append(reply.BlobElements, raw)
	}
	return reply, nil
}

// PutBlobsRequest mirrors spec §6's put_blobs request fields.
type PutBlobsRequest struct {
	BlobElements [][]byte
}

// OpPutBlobs implements spec §4.5.3's put_blobs: writes every element
// to the blob store in parallel (fan-out then join); no key
// validation beyond storage, since content-addressing makes malicious
// substitution self-defeating.
func (m *Manager) OpPutBlobs(ctx context.Context, req PutBlobsRequest) error {
	errs := make(chan error, len(req.BlobElements))
	for _, raw := range req.BlobElements {
		raw := raw
		go func() {
			errs <- m.putOneBlob(ctx, raw)
		}()
	}
	var firstErr error
	for range req.BlobElements {
		if err := <-errs; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *Manager) putOneBlob(ctx context.Context, raw []byte) error {
	key, err := element.Key(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	if err := m.blobs.Put(ctx, key.String(), raw); err != nil {
		return fmt.Errorf("workbench: put blob %s: %w", key, err)
	}
	if m.verifyAfterPut {
		has, err := m.blobs.Has(ctx, key.String())
		if err != nil {
			return fmt.Errorf("workbench: verify blob %s: %w", key, err)
		}
		if !has {
			return fmt.Errorf("%w: blob %s", ErrVerifyFailed, key)
		}
	}
	return nil
}
