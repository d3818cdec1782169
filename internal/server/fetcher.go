package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/oceanobs/objstore/internal/carbundle"
	"github.com/oceanobs/objstore/internal/element"
)

// httpFetcher implements workbench.BlobFetcher by calling back to the
// pusher's own fetch_blobs endpoint — the HTTP expression of spec
// §4.5.2 step 4's "invoke fetch_blobs against the pusher" reverse RPC.
type httpFetcher struct {
	baseURL string
	client  *http.Client
}

func (f *httpFetcher) FetchBlobs(ctx context.Context, keys []string) (map[string][]byte, error) {
	reqBody, err := json.Marshal(fetchBlobsRequestWire{BlobKeys: keys})
	if err != nil {
		return nil, fmt.Errorf("server: marshal reverse fetch_blobs request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+"/rpc/fetch_blobs", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("server: build reverse fetch_blobs request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("server: reverse fetch_blobs call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server: reverse fetch_blobs returned status %d", resp.StatusCode)
	}

	var reply fetchBlobsReplyWire
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, fmt.Errorf("server: decode reverse fetch_blobs reply: %w", err)
	}

	blobElements, err := carbundle.Decode(reply.BlobsCAR)
	if err != nil {
		return nil, fmt.Errorf("server: decode reverse fetch_blobs CAR bundle: %w", err)
	}

	out := make(map[string][]byte, len(blobElements))
	for _, raw := range blobElements {
		key, err := element.Key(raw)
		if err != nil {
			return nil, fmt.Errorf("server: key reverse-fetched blob: %w", err)
		}
		out[key.String()] = raw
	}
	return out, nil
}
