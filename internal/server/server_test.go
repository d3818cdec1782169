package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanobs/objstore/internal/blobstore"
	"github.com/oceanobs/objstore/internal/carbundle"
	"github.com/oceanobs/objstore/internal/commitstore"
	"github.com/oceanobs/objstore/internal/config"
	"github.com/oceanobs/objstore/internal/element"
	"github.com/oceanobs/objstore/internal/objrepo"
	"github.com/oceanobs/objstore/internal/workbench"
)

func newTestServer() *Server {
	cfg := &config.Config{
		ListenAddr:          ":0",
		StoreTimeoutSeconds: 5,
	}
	wb := workbench.NewManager(blobstore.NewMemory(), commitstore.NewMemory(), 1<<20, false)
	return New(cfg, wb, nil)
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer()
	rec := doJSON(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer()
	rec := doJSON(t, s, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPullUnknownRepositoryReturns404(t *testing.T) {
	s := newTestServer()
	rec := doJSON(t, s, http.MethodPost, "/rpc/pull", pullRequestWire{RepositoryKey: "nope"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not_found", body["error"])
}

func TestPutBlobsThenFetchBlobs(t *testing.T) {
	s := newTestServer()

	e := &element.Element{Type: "terminology", Payload: map[string]any{"keyword": "salinity"}}
	raw, err := element.Encode(e)
	require.NoError(t, err)
	key, err := element.Key(raw)
	require.NoError(t, err)

	blobsCAR, err := carbundle.Encode([][]byte{raw})
	require.NoError(t, err)

	rec := doJSON(t, s, http.MethodPost, "/rpc/put_blobs", putBlobsRequestWire{BlobsCAR: blobsCAR})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/rpc/fetch_blobs", fetchBlobsRequestWire{BlobKeys: []string{key.String()}})
	require.Equal(t, http.StatusOK, rec.Code)

	var reply fetchBlobsReplyWire
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	blobElements, err := carbundle.Decode(reply.BlobsCAR)
	require.NoError(t, err)
	require.Len(t, blobElements, 1)
	assert.Equal(t, raw, blobElements[0])
}

func TestFetchBlobsMissingReturns404(t *testing.T) {
	s := newTestServer()
	rec := doJSON(t, s, http.MethodPost, "/rpc/fetch_blobs", fetchBlobsRequestWire{BlobKeys: []string{"bafkreimissing"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// TestPushRoundTrip exercises push end to end: a client-side repo is
// built directly, its reply-to fetch_blobs endpoint is served by a
// second httptest server standing in for the pusher, and the real
// push handler reverse-fetches from it before persisting.
func TestPushRoundTrip(t *testing.T) {
	s := newTestServer()

	client := objrepo.New("R1", false)
	root := &element.Element{Type: workbench.ResourceType, Payload: map[string]any{
		"resource_type":   "RT",
		"lifecycle_state": "Active",
	}}
	rootRaw, err := element.Encode(root)
	require.NoError(t, err)
	rootKey, err := element.Key(rootRaw)
	require.NoError(t, err)
	client.IndexHash[rootKey.String()] = root
	client.SetWorkingObject(rootKey)
	commitKey, err := client.Commit("alice", "initial")
	require.NoError(t, err)

	pusherServer := newFakePusherServer(t, client)
	defer pusherServer.Close()

	headBytes, err := workbench.EncodeHeadForPush("R1", client.Head)
	require.NoError(t, err)

	rec := doJSON(t, s, http.MethodPost, "/rpc/push", pushRequestWire{Repositories: []pushRepoWire{{
		RepositoryKey:   "R1",
		BlobKeys:        []string{rootKey.String(), commitKey},
		RepoHeadElement: headBytes,
		ReplyToURL:      pusherServer.URL,
	}}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, s, http.MethodPost, "/rpc/checkout", checkoutRequestWire{
		RepositoryKey:     "R1",
		CommitKeyOrBranch: "master",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

// newFakePusherServer serves /rpc/fetch_blobs from client's in-memory
// index, standing in for a real pusher's reverse-RPC endpoint.
func newFakePusherServer(t *testing.T, client *objrepo.Repository) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/rpc/fetch_blobs", func(w http.ResponseWriter, r *http.Request) {
		var req fetchBlobsRequestWire
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		var blobElements [][]byte
		for _, key := range req.BlobKeys {
			e, ok := client.IndexHash[key]
			if !ok {
				continue
			}
			raw, err := element.Encode(e)
			require.NoError(t, err)
			blobElements = append(blobElements, raw)
		}
		blobsCAR, err := carbundle.Encode(blobElements)
		require.NoError(t, err)

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(fetchBlobsReplyWire{BlobsCAR: blobsCAR}))
	})
	return httptest.NewServer(mux)
}
