package server

// Wire DTOs for the five RPC operations (spec §6). []byte fields
// marshal as base64 strings via encoding/json, so serialized elements
// travel as ordinary JSON string values.

type pushRepoWire struct {
	RepositoryKey   string   `json:"repositoryKey"`
	BlobKeys        []string `json:"blobKeys"`
	RepoHeadElement []byte   `json:"repoHeadElement"`
	// ReplyToURL is the pusher's own base URL; when the server needs a
	// blob it doesn't have, it calls POST ReplyToURL+"/rpc/fetch_blobs"
	// synchronously — the reverse RPC spec §4.5.2 step 4 describes,
	// expressed over this module's HTTP+JSON transport rather than a
	// persistent reply-to channel.
	ReplyToURL string `json:"replyToURL"`
}

type pushRequestWire struct {
	Repositories []pushRepoWire `json:"repositories"`
}

type pullRequestWire struct {
	RepositoryKey  string   `json:"repositoryKey"`
	CommitKeys     []string `json:"commitKeys"`
	GetHeadContent bool     `json:"getHeadContent"`
	ExcludedTypes  []string `json:"excludedTypes"`
}

type pullReplyWire struct {
	RepoHeadElement []byte   `json:"repoHeadElement"`
	CommitElements  [][]byte `json:"commitElements"`
	// BlobsCAR is the blob set packaged as a CAR v1 archive (spec's
	// bulk-transfer back channel), not a plain JSON array of blobs.
	BlobsCAR []byte `json:"blobsCar"`
}

type checkoutRequestWire struct {
	RepositoryKey     string `json:"repositoryKey"`
	CommitKeyOrBranch string `json:"commitKeyOrBranch"`
}

type checkoutReplyWire struct {
	CommitElement []byte `json:"commitElement"`
	// BlobsCAR is the blob set packaged as a CAR v1 archive.
	BlobsCAR []byte `json:"blobsCar"`
}

type fetchBlobsRequestWire struct {
	BlobKeys []string `json:"blobKeys"`
}

type fetchBlobsReplyWire struct {
	// BlobsCAR is the fetched blob set packaged as a CAR v1 archive.
	BlobsCAR []byte `json:"blobsCar"`
}

type putBlobsRequestWire struct {
	// BlobsCAR is the blob set being written, packaged as a CAR v1
	// archive (spec's bulk-transfer back channel, mirrored here for
	// the forward direction too).
	BlobsCAR []byte `json:"blobsCar"`
}

func toSet(list []string) map[string]bool {
	out := make(map[string]bool, len(list))
	for _, v := range list {
		out[v] = true
	}
	return out
}
