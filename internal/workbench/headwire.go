package workbench

import (
	"encoding/json"
	"fmt"

	"github.com/oceanobs/objstore/internal/objrepo"
)

// headWire is the wire form of a mutable head: unlike a structure
// element it is never content-addressed (it mutates in place as
// branches advance), so it travels as plain JSON rather than through
// the element codec.
type headWire struct {
	RepositoryKey string              `json:"repositoryKey"`
	Branches      map[string][]string `json:"branches"`
}

// EncodeHeadForPush exposes encodeHead to callers outside the package
// (the preloader, and tests that drive the HTTP dispatcher) that need
// to build a push request's repo_head_element from a client-side
// objrepo.Head.
func EncodeHeadForPush(repositoryKey string, head objrepo.Head) ([]byte, error) {
	return encodeHead(repositoryKey, head)
}

func encodeHead(repositoryKey string, head objrepo.Head) ([]byte, error) {
	w := headWire{RepositoryKey: repositoryKey, Branches: head.Branches}
	b, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("workbench: encode head: %w", err)
	}
	return b, nil
}

func decodeHead(data []byte) (string, objrepo.Head, error) {
	var w headWire
	if err := json.Unmarshal(data, &w); err != nil {
		return "", objrepo.Head{}, fmt.Errorf("workbench: decode head: %w", err)
	}
	if w.Branches == nil {
		w.Branches = make(map[string][]string)
	}
	return w.RepositoryKey, objrepo.Head{Branches: w.Branches}, nil
}
