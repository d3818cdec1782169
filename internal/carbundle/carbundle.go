// Package carbundle packages a set of structure-element blobs into a
// CAR v1 archive, and unpacks one back into individual blobs. This is
// the bulk-transfer wire format for pull's get_head_content blob set
// and push's diff set (spec.md §2's "partial-transfer optimisation"),
// grounded in teacher's internal/repo.MemBlockstore.ExportCAR and
// TrackingBlockstore.ExportDiffCAR — the same per-block length-delimited
// CID+data framing, generalized from an MST repo's blocks to this
// store's content-addressed structure elements.
package carbundle

import (
	"bytes"
	"fmt"
	"io"

	blocks "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"
	car "github.com/ipld/go-car"
	carutil "github.com/ipld/go-car/util"

	"github.com/oceanobs/objstore/internal/element"
)

// Encode packages rawElements into a CAR v1 archive, one block per
// element, addressed by its content key. An empty input produces a
// nil archive rather than a zero-root CAR file, since there is no
// single entry point to declare a root for.
func Encode(rawElements [][]byte) ([]byte, error) {
	if len(rawElements) == 0 {
		return nil, nil
	}

	roots := make([]cid.Cid, 0, len(rawElements))
	blks := make([]blocks.Block, 0, len(rawElements))
	for _, raw := range rawElements {
		key, err := element.Key(raw)
		if err != nil {
			return nil, fmt.Errorf("carbundle: key element: %w", err)
		}
		blk, err := blocks.NewBlockWithCid(raw, key)
		if err != nil {
			return nil, fmt.Errorf("carbundle: wrap block %s: %w", key, err)
		}
		roots = append(roots, key)
		blks = append(blks, blk)
	}

	var buf bytes.Buffer
	header := &car.CarHeader{Roots: roots, Version: 1}
	if err := car.WriteHeader(header, &buf); err != nil {
		return nil, fmt.Errorf("carbundle: write header: %w", err)
	}
	for _, blk := range blks {
		if err := carutil.LdWrite(&buf, blk.Cid().Bytes(), blk.RawData()); err != nil {
			return nil, fmt.Errorf("carbundle: write block %s: %w", blk.Cid(), err)
		}
	}
	return buf.Bytes(), nil
}

// Decode unpacks a CAR v1 archive back into raw element bytes, one per
// block, in archive order. A nil/empty archive decodes to no elements.
func Decode(data []byte) ([][]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	reader, err := car.NewCarReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("carbundle: read header: %w", err)
	}

	var out [][]byte
	for {
		blk, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("carbundle: read block: %w", err)
		}
		out = append(out, blk.RawData())
	}
	return out, nil
}
