// Package element implements the structure-element codec: serializing
// and parsing a node of the object DAG, and exposing its type tag and
// outbound link set. Parsing is pure; no I/O. Serialization is
// deterministic per value, so that equal elements produce equal keys.
package element

import (
	"bytes"
	"fmt"
	"io"

	atdata "github.com/bluesky-social/indigo/atproto/data"
	"github.com/ipfs/go-cid"
	cbg "github.com/whyrusleeping/cbor-gen"
	"github.com/multiformats/go-multihash"
)

// Link is one outbound edge of a structure element: the target's key,
// its declared type tag, and the logical name this element knows it by
// (e.g. "objectroot", "parent", "resource_type").
type Link struct {
	Name       string
	TargetType string
	Target     cid.Cid
}

// Element is the in-memory form of a structure element: a type tag, an
// arbitrary payload of scalar/nested fields, and an ordered outbound
// link set. The blob store never interprets Payload or Links — only
// this package does.
type Element struct {
	Type    string
	Payload map[string]any
	Links   []Link
}

// Key computes the content-addressed key for an element: the hash of
// its canonical serialized bytes. Two elements with equal Type, Payload
// and Links always produce the same key, which is what makes commit
// deduplication free (spec invariant: "two writers who compute identical
// content produce the same commit key").
func Key(raw []byte) (cid.Cid, error) {
	builder := cid.NewPrefixV1(cid.DagCBOR, multihash.SHA2_256)
	return builder.Sum(raw)
}

// Encode serializes an element to canonical CBOR bytes. The envelope
// (type tag + link array) is hand-written in the style of
// whyrusleeping/cbor-gen generated code; the payload sub-map is handed
// to atproto/data's canonical CBOR codec, the same way the teacher's
// repo.EncodeRecord hands a parsed record to data.MarshalCBOR.
func Encode(e *Element) ([]byte, error) {
	payloadBytes, err := atdata.MarshalCBOR(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("element: marshal payload: %w", err)
	}

	var buf bytes.Buffer
	cw := cbg.NewCborWriter(&buf)

	if err := cw.WriteMajorTypeHeader(cbg.MajMap, 3); err != nil {
		return nil, fmt.Errorf("element: write envelope header: %w", err)
	}

	if err := cbg.WriteString(cw, "type"); err != nil {
		return nil, fmt.Errorf("element: write type key: %w", err)
	}
	if err := cbg.WriteString(cw, e.Type); err != nil {
		return nil, fmt.Errorf("element: write type value: %w", err)
	}

	if err := cbg.WriteString(cw, "payload"); err != nil {
		return nil, fmt.Errorf("element: write payload key: %w", err)
	}
	if err := cbg.WriteByteArray(cw, payloadBytes); err != nil {
		return nil, fmt.Errorf("element: write payload value: %w", err)
	}

	if err := cbg.WriteString(cw, "links"); err != nil {
		return nil, fmt.Errorf("element: write links key: %w", err)
	}
	if err := cw.WriteMajorTypeHeader(cbg.MajArray, uint64(len(e.Links))); err != nil {
		return nil, fmt.Errorf("element: write links header: %w", err)
	}
	for _, l := range e.Links {
		if err := writeLink(cw, l); err != nil {
			return nil, fmt.Errorf("element: write link %q: %w", l.Name, err)
		}
	}

	return buf.Bytes(), nil
}

func writeLink(cw *cbg.CborWriter, l Link) error {
	if err := cw.WriteMajorTypeHeader(cbg.MajMap, 3); err != nil {
		return err
	}
	if err := cbg.WriteString(cw, "name"); err != nil {
		return err
	}
	if err := cbg.WriteString(cw, l.Name); err != nil {
		return err
	}
	if err := cbg.WriteString(cw, "target_type"); err != nil {
		return err
	}
	if err := cbg.WriteString(cw, l.TargetType); err != nil {
		return err
	}
	if err := cbg.WriteString(cw, "target"); err != nil {
		return err
	}
	return cbg.WriteCid(cw, l.Target)
}

// Decode parses serialized bytes back into an Element, without touching
// any store.
func Decode(data []byte) (*Element, error) {
	cr := cbg.NewCborReader(bytes.NewReader(data))

	maj, extra, err := cr.ReadHeader()
	if err != nil {
		return nil, fmt.Errorf("element: read envelope header: %w", err)
	}
	if maj != cbg.MajMap || extra != 3 {
		return nil, fmt.Errorf("element: unexpected envelope shape (major=%d len=%d)", maj, extra)
	}

	e := &Element{}
	for i := 0; i < 3; i++ {
		key, err := cbg.ReadString(cr)
		if err != nil {
			return nil, fmt.Errorf("element: read field key: %w", err)
		}
		switch key {
		case "type":
			e.Type, err = cbg.ReadString(cr)
			if err != nil {
				return nil, fmt.Errorf("element: read type: %w", err)
			}
		case "payload":
			payload, err := cbg.ReadByteArray(cr, cbg.ByteArrayMaxLen)
			if err != nil {
				return nil, fmt.Errorf("element: read payload: %w", err)
			}
			e.Payload, err = atdata.UnmarshalCBOR(payload)
			if err != nil {
				return nil, fmt.Errorf("element: unmarshal payload: %w", err)
			}
		case "links":
			_, n, err := cr.ReadHeader()
			if err != nil {
				return nil, fmt.Errorf("element: read links header: %w", err)
			}
			e.Links = make([]Link, 0, n)
			for j := uint64(0); j < n; j++ {
				l, err := readLink(cr)
				if err != nil {
					return nil, fmt.Errorf("element: read link %d: %w", j, err)
				}
				e.Links = append(e.Links, l)
			}
		default:
			return nil, fmt.Errorf("element: unexpected envelope key %q", key)
		}
	}
	return e, nil
}

func readLink(cr *cbg.CborReader) (Link, error) {
	var l Link
	_, extra, err := cr.ReadHeader()
	if err != nil {
		return l, err
	}
	for i := uint64(0); i < extra; i++ {
		key, err := cbg.ReadString(cr)
		if err != nil {
			return l, err
		}
		switch key {
		case "name":
			if l.Name, err = cbg.ReadString(cr); err != nil {
				return l, err
			}
		case "target_type":
			if l.TargetType, err = cbg.ReadString(cr); err != nil {
				return l, err
			}
		case "target":
			if l.Target, err = cbg.ReadCid(cr); err != nil {
				return l, err
			}
		default:
			return l, fmt.Errorf("element: unexpected link key %q", key)
		}
	}
	return l, nil
}


// FromJSON parses caller-supplied JSON into a canonical payload map via
// atproto/data's JSON decoder, which already understands embedded
// CID-link references ("$link"-style fields) — reused here as the
// generic payload parser, not for AT Protocol record types.
func FromJSON(raw []byte) (map[string]any, error) {
	return atdata.UnmarshalJSON(raw)
}

// ToJSON renders a payload map back to JSON for API responses.
func ToJSON(payload map[string]any) ([]byte, error) {
	return atdata.MarshalJSON(payload)
}

// WriteTo encodes and writes an element directly to w, useful when
// streaming many elements into a CAR archive.
func WriteTo(w io.Writer, e *Element) error {
	b, err := Encode(e)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}
