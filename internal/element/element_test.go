package element

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	e := &Element{
		Type: "resource",
		Payload: map[string]any{
			"resource_type":  "RT",
			"lifecycle_state": "Active",
		},
		Links: []Link{},
	}

	b, err := Encode(e)
	require.NoError(t, err)

	got, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, e.Type, got.Type)
	assert.Equal(t, e.Payload["resource_type"], got.Payload["resource_type"])
	assert.Equal(t, e.Payload["lifecycle_state"], got.Payload["lifecycle_state"])
	assert.Empty(t, got.Links)
}

func TestKeyDeterministic(t *testing.T) {
	e := &Element{Type: "terminology", Payload: map[string]any{"keyword": "salinity"}}

	b1, err := Encode(e)
	require.NoError(t, err)
	b2, err := Encode(e)
	require.NoError(t, err)

	k1, err := Key(b1)
	require.NoError(t, err)
	k2, err := Key(b2)
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
}

func TestKeyDiffersForDifferentPayload(t *testing.T) {
	e1 := &Element{Type: "terminology", Payload: map[string]any{"keyword": "salinity"}}
	e2 := &Element{Type: "terminology", Payload: map[string]any{"keyword": "temperature"}}

	b1, err := Encode(e1)
	require.NoError(t, err)
	b2, err := Encode(e2)
	require.NoError(t, err)

	k1, err := Key(b1)
	require.NoError(t, err)
	k2, err := Key(b2)
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2)
}

func TestJSONRoundTrip(t *testing.T) {
	raw := []byte(`{"keyword":"salinity"}`)
	payload, err := FromJSON(raw)
	require.NoError(t, err)
	assert.Equal(t, "salinity", payload["keyword"])

	out, err := ToJSON(payload)
	require.NoError(t, err)
	assert.Contains(t, string(out), "salinity")
}
