package encoding

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type snapshotLike struct {
	Version  uint64 `msgpack:"version"`
	Name     string `msgpack:"name"`
	Manifest []byte `msgpack:"manifest"`
}

func TestMarshal_StructRoundTrip(t *testing.T) {
	in := snapshotLike{Version: 3, Name: "cluster", Manifest: []byte("<ClusterManifest/>")}

	data, err := Marshal(in)
	require.NoError(t, err)

	var out snapshotLike
	require.NoError(t, Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestUnmarshal_StringsStayStrings(t *testing.T) {
	data, err := Marshal(map[string]interface{}{"node": "N0.0"})
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, Unmarshal(data, &out))
	_, isString := out["node"].(string)
	assert.True(t, isString)
}

func TestCompress_AllLevels(t *testing.T) {
	payload := bytes.Repeat([]byte("<Parameter Name=\"x\" Value=\"y\" />"), 200)

	for level := 0; level <= 4; level++ {
		framed, err := Compress(payload, level)
		require.NoError(t, err)
		if level > 0 {
			assert.Less(t, len(framed), len(payload))
		}

		out, err := Decompress(framed)
		require.NoError(t, err)
		assert.Equal(t, payload, out)
	}
}

func TestDecompress_UnknownFrame(t *testing.T) {
	_, err := Decompress(nil)
	assert.ErrorIs(t, err, ErrUnknownFrame)

	_, err = Decompress([]byte{0x7f, 1, 2})
	assert.ErrorIs(t, err, ErrUnknownFrame)
}
