package rrddv2

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func u64to8(v uint64) [8]byte {
	var b [8]byte
	for i := 0; i < 8; i++ {
		b[7-i] = byte(v >> (8 * i))
	}
	return b
}

func TestRoundTripHeader(t *testing.T) {
	meta := []byte(`{"life":{"type":"absolute","value_type":"int64"}}`)
	values := [][8]byte{u64to8(42)}

	buf := WriteHeader(1234, values, meta)
	hdr, err := ParseHeader(buf)
	require.NoError(t, err)
	require.Equal(t, uint64(1234), hdr.Timestamp)
	require.Equal(t, uint32(1), hdr.NValues)
	require.Equal(t, values, hdr.RawValues)
	require.Equal(t, meta, hdr.Metadata)

	md, err := ParseMetadata(hdr.Metadata)
	require.NoError(t, err)
	require.Equal(t, []string{"life"}, md.Names)
	require.Equal(t, SourceAbsolute, md.Sources["life"].Type)
	require.Equal(t, ValueTypeInt64, md.Sources["life"].ValueType)

	isInt, _, i := DecodeValue(hdr.RawValues[0], md.Sources["life"].ValueType)
	require.True(t, isInt)
	require.Equal(t, int64(42), i)
}

func TestZeroValues(t *testing.T) {
	buf := WriteHeader(0, nil, []byte(`{}`))
	hdr, err := ParseHeader(buf)
	require.NoError(t, err)
	require.Equal(t, uint32(0), hdr.NValues)
	require.Empty(t, hdr.RawValues)
}

func TestInvalidConstantString(t *testing.T) {
	buf := WriteHeader(0, nil, []byte(`{}`))
	buf[0] = 'X'
	_, err := ParseHeader(buf)
	require.Error(t, err)
	pe, ok := err.(*ParseError)
	require.True(t, ok)
	require.Equal(t, ErrInvalidConstantString, pe.Kind)
}

func TestChecksumTamper(t *testing.T) {
	buf := WriteHeader(1, [][8]byte{u64to8(1)}, []byte(`{}`))
	buf[len(buf)-1] ^= 0xFF
	_, err := ParseHeader(buf)
	require.Error(t, err)
	pe, ok := err.(*ParseError)
	require.True(t, ok)
	require.Equal(t, ErrInvalidChecksum, pe.Kind)
}

func TestMetadataDefaults(t *testing.T) {
	md, err := ParseMetadata([]byte(`{"x":{}}`))
	require.NoError(t, err)
	m := md.Sources["x"]
	require.Equal(t, SourceAbsolute, m.Type)
	require.Equal(t, ValueTypeUndefined, m.ValueType)
	require.Equal(t, OwnerHost, m.Owner.Kind)
	require.False(t, m.Default)
}

func TestOwnerParsing(t *testing.T) {
	require.Equal(t, Owner{Kind: OwnerHost}, parseOwner(""))
	require.Equal(t, Owner{Kind: OwnerHost}, parseOwner("host"))
	require.Equal(t, Owner{Kind: OwnerVM, UUID: "abc-123"}, parseOwner("vm abc-123"))
	require.Equal(t, Owner{Kind: OwnerSR, UUID: "def-456"}, parseOwner("sr def-456"))
}
