package rpc

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte("hello world")

	require.NoError(t, writeFrame(&buf, payload))
	got, err := readFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestFrameRoundTrip_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeFrame(&buf, nil))
	got, err := readFrame(&buf)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReadFrame_RejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	_, err := readFrame(&buf)
	assert.Error(t, err)
}

func TestReadFrame_ShortHeaderErrors(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0x00, 0x01})
	_, err := readFrame(&buf)
	assert.Error(t, err)
}
