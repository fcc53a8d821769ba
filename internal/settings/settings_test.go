package settings

import (
	"bytes"
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focus-stacker/internal/core"
)

// legacyStream builds a file the way the desktop application wrote it.
func legacyStream(t *testing.T, unknownTag bool) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("PARAMS\x00\x00")
	require.NoError(t, binary.Write(&buf, binary.BigEndian, uint16(5)))

	entry := func(name string, tag byte, value any) {
		buf.WriteByte(byte(len(name)))
		buf.WriteString(name)
		buf.WriteByte(tag)
		require.NoError(t, binary.Write(&buf, binary.BigEndian, value))
	}
	entry("Blend layers", 0x02, uint8(1))
	entry("Laplacian Kernel size", 0x01, int32(7))
	entry("Smooth Kernel size", 0x01, int32(21))
	entry("Smooth iterations", 0x01, int32(3))
	if unknownTag {
		entry("Smooth strength", 0x09, int32(1))
	} else {
		entry("Smooth strength", 0x03, float64(42.5))
	}
	return buf.Bytes()
}

func TestDecodeLegacyStream(t *testing.T) {
	ps, err := Decode(bytes.NewReader(legacyStream(t, false)))
	require.NoError(t, err)
	require.Len(t, ps, 5)

	assert.Equal(t, BoolValue(true), ps[NameBlendLayers])
	assert.Equal(t, IntValue(7), ps[NameLaplaceKernel])
	assert.Equal(t, FloatValue(42.5), ps[NameSmoothStrength])

	got := ps.Apply(core.DefaultParameters())
	assert.Equal(t, 7, got.LaplaceKernelSize)
	assert.Equal(t, 21, got.SmoothKernelSize)
	assert.Equal(t, 3, got.SmoothIterations)
	assert.Equal(t, 42.5, got.SmoothStrength)
	assert.True(t, got.BlendLayers)
	assert.Equal(t, 5, got.LaplacianAperture, "absent values keep the base")
}

func TestEncodeMatchesLegacyLayout(t *testing.T) {
	ps := Params{
		NameBlendLayers:      BoolValue(true),
		NameLaplaceKernel:    IntValue(7),
		NameSmoothKernel:     IntValue(21),
		NameSmoothIterations: IntValue(3),
		NameSmoothStrength:   FloatValue(42.5),
	}
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, ps))
	assert.Equal(t, legacyStream(t, false), buf.Bytes())
}

func TestDecodeRejects(t *testing.T) {
	_, err := Decode(bytes.NewReader(legacyStream(t, true)))
	assert.ErrorIs(t, err, ErrInvalidFormat)

	_, err = Decode(bytes.NewReader([]byte("NOTPARAMS\x00\x00")))
	assert.ErrorIs(t, err, ErrInvalidFormat)

	_, err = Decode(bytes.NewReader([]byte("PAR")))
	assert.ErrorIs(t, err, ErrInvalidFormat)

	full := legacyStream(t, false)
	_, err = Decode(bytes.NewReader(full[:len(full)-3]))
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestHeaderPaddingIgnored(t *testing.T) {
	stream := legacyStream(t, false)
	stream[6], stream[7] = ' ', ' '
	_, err := Decode(bytes.NewReader(stream))
	assert.NoError(t, err)
}

func TestParametersRoundTrip(t *testing.T) {
	p := core.DefaultParameters()
	p.LaplaceKernelSize = 5
	p.LaplacianAperture = 7
	p.SmoothKernelSize = 9
	p.SmoothStrength = 12.25
	p.SmoothIterations = 0
	p.BlendLayers = false

	path := filepath.Join(t.TempDir(), "stack.param")
	require.NoError(t, SaveParameters(path, p))

	got, err := LoadParameters(path, core.DefaultParameters())
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestLoadMissingFile(t *testing.T) {
	base := core.DefaultParameters()
	got, err := LoadParameters(filepath.Join(t.TempDir(), "missing.param"), base)
	assert.Error(t, err)
	assert.Equal(t, base, got)
}

func TestValueConversions(t *testing.T) {
	n, ok := FloatValue(3.9).AsInt()
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	f, ok := IntValue(4).AsFloat()
	assert.True(t, ok)
	assert.Equal(t, 4.0, f)

	_, ok = BoolValue(true).AsFloat()
	assert.False(t, ok)

	b, ok := IntValue(2).AsBool()
	assert.True(t, ok)
	assert.True(t, b)
}
