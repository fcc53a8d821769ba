package report

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelDropsWhenFull(t *testing.T) {
	ch := NewChannel(2)
	ch.OnProgress("phase", 0, 3)
	ch.OnProgress("phase", 1, 3)
	ch.OnProgress("phase", 2, 3)
	ch.Close()

	var got []Event
	for ev := range ch.Events() {
		got = append(got, ev)
	}
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[1].Value)
	assert.Equal(t, int64(1), ch.Dropped())
}

func TestRecorderFilters(t *testing.T) {
	var r Recorder
	r.OnProgress("a", 0, 2)
	r.OnPreview(image.NewGray(image.Rect(0, 0, 2, 2)), true)
	r.OnProgress("b", 1, 1)
	r.OnProgress("a", 2, 2)

	a := r.Progress("a")
	require.Len(t, a, 2)
	assert.Equal(t, 2, a[1].Value)
	require.Len(t, r.Previews(), 1)
	assert.True(t, r.Previews()[0].Grayscale)
}

func TestFuncsSkipsNil(t *testing.T) {
	calls := 0
	f := Funcs{Progress: func(string, int, int) { calls++ }}
	f.OnProgress("x", 1, 1)
	f.OnPreview(nil, false)
	assert.Equal(t, 1, calls)
}
