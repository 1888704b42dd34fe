package cache

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChartCache(t *testing.T) {
	c := NewChartCache(1)
	key := Key{BabyID: "b1", Revision: 3, Kind: "chart.png", Metric: "weight", WeightUnit: "kg", HeightUnit: "cm", Language: "en"}

	_, ok := c.Get(key)
	assert.False(t, ok)

	c.Set(key, []byte("png-bytes"))
	data, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, []byte("png-bytes"), data)
	assert.Equal(t, int64(1), c.EntryCount())

	newer := key
	newer.Revision = 4
	_, ok = c.Get(newer)
	assert.False(t, ok, "other revision must miss")

	inPounds := key
	inPounds.WeightUnit = "lb"
	_, ok = c.Get(inPounds)
	assert.False(t, ok, "other units must miss")

	c.Clear()
	_, ok = c.Get(key)
	assert.False(t, ok)
}

func TestChartCache_EntrySizes(t *testing.T) {
	c := NewChartCache(0)
	key := Key{BabyID: "b1", Kind: "chart.png"}

	chart := bytes.Repeat([]byte{1}, 66*1024)
	c.Set(key, chart)
	data, ok := c.Get(key)
	require.True(t, ok, "a full size chart must fit the smallest cache")
	assert.Len(t, data, len(chart))

	huge := key
	huge.Metric = "height"
	c.Set(huge, bytes.Repeat([]byte{1}, MaxEntryBytes+1))
	_, ok = c.Get(huge)
	assert.False(t, ok)
}

func TestMinSizeMB(t *testing.T) {
	assert.Equal(t, 128, MinSizeMB)
}
