package milestones

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	d, err := Load()
	require.NoError(t, err)

	entries := d.Entries()
	require.NotEmpty(t, entries)
	for i := 1; i < len(entries); i++ {
		assert.Less(t, entries[i-1].Month, entries[i].Month)
	}
	for _, e := range entries {
		assert.NotEmpty(t, e.Title)
		assert.NotEmpty(t, e.Milestones)
	}
}

func TestForAge(t *testing.T) {
	d, err := Load()
	require.NoError(t, err)

	cases := map[int]int{
		0:   1,
		1:   1,
		3:   2,
		6:   6,
		11:  9,
		12:  12,
		30:  24,
		60:  60,
		100: 60,
	}
	for age, month := range cases {
		assert.Equal(t, month, d.ForAge(age).Month, "age %d", age)
	}
}

func TestParse(t *testing.T) {
	d, err := Parse([]byte(`{"monthly_development":[{"month":6,"title":"b"},{"month":2,"title":"a"}]}`))
	require.NoError(t, err)
	assert.Equal(t, "a", d.ForAge(0).Title)
	assert.Equal(t, "b", d.ForAge(7).Title)

	_, err = Parse([]byte(`{"monthly_development":[]}`))
	assert.Error(t, err)
	_, err = Parse([]byte(`{`))
	assert.Error(t, err)
}
