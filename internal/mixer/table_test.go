package mixer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_DefaultsAndCompute(t *testing.T) {
	tbl := NewTable(nil)
	require.Len(t, tbl.Rows(), 16)

	out := tbl.Compute([]float64{0.5}, nil)
	require.Len(t, out, 16)
	for _, v := range out {
		assert.Equal(t, DefaultMin, v)
	}
	assert.Equal(t, out, tbl.Last())
}

func TestTable_Replace(t *testing.T) {
	tbl := NewTable(nil)
	err := tbl.Replace([]RowConfig{{Name: "Thr", Src: "AXIS", Index: 0}})
	require.NoError(t, err)

	rows := tbl.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, SourceAxis, rows[0].Src)
	assert.Equal(t, DefaultMax, tbl.Compute([]float64{1}, nil)[0])

	assert.Error(t, tbl.Replace(nil))
	assert.Error(t, tbl.Replace([]RowConfig{{Src: SourceAxis, Min: 1600, Center: 1500, Max: 2000}}))
	assert.Len(t, tbl.Rows(), 1, "failed replace keeps previous rows")
}
