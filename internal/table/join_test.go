package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeTable(t *testing.T, cols []string, data map[string][]Value) *Table {
	t.Helper()
	tbl := New()
	for _, name := range cols {
		require.NoError(t, tbl.AddColumn(name, data[name]))
	}
	return tbl
}

func TestOuterJoin_MatchedAndUnmatched(t *testing.T) {
	left := makeTable(t, []string{"RSSD_ID", "RCON2170"}, map[string][]Value{
		"RSSD_ID":  {Int(100), Int(200)},
		"RCON2170": {Float(1), Float(2)},
	})
	right := makeTable(t, []string{"RSSD_ID", "RIAD4340"}, map[string][]Value{
		"RSSD_ID":  {Int(200), Int(300)},
		"RIAD4340": {Float(20), Float(30)},
	})

	got, err := OuterJoin(left, right, "RSSD_ID")
	require.NoError(t, err)

	assert.Equal(t, []string{"RSSD_ID", "RCON2170", "RIAD4340"}, got.Columns())
	assert.Equal(t, 3, got.NumRows())

	keys, _ := got.Column("RSSD_ID")
	assert.Equal(t, []Value{Int(100), Int(200), Int(300)}, keys)

	leftCol, _ := got.Column("RCON2170")
	assert.Equal(t, []Value{Float(1), Float(2), Missing()}, leftCol)

	rightCol, _ := got.Column("RIAD4340")
	assert.Equal(t, []Value{Missing(), Float(20), Float(30)}, rightCol)
}

func TestOuterJoin_CollidedColumnKeepsFirst(t *testing.T) {
	left := makeTable(t, []string{"RSSD_ID", "RCON2170"}, map[string][]Value{
		"RSSD_ID":  {Int(100)},
		"RCON2170": {Float(1)},
	})
	right := makeTable(t, []string{"RSSD_ID", "RCON2170", "RCON0010"}, map[string][]Value{
		"RSSD_ID":  {Int(100), Int(200)},
		"RCON2170": {Float(99), Float(88)},
		"RCON0010": {Float(7), Float(8)},
	})

	got, err := OuterJoin(left, right, "RSSD_ID")
	require.NoError(t, err)

	assert.Equal(t, []string{"RSSD_ID", "RCON2170", "RCON0010"}, got.Columns())

	// The later file's duplicate column is discarded wholesale, so the
	// appended row has no RCON2170 observation at all.
	dup, _ := got.Column("RCON2170")
	assert.Equal(t, []Value{Float(1), Missing()}, dup)

	fresh, _ := got.Column("RCON0010")
	assert.Equal(t, []Value{Float(7), Float(8)}, fresh)
}

func TestOuterJoin_MissingKeysNeverMatch(t *testing.T) {
	left := makeTable(t, []string{"RSSD_ID", "A"}, map[string][]Value{
		"RSSD_ID": {Missing(), Int(1)},
		"A":       {Float(1), Float(2)},
	})
	right := makeTable(t, []string{"RSSD_ID", "B"}, map[string][]Value{
		"RSSD_ID": {Missing()},
		"B":       {Float(9)},
	})

	got, err := OuterJoin(left, right, "RSSD_ID")
	require.NoError(t, err)
	assert.Equal(t, 3, got.NumRows())

	b, _ := got.Column("B")
	assert.Equal(t, []Value{Missing(), Missing(), Float(9)}, b)
}

func TestOuterJoin_DuplicateRightKeysAppend(t *testing.T) {
	left := makeTable(t, []string{"RSSD_ID"}, map[string][]Value{
		"RSSD_ID": {Int(5)},
	})
	right := makeTable(t, []string{"RSSD_ID", "B"}, map[string][]Value{
		"RSSD_ID": {Int(5), Int(5)},
		"B":       {Float(1), Float(2)},
	})

	got, err := OuterJoin(left, right, "RSSD_ID")
	require.NoError(t, err)
	assert.Equal(t, 2, got.NumRows())

	b, _ := got.Column("B")
	assert.Equal(t, []Value{Float(1), Float(2)}, b)
}

func TestOuterJoin_MissingKeyColumn(t *testing.T) {
	left := makeTable(t, []string{"RSSD_ID"}, map[string][]Value{"RSSD_ID": {Int(1)}})
	right := makeTable(t, []string{"OTHER"}, map[string][]Value{"OTHER": {Int(1)}})

	_, err := OuterJoin(left, right, "RSSD_ID")
	assert.Error(t, err)
	_, err = OuterJoin(right, left, "RSSD_ID")
	assert.Error(t, err)
}
