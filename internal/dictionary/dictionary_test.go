package dictionary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDictionary_Lookup(t *testing.T) {
	d := New([]VariableDescriptor{
		{Code: "RCON2170", Description: "Total assets", Forms: []string{"FFIEC 031", "FFIEC 041"}},
		{Code: "RIAD4340", Description: "Net income"},
	})

	require.Equal(t, 2, d.Len())

	desc, ok := d.Lookup("RCON2170")
	require.True(t, ok)
	assert.Equal(t, "Total assets", desc.Description)

	_, ok = d.Lookup("RCON9999")
	assert.False(t, ok)

	assert.Equal(t, "Net income", d.Description("RIAD4340"))
	assert.Equal(t, "", d.Description("UNKNOWN"))
}

func TestDictionary_CaseInsensitiveLookup(t *testing.T) {
	d := New([]VariableDescriptor{
		{Code: "rcon2170", Description: "Total assets", Forms: []string{"FFIEC 031"}},
	})

	_, ok := d.Lookup("RCON2170")
	assert.True(t, ok)
	assert.Equal(t, "Total assets", d.Description("rcon2170"))
	assert.Equal(t, []string{"FFIEC 031"}, d.Forms("Rcon2170"))
	assert.Equal(t, []string{"RCON2170"}, d.Codes())
}

func TestDictionary_NewIgnoresLaterDuplicates(t *testing.T) {
	d := New([]VariableDescriptor{
		{Code: "RCON2170", Description: "First"},
		{Code: "RCON2170", Description: "Second"},
	})

	require.Equal(t, 1, d.Len())
	assert.Equal(t, "First", d.Description("RCON2170"))
}

func TestDictionary_CodesSorted(t *testing.T) {
	d := New([]VariableDescriptor{
		{Code: "RIAD4340", Description: "b"},
		{Code: "RCON2170", Description: "a"},
	})

	assert.Equal(t, []string{"RCON2170", "RIAD4340"}, d.Codes())
}

func TestDictionary_Descriptions(t *testing.T) {
	d := New([]VariableDescriptor{
		{Code: "RCON2170", Description: "Total assets"},
		{Code: "RCON0000", Description: ""},
	})

	descs := d.Descriptions()
	assert.Equal(t, map[string]string{"RCON2170": "Total assets"}, descs)
}

func TestDictionary_OnForm(t *testing.T) {
	d := New([]VariableDescriptor{
		{Code: "RCON2170", Description: "Total assets", Forms: []string{"FFIEC 031", "FFIEC 041"}},
		{Code: "RCFN2200", Description: "Deposits in foreign offices", Forms: []string{"FFIEC 002"}},
		{Code: "RIAD4340", Description: "Net income"},
	})
	targets := map[string]bool{"FFIEC 031": true, "FFIEC 041": true, "FFIEC 051": true}

	assert.True(t, d.OnForm("RCON2170", targets))
	assert.False(t, d.OnForm("RCFN2200", targets))
	assert.False(t, d.OnForm("RIAD4340", targets), "no form data reads as off-form")
	assert.False(t, d.OnForm("UNKNOWN", targets))
}

func TestEmpty(t *testing.T) {
	d := Empty()
	assert.Equal(t, 0, d.Len())
	assert.False(t, d.OnForm("RCON2170", map[string]bool{"FFIEC 031": true}))
	assert.Empty(t, d.Descriptions())
}
