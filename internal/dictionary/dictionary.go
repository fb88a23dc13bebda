// Package dictionary loads the MDRM reference dictionary: the mapping
// from variable codes such as RCON2170 to their descriptions and the
// reporting forms they appear on. The pipeline uses it to attach
// per-column descriptions to parquet output and to decide which columns
// belong on a filing form.
package dictionary

import (
	"sort"
	"strings"
)

// VariableDescriptor describes one MDRM variable code.
type VariableDescriptor struct {
	Code        string
	Description string
	// Forms lists the reporting forms the variable appears on, with
	// canonical trimmed names such as "FFIEC 031".
	Forms []string
}

// Dictionary is an immutable code to descriptor lookup.
type Dictionary struct {
	descriptors map[string]VariableDescriptor
	codes       []string
}

// New builds a dictionary from descriptors. Codes are keyed uppercase
// so lookups are case-insensitive, and later duplicates of a code are
// ignored.
func New(descriptors []VariableDescriptor) *Dictionary {
	d := &Dictionary{descriptors: make(map[string]VariableDescriptor, len(descriptors))}
	for _, desc := range descriptors {
		desc.Code = strings.ToUpper(desc.Code)
		if _, ok := d.descriptors[desc.Code]; ok {
			continue
		}
		d.descriptors[desc.Code] = desc
		d.codes = append(d.codes, desc.Code)
	}
	sort.Strings(d.codes)
	return d
}

// Empty returns a dictionary with no entries. Lookups miss and form
// checks report off-form, so processing degrades to has-data retention.
func Empty() *Dictionary {
	return New(nil)
}

// Len returns the number of descriptors.
func (d *Dictionary) Len() int { return len(d.codes) }

// Codes returns all codes in sorted order.
func (d *Dictionary) Codes() []string {
	out := make([]string, len(d.codes))
	copy(out, d.codes)
	return out
}

// Lookup returns the descriptor for a code, matching case-insensitively.
func (d *Dictionary) Lookup(code string) (VariableDescriptor, bool) {
	desc, ok := d.descriptors[strings.ToUpper(code)]
	return desc, ok
}

// Description returns the description for a code, or the empty string.
func (d *Dictionary) Description(code string) string {
	return d.descriptors[strings.ToUpper(code)].Description
}

// Forms returns the reporting forms recorded for a code, nil when none.
func (d *Dictionary) Forms(code string) []string {
	return d.descriptors[strings.ToUpper(code)].Forms
}

// Descriptions returns a code to description map for writer metadata.
func (d *Dictionary) Descriptions() map[string]string {
	out := make(map[string]string, len(d.codes))
	for code, desc := range d.descriptors {
		if desc.Description != "" {
			out[code] = desc.Description
		}
	}
	return out
}

// OnForm reports whether the code appears on any of the target forms.
// Unknown codes and codes without form data are off-form.
func (d *Dictionary) OnForm(code string, targets map[string]bool) bool {
	desc, ok := d.descriptors[strings.ToUpper(code)]
	if !ok {
		return false
	}
	for _, form := range desc.Forms {
		if targets[form] {
			return true
		}
	}
	return false
}
