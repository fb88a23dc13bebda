package xport

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// errDecode marks a character decoding failure. Read retries the next
// encoding in the fallback list only for errors wrapping errDecode;
// structural errors abort immediately.
var errDecode = errors.New("character decoding failed")

// decoder decodes raw character field bytes into a string.
type decoder struct {
	name   string
	decode func([]byte) (string, error)
}

// defaultDecoders is the fallback order for character data. UTF-8 is
// validated strictly; the charmap decodings accept any byte sequence, so
// in practice the list cannot be exhausted unless it is overridden.
func defaultDecoders() []decoder {
	return []decoder{
		{name: "utf-8", decode: decodeUTF8},
		{name: "latin-1", decode: charmapDecoder(charmap.ISO8859_1)},
		{name: "windows-1252", decode: charmapDecoder(charmap.Windows1252)},
	}
}

func decodeUTF8(b []byte) (string, error) {
	if !utf8.Valid(b) {
		return "", fmt.Errorf("%w: invalid UTF-8 sequence", errDecode)
	}
	return string(b), nil
}

func charmapDecoder(cm *charmap.Charmap) func([]byte) (string, error) {
	return func(b []byte) (string, error) {
		out, err := cm.NewDecoder().Bytes(b)
		if err != nil {
			return "", fmt.Errorf("%w: %v", errDecode, err)
		}
		return string(out), nil
	}
}
