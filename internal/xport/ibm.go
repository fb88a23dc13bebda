package xport

import (
	"encoding/binary"
	"math"
)

// ibmToFloat converts a truncated IBM System/360 floating point number,
// as stored in transport files, to an IEEE 754 double. The second return
// value reports a SAS missing value: a first byte of '.', '_' or 'A'-'Z'
// with an all-zero fraction.
//
// IBM layout: 1 sign bit, 7-bit base-16 exponent in excess-64, then up
// to 56 fraction bits with no implicit leading bit. Values shorter than
// 8 bytes are zero-padded on the right.
func ibmToFloat(b []byte) (float64, bool) {
	var buf [8]byte
	copy(buf[:], b)

	frac := binary.BigEndian.Uint64(buf[:]) & 0x00FFFFFFFFFFFFFF
	if frac == 0 {
		c := buf[0]
		if c == '.' || c == '_' || (c >= 'A' && c <= 'Z') {
			return 0, true
		}
		return 0, false
	}

	sign := 1.0
	if buf[0]&0x80 != 0 {
		sign = -1.0
	}
	exp := int(buf[0] & 0x7F)

	// value = sign * frac * 16^(exp-64) / 2^56
	return sign * math.Ldexp(float64(frac), 4*(exp-64)-56), false
}
