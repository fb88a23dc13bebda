// Package xport reads SAS transport (XPORT version 5) files into tables.
// The format is a sequence of 80-byte records: library and member header
// records, 140-byte NAMESTR variable descriptors, then fixed-width
// observation rows with numerics stored as truncated IBM 360 doubles.
package xport

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mplosser/data-call-report/internal/table"
)

const (
	recordLen   = 80
	namestrSize = 140

	headerPrefix  = "HEADER RECORD*******"
	libraryHeader = "HEADER RECORD*******LIBRARY HEADER RECORD!!!!!!!"
	memberHeader  = "HEADER RECORD*******MEMBER  HEADER RECORD!!!!!!!"
	dscrptrHeader = "HEADER RECORD*******DSCRPTR HEADER RECORD!!!!!!!"
	namestrHeader = "HEADER RECORD*******NAMESTR HEADER RECORD!!!!!!!"
	obsHeader     = "HEADER RECORD*******OBS     HEADER RECORD!!!!!!!"
)

// sasEpoch is day zero of SAS date values.
var sasEpoch = time.Date(1960, 1, 1, 0, 0, 0, 0, time.UTC)

// dateFormats lists SAS display formats whose numeric values are day
// counts from the SAS epoch. Datetime (seconds) formats are left as
// plain numerics.
var dateFormats = map[string]bool{
	"DATE":     true,
	"MMDDYY":   true,
	"DDMMYY":   true,
	"YYMMDD":   true,
	"JULIAN":   true,
	"MONYY":    true,
	"YYQ":      true,
	"WEEKDATE": true,
	"E8601DA":  true,
	"B8601DA":  true,
}

// Reader reads XPORT version 5 streams. Character data is decoded with
// the first encoding in the fallback list that decodes cleanly.
type Reader struct {
	decoders []decoder
}

// NewReader returns a Reader with the default encoding fallback order:
// UTF-8, Latin-1, Windows-1252.
func NewReader() *Reader {
	return &Reader{decoders: defaultDecoders()}
}

// Read parses the first dataset member of an XPORT stream.
func (r *Reader) Read(data []byte) (*table.Table, error) {
	var lastErr error
	for _, dec := range r.decoders {
		tbl, err := parse(data, dec)
		if err == nil {
			return tbl, nil
		}
		if !isDecodeError(err) {
			return nil, err
		}
		lastErr = err
	}

	names := make([]string, len(r.decoders))
	for i, dec := range r.decoders {
		names[i] = dec.name
	}
	return nil, fmt.Errorf("character data decoded by none of %s: %w", strings.Join(names, ", "), lastErr)
}

// ReadFile reads and parses an XPORT file on disk.
func (r *Reader) ReadFile(path string) (*table.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return r.Read(data)
}

func isDecodeError(err error) bool {
	return errors.Is(err, errDecode)
}

// variable is one parsed NAMESTR descriptor.
type variable struct {
	name    string
	numeric bool
	isDate  bool
	length  int
	pos     int
}

type parser struct {
	data []byte
	off  int
	dec  decoder
}

func (p *parser) record() ([]byte, error) {
	if p.off+recordLen > len(p.data) {
		return nil, fmt.Errorf("truncated transport file at offset %d", p.off)
	}
	rec := p.data[p.off : p.off+recordLen]
	p.off += recordLen
	return rec, nil
}

func (p *parser) expectHeader(prefix, what string) ([]byte, error) {
	rec, err := p.record()
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(rec, []byte(prefix)) {
		return nil, fmt.Errorf("missing %s header record at offset %d", what, p.off-recordLen)
	}
	return rec, nil
}

func parse(data []byte, dec decoder) (*table.Table, error) {
	p := &parser{data: data, dec: dec}

	if _, err := p.expectHeader(libraryHeader, "library"); err != nil {
		return nil, fmt.Errorf("not a SAS transport file: %w", err)
	}
	// Two real header records: SAS version/OS, then modification date.
	for i := 0; i < 2; i++ {
		if _, err := p.record(); err != nil {
			return nil, err
		}
	}

	rec, err := p.expectHeader(memberHeader, "member")
	if err != nil {
		return nil, err
	}
	size, err := parseNamestrSize(rec)
	if err != nil {
		return nil, err
	}
	if size != namestrSize {
		return nil, fmt.Errorf("unsupported NAMESTR record size %d", size)
	}

	if _, err := p.expectHeader(dscrptrHeader, "descriptor"); err != nil {
		return nil, err
	}
	// Two member description records: dataset name/version/OS, then date.
	for i := 0; i < 2; i++ {
		if _, err := p.record(); err != nil {
			return nil, err
		}
	}

	rec, err = p.expectHeader(namestrHeader, "namestr")
	if err != nil {
		return nil, err
	}
	nvars, err := strconv.Atoi(strings.TrimSpace(string(rec[48:58])))
	if err != nil || nvars <= 0 {
		return nil, fmt.Errorf("invalid variable count in namestr header: %q", string(rec[48:58]))
	}

	vars, err := p.parseVariables(nvars)
	if err != nil {
		return nil, err
	}

	if _, err := p.expectHeader(obsHeader, "observation"); err != nil {
		return nil, err
	}

	return p.parseObservations(vars)
}

// parseNamestrSize extracts the NAMESTR record size from the trailing
// digits of the member header record.
func parseNamestrSize(rec []byte) (int, error) {
	tail := strings.TrimRight(string(rec[48:]), " ")
	if len(tail) < 8 {
		return 0, fmt.Errorf("malformed member header record")
	}
	size, err := strconv.Atoi(tail[len(tail)-8:])
	if err != nil {
		return 0, fmt.Errorf("malformed member header record: %w", err)
	}
	return size, nil
}

// parseVariables reads nvars NAMESTR descriptors. The descriptor block
// is padded with blanks to a multiple of the record length.
func (p *parser) parseVariables(nvars int) ([]variable, error) {
	blockLen := nvars * namestrSize
	if rem := blockLen % recordLen; rem != 0 {
		blockLen += recordLen - rem
	}
	if p.off+blockLen > len(p.data) {
		return nil, fmt.Errorf("truncated NAMESTR block")
	}
	block := p.data[p.off : p.off+blockLen]
	p.off += blockLen

	vars := make([]variable, 0, nvars)
	for i := 0; i < nvars; i++ {
		ns := block[i*namestrSize : (i+1)*namestrSize]

		ntype := int(be16(ns[0:2]))
		length := int(be16(ns[4:6]))
		pos := int(be32(ns[84:88]))

		name, err := p.decodeField(ns[8:16])
		if err != nil {
			return nil, err
		}
		format, err := p.decodeField(ns[56:64])
		if err != nil {
			return nil, err
		}

		switch ntype {
		case 1:
			if length < 2 || length > 8 {
				return nil, fmt.Errorf("variable %q: invalid numeric length %d", name, length)
			}
		case 2:
			if length < 1 {
				return nil, fmt.Errorf("variable %q: invalid character length %d", name, length)
			}
		default:
			return nil, fmt.Errorf("variable %q: unknown type %d", name, ntype)
		}

		vars = append(vars, variable{
			name:    name,
			numeric: ntype == 1,
			isDate:  ntype == 1 && dateFormats[strings.ToUpper(format)],
			length:  length,
			pos:     pos,
		})
	}
	return vars, nil
}

// parseObservations reads fixed-width rows until the data region ends.
// The region ends at the next header record, at a row of all blanks
// (trailing padding), or at end of file.
func (p *parser) parseObservations(vars []variable) (*table.Table, error) {
	rowLen := 0
	for _, v := range vars {
		if v.pos+v.length > rowLen {
			rowLen = v.pos + v.length
		}
	}
	if rowLen == 0 {
		return nil, fmt.Errorf("zero-length observation record")
	}

	end := len(p.data)
	for off := p.off; off+recordLen <= len(p.data); off += recordLen {
		if bytes.HasPrefix(p.data[off:], []byte(headerPrefix)) {
			end = off
			break
		}
	}

	estimate := (end - p.off) / rowLen
	columns := make([][]table.Value, len(vars))
	for i := range columns {
		columns[i] = make([]table.Value, 0, estimate)
	}

	for p.off+rowLen <= end {
		row := p.data[p.off : p.off+rowLen]
		if isBlank(row) {
			break
		}
		p.off += rowLen

		for i, v := range vars {
			field := row[v.pos : v.pos+v.length]
			value, err := p.parseValue(v, field)
			if err != nil {
				return nil, err
			}
			columns[i] = append(columns[i], value)
		}
	}

	tbl := table.New()
	for i, v := range vars {
		if err := tbl.AddColumn(v.name, columns[i]); err != nil {
			return nil, fmt.Errorf("dataset columns: %w", err)
		}
	}
	return tbl, nil
}

func (p *parser) parseValue(v variable, field []byte) (table.Value, error) {
	if v.numeric {
		f, missing := ibmToFloat(field)
		if missing {
			return table.Missing(), nil
		}
		if v.isDate {
			return table.Date(sasEpoch.AddDate(0, 0, int(f))), nil
		}
		return table.Float(f), nil
	}

	s, err := p.decodeField(field)
	if err != nil {
		return table.Value{}, err
	}
	if s == "" {
		return table.Missing(), nil
	}
	return table.Text(s), nil
}

// decodeField decodes a character field and strips the blank and NUL
// padding SAS writes on the right.
func (p *parser) decodeField(b []byte) (string, error) {
	s, err := p.dec.decode(b)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(s, " \x00"), nil
}

func isBlank(b []byte) bool {
	for _, c := range b {
		if c != ' ' {
			return false
		}
	}
	return true
}

func be16(b []byte) uint16 {
	return uint16(b[0])<<8 | uint16(b[1])
}

func be32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
