package xlsb

import (
	"io"
	"strings"

	"github.com/tabshift/tabshift/pkg/errors"
)

// builtinDateFmt reports whether a built-in number format id renders dates
// or times (ECMA-376 §18.8.30 plus the East Asian date range).
func builtinDateFmt(id uint16) bool {
	switch {
	case id >= 14 && id <= 22:
		return true
	case id >= 27 && id <= 36:
		return true
	case id >= 45 && id <= 47:
		return true
	case id >= 50 && id <= 58:
		return true
	default:
		return false
	}
}

// isDateFormatCode reports whether a custom number format code renders dates
// or times: it contains a y/m/d/h/s token outside quoted literals, color and
// locale blocks, and backslash escapes.
func isDateFormatCode(code string) bool {
	inQuote := false
	inBracket := false
	for i := 0; i < len(code); i++ {
		c := code[i]
		switch {
		case inQuote:
			if c == '"' {
				inQuote = false
			}
		case inBracket:
			if c == ']' {
				inBracket = false
			}
		case c == '"':
			inQuote = true
		case c == '[':
			inBracket = true
		case c == '\\':
			i++
		default:
			switch c {
			case 'y', 'Y', 'd', 'D', 'h', 'H', 's', 'S', 'm', 'M':
				return true
			}
		}
	}
	return false
}

// parseStyles reads xl/styles.bin and resolves, for every cell format (XF)
// in the cellXfs section, whether its number format renders dates. Cell
// records reference these XFs by index.
func parseStyles(r io.Reader) ([]bool, error) {
	rs := newRecordStream(r)

	customFmts := make(map[uint16]string)
	var xfNumFmts []uint16
	inCellXFs := false

	for {
		id, payload, err := rs.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeCorruptData, "failed to read style table")
		}

		switch id {
		case recFmt:
			buf := recordBuf{data: payload}
			fmtID, err := buf.u16()
			if err != nil {
				return nil, err
			}
			code, err := buf.xlString()
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeCorruptData, "failed to decode number format")
			}
			customFmts[fmtID] = code
		case recBeginCellXFs:
			inCellXFs = true
		case recEndCellXFs:
			inCellXFs = false
		case recXF:
			if !inCellXFs {
				continue
			}
			buf := recordBuf{data: payload}
			if _, err := buf.u16(); err != nil { // parent XF index
				return nil, err
			}
			numFmt, err := buf.u16()
			if err != nil {
				return nil, err
			}
			xfNumFmts = append(xfNumFmts, numFmt)
		case recEndStyleSheet:
			// keep scanning; trailing records are harmless
		}
	}

	isDate := make([]bool, len(xfNumFmts))
	for i, fmtID := range xfNumFmts {
		if builtinDateFmt(fmtID) {
			isDate[i] = true
			continue
		}
		if code, ok := customFmts[fmtID]; ok {
			isDate[i] = isDateFormatCode(strings.TrimSpace(code))
		}
	}
	return isDate, nil
}
