package xlsb

import (
	"io"

	"github.com/tabshift/tabshift/pkg/errors"
)

// parseSharedStrings reads xl/sharedStrings.bin into an indexable table.
// Shared-string items are rich strings: a flags byte, the text, then
// optional formatting runs and phonetic data, which the reader skips.
func parseSharedStrings(r io.Reader) ([]string, error) {
	rs := newRecordStream(r)
	var table []string

	for {
		id, payload, err := rs.Next()
		if err == io.EOF {
			return table, nil
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeCorruptData, "failed to read shared string table")
		}

		switch id {
		case recBeginSst:
			buf := recordBuf{data: payload}
			if _, err := buf.u32(); err != nil { // total count
				return nil, err
			}
			if unique, err := buf.u32(); err == nil && unique > 0 && unique < 1<<24 {
				table = make([]string, 0, unique)
			}
		case recSSTItem:
			buf := recordBuf{data: payload}
			if _, err := buf.u8(); err != nil { // rich-string flags
				return nil, err
			}
			s, err := buf.xlString()
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeCorruptData, "failed to decode shared string")
			}
			table = append(table, s)
		case recEndSst:
			return table, nil
		}
	}
}
