package xlsb

// All binary fixtures are built in memory so no external .xlsb file is
// required.

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeID(buf *bytes.Buffer, id uint16) {
	if id < 0x80 {
		buf.WriteByte(byte(id))
		return
	}
	buf.WriteByte(byte(id&0x7F) | 0x80)
	buf.WriteByte(byte(id >> 7))
}

func writeLen(buf *bytes.Buffer, n int) {
	for {
		b := n & 0x7F
		n >>= 7
		if n > 0 {
			buf.WriteByte(byte(b) | 0x80)
		} else {
			buf.WriteByte(byte(b))
			return
		}
	}
}

func writeRec(buf *bytes.Buffer, id uint16, payload []byte) {
	writeID(buf, id)
	writeLen(buf, len(payload))
	buf.Write(payload)
}

// encStr encodes an XLWideString: uint32 char count + UTF-16LE body.
func encStr(s string) []byte {
	runes := []rune(s)
	var sb bytes.Buffer
	_ = binary.Write(&sb, binary.LittleEndian, uint32(len(runes)))
	for _, r := range runes {
		_ = binary.Write(&sb, binary.LittleEndian, uint16(r))
	}
	return sb.Bytes()
}

func le32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func le16(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}

func le64f(v float64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, math.Float64bits(v))
	return b
}

// cellPrefix is the col + style header every cell record starts with.
func cellPrefix(col, style uint32) []byte {
	return append(le32(col), le32(style)...)
}

// buildWorkbookBin builds xl/workbook.bin with the given sheet entries.
func buildWorkbookBin(sheets []string, date1904 bool) []byte {
	var wb bytes.Buffer
	writeRec(&wb, recBeginBook, nil)

	var flags uint32
	if date1904 {
		flags = 0x8
	}
	writeRec(&wb, recWbProp, append(le32(flags), le32(0)...))

	writeRec(&wb, recBeginBundleShs, nil)
	for i, name := range sheets {
		var rec bytes.Buffer
		rec.Write(le32(0))                          // visibility state
		rec.Write(le32(uint32(i + 1)))              // sheetId
		rec.Write(encStr("rId" + strconv.Itoa(i+1))) // relId
		rec.Write(encStr(name))
		writeRec(&wb, recBundleSh, rec.Bytes())
	}
	writeRec(&wb, recEndBundleShs, nil)
	writeRec(&wb, recEndBook, nil)
	return wb.Bytes()
}

// buildSSTBin builds xl/sharedStrings.bin holding the given strings.
func buildSSTBin(strs []string) []byte {
	var sst bytes.Buffer
	count := append(le32(uint32(len(strs))), le32(uint32(len(strs)))...)
	writeRec(&sst, recBeginSst, count)
	for _, s := range strs {
		payload := append([]byte{0x00}, encStr(s)...) // flag byte + string
		writeRec(&sst, recSSTItem, payload)
	}
	writeRec(&sst, recEndSst, nil)
	return sst.Bytes()
}

// buildStylesBin builds xl/styles.bin with one cellXfs XF per number format
// id, in order, plus one custom format "yyyy-mm-dd" under id 164.
func buildStylesBin(numFmtIDs []uint16) []byte {
	var st bytes.Buffer
	writeRec(&st, recBeginStyleSheet, nil)

	fmtPayload := append(le16(164), encStr("yyyy-mm-dd")...)
	writeRec(&st, recFmt, fmtPayload)

	writeRec(&st, recBeginCellXFs, le32(uint32(len(numFmtIDs))))
	for _, id := range numFmtIDs {
		var xf bytes.Buffer
		xf.Write(le16(0xFFFF)) // parent XF
		xf.Write(le16(id))
		xf.Write(make([]byte, 12)) // font, fill, border, alignment
		writeRec(&st, recXF, xf.Bytes())
	}
	writeRec(&st, recEndCellXFs, nil)
	writeRec(&st, recEndStyleSheet, nil)
	return st.Bytes()
}

// writeZip assembles the parts into an .xlsb file on disk.
func writeZip(t *testing.T, parts map[string][]byte) string {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range parts {
		f, err := zw.Create(name)
		require.NoError(t, err)
		_, err = f.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	path := filepath.Join(t.TempDir(), "fixture.xlsb")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

const fixtureRels = `<?xml version="1.0" encoding="UTF-8"?>` +
	`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="worksheet" Target="worksheets/sheet1.bin"/>` +
	`</Relationships>`

// buildFixture writes a single-sheet workbook whose sheet data is provided by
// the caller.
func buildFixture(t *testing.T, sheetData []byte, shared []string, numFmtIDs []uint16) string {
	t.Helper()

	var ws bytes.Buffer
	writeRec(&ws, recBeginSheet, nil)
	writeRec(&ws, recBeginSheetData, nil)
	ws.Write(sheetData)
	writeRec(&ws, recEndSheetData, nil)
	writeRec(&ws, recEndSheet, nil)

	parts := map[string][]byte{
		"xl/workbook.bin":            buildWorkbookBin([]string{"Data"}, false),
		"xl/_rels/workbook.bin.rels": []byte(fixtureRels),
		"xl/worksheets/sheet1.bin":   ws.Bytes(),
	}
	if shared != nil {
		parts["xl/sharedStrings.bin"] = buildSSTBin(shared)
	}
	if numFmtIDs != nil {
		parts["xl/styles.bin"] = buildStylesBin(numFmtIDs)
	}
	return writeZip(t, parts)
}
