// Package xlsb reads .xlsb workbooks natively. An .xlsb file is a ZIP
// container of BIFF12 binary part streams: a workbook directory part, one
// part per worksheet, a shared string table, and a style table. Records are
// framed as a 7-bit varint record id (at most two bytes, bit 7 of the first
// byte signalling continuation) followed by a 7-bit varint payload length
// (at most four bytes); all multi-byte payload values are little-endian and
// strings are UTF-16LE with a 32-bit character count.
package xlsb

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
	"unicode/utf16"

	"github.com/tabshift/tabshift/pkg/errors"
)

// BIFF12 record ids used by the reader.
const (
	recRowHdr     = 0x0000
	recCellBlank  = 0x0001
	recCellRk     = 0x0002
	recCellError  = 0x0003
	recCellBool   = 0x0004
	recCellReal   = 0x0005
	recCellSt     = 0x0006
	recCellIsst   = 0x0007
	recFmlaString = 0x0008
	recFmlaNum    = 0x0009
	recFmlaBool   = 0x000A
	recFmlaError  = 0x000B

	recSSTItem = 0x0013
	recFmt     = 0x002C
	recXF      = 0x002F

	recBeginSheet     = 0x0081
	recEndSheet       = 0x0082
	recBeginBook      = 0x0083
	recEndBook        = 0x0084
	recBeginBundleShs = 0x008F
	recEndBundleShs   = 0x0090
	recBeginSheetData = 0x0091
	recEndSheetData   = 0x0092
	recWsDim          = 0x0094
	recWbProp         = 0x0099
	recBundleSh       = 0x009C
	recBeginSst       = 0x009F
	recEndSst         = 0x00A0

	recBeginStyleSheet = 0x0116
	recEndStyleSheet   = 0x0117
	recBeginCellXFs    = 0x0269
	recEndCellXFs      = 0x026A
)

// recordStream iterates the BIFF12 records of one part.
type recordStream struct {
	br  *bufio.Reader
	buf []byte
}

func newRecordStream(r io.Reader) *recordStream {
	return &recordStream{br: bufio.NewReaderSize(r, 64*1024)}
}

// Next returns the next record's id and payload. The payload slice is only
// valid until the following call. Returns io.EOF cleanly between records.
func (s *recordStream) Next() (uint16, []byte, error) {
	id, err := s.readID()
	if err != nil {
		return 0, nil, err
	}
	length, err := s.readLen()
	if err != nil {
		return 0, nil, corruptEOF(err)
	}
	if cap(s.buf) < length {
		s.buf = make([]byte, length)
	}
	payload := s.buf[:length]
	if _, err := io.ReadFull(s.br, payload); err != nil {
		return 0, nil, corruptEOF(err)
	}
	return id, payload, nil
}

func (s *recordStream) readID() (uint16, error) {
	b0, err := s.br.ReadByte()
	if err != nil {
		return 0, err
	}
	if b0&0x80 == 0 {
		return uint16(b0), nil
	}
	b1, err := s.br.ReadByte()
	if err != nil {
		return 0, corruptEOF(err)
	}
	return uint16(b0&0x7F) | uint16(b1)<<7, nil
}

func (s *recordStream) readLen() (int, error) {
	n, shift := 0, 0
	for i := 0; i < 4; i++ {
		b, err := s.br.ReadByte()
		if err != nil {
			return 0, err
		}
		n |= int(b&0x7F) << shift
		if b&0x80 == 0 {
			return n, nil
		}
		shift += 7
	}
	return 0, errors.New(errors.ErrorTypeCorruptData, "record length varint longer than 4 bytes")
}

// corruptEOF upgrades an EOF inside a record to an unexpected-EOF error so
// truncated parts are reported as corruption, not clean end of stream.
func corruptEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

// recordBuf is a cursor over one record payload.
type recordBuf struct {
	data []byte
	off  int
}

var errShortRecord = errors.New(errors.ErrorTypeCorruptData, "record payload truncated")

func (b *recordBuf) remaining() int { return len(b.data) - b.off }

func (b *recordBuf) u8() (byte, error) {
	if b.remaining() < 1 {
		return 0, errShortRecord
	}
	v := b.data[b.off]
	b.off++
	return v, nil
}

func (b *recordBuf) u16() (uint16, error) {
	if b.remaining() < 2 {
		return 0, errShortRecord
	}
	v := binary.LittleEndian.Uint16(b.data[b.off:])
	b.off += 2
	return v, nil
}

func (b *recordBuf) u32() (uint32, error) {
	if b.remaining() < 4 {
		return 0, errShortRecord
	}
	v := binary.LittleEndian.Uint32(b.data[b.off:])
	b.off += 4
	return v, nil
}

func (b *recordBuf) f64() (float64, error) {
	if b.remaining() < 8 {
		return 0, errShortRecord
	}
	v := math.Float64frombits(binary.LittleEndian.Uint64(b.data[b.off:]))
	b.off += 8
	return v, nil
}

// xlString reads an XLWideString: uint32 character count + UTF-16LE body.
func (b *recordBuf) xlString() (string, error) {
	n, err := b.u32()
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	// Compare without multiplying n, which a corrupt count can overflow.
	if n > uint32(b.remaining()/2) {
		return "", errShortRecord
	}
	units := make([]uint16, n)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(b.data[b.off+2*i:])
	}
	b.off += int(n) * 2
	return string(utf16.Decode(units)), nil
}

// xlNullableString reads an XLNullableWideString, where a character count of
// 0xFFFFFFFF encodes the absent string.
func (b *recordBuf) xlNullableString() (string, error) {
	if b.remaining() >= 4 && binary.LittleEndian.Uint32(b.data[b.off:]) == 0xFFFFFFFF {
		b.off += 4
		return "", nil
	}
	return b.xlString()
}

// decodeRK unpacks an RK value: bit 0 requests division by 100, bit 1
// selects the integer path (remaining 30 bits are a signed integer) over the
// float path (remaining 30 bits are the high bits of an IEEE 754 double).
func decodeRK(raw uint32) (isInt bool, i int64, f float64) {
	x100 := raw&0x1 != 0
	if raw&0x2 != 0 {
		v := int64(int32(raw) >> 2)
		if x100 {
			if v%100 == 0 {
				return true, v / 100, 0
			}
			return false, 0, float64(v) / 100
		}
		return true, v, 0
	}
	d := math.Float64frombits(uint64(raw&0xFFFFFFFC) << 32)
	if x100 {
		d /= 100
	}
	return false, 0, d
}
