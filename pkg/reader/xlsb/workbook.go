package xlsb

import (
	"archive/zip"
	"encoding/xml"
	"io"
	"strings"

	"github.com/tabshift/tabshift/pkg/errors"
	stringpool "github.com/tabshift/tabshift/pkg/strings"
)

const (
	workbookPart      = "xl/workbook.bin"
	workbookRelsPart  = "xl/_rels/workbook.bin.rels"
	sharedStringsPart = "xl/sharedStrings.bin"
	stylesPart        = "xl/styles.bin"
)

// sheetInfo is one entry of the workbook's sheet directory.
type sheetInfo struct {
	name   string
	relID  string
	target string // resolved ZIP part path
}

// Workbook is an open .xlsb container. The shared string table and style
// table are loaded at open time; worksheet parts are streamed on demand.
type Workbook struct {
	zr       *zip.ReadCloser
	parts    map[string]*zip.File
	sheets   []sheetInfo
	shared   []string
	xfIsDate []bool
	date1904 bool
}

// Open opens the workbook at path.
func Open(path string) (*Workbook, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFormat, "not a recognizable spreadsheet container")
	}

	wb := &Workbook{
		zr:    zr,
		parts: make(map[string]*zip.File, len(zr.File)),
	}
	for _, f := range zr.File {
		wb.parts[f.Name] = f
	}

	if err := wb.load(); err != nil {
		zr.Close()
		return nil, err
	}
	return wb, nil
}

func (w *Workbook) load() error {
	if err := w.parseWorkbookPart(); err != nil {
		return err
	}
	if err := w.resolveSheetTargets(); err != nil {
		return err
	}

	if f, ok := w.parts[sharedStringsPart]; ok {
		rc, err := f.Open()
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeIO, "failed to open shared string part")
		}
		defer rc.Close()
		w.shared, err = parseSharedStrings(rc)
		if err != nil {
			return err
		}
	}

	if f, ok := w.parts[stylesPart]; ok {
		rc, err := f.Open()
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeIO, "failed to open style part")
		}
		defer rc.Close()
		w.xfIsDate, err = parseStyles(rc)
		if err != nil {
			return err
		}
	}

	return nil
}

// parseWorkbookPart reads the sheet directory (BrtBundleSh records) and the
// workbook properties (1904 date system flag).
func (w *Workbook) parseWorkbookPart() error {
	f, ok := w.parts[workbookPart]
	if !ok {
		return errors.New(errors.ErrorTypeFormat, "container is missing "+workbookPart)
	}
	rc, err := f.Open()
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to open workbook part")
	}
	defer rc.Close()

	rs := newRecordStream(rc)
	for {
		id, payload, err := rs.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeCorruptData, "failed to read workbook directory")
		}

		switch id {
		case recWbProp:
			buf := recordBuf{data: payload}
			if flags, err := buf.u32(); err == nil {
				w.date1904 = flags&0x8 != 0
			}
		case recBundleSh:
			buf := recordBuf{data: payload}
			if _, err := buf.u32(); err != nil { // hidden-state flags
				return err
			}
			if _, err := buf.u32(); err != nil { // sheet id
				return err
			}
			relID, err := buf.xlNullableString()
			if err != nil {
				return errors.Wrap(err, errors.ErrorTypeCorruptData, "failed to decode sheet entry")
			}
			name, err := buf.xlString()
			if err != nil {
				return errors.Wrap(err, errors.ErrorTypeCorruptData, "failed to decode sheet name")
			}
			w.sheets = append(w.sheets, sheetInfo{name: name, relID: relID})
		case recEndBook:
			return w.checkSheets()
		}
	}
	return w.checkSheets()
}

func (w *Workbook) checkSheets() error {
	if len(w.sheets) == 0 {
		return errors.New(errors.ErrorTypeFormat, "workbook contains no sheets")
	}
	return nil
}

// relationship mirrors one entry of the OPC relationships XML.
type relationship struct {
	ID     string `xml:"Id,attr"`
	Target string `xml:"Target,attr"`
}

type relationships struct {
	Rels []relationship `xml:"Relationship"`
}

// resolveSheetTargets maps each sheet's relationship id to its worksheet
// part path. Workbooks without a rels part fall back to the conventional
// xl/worksheets/sheetN.bin layout.
func (w *Workbook) resolveSheetTargets() error {
	relTargets := make(map[string]string)
	if f, ok := w.parts[workbookRelsPart]; ok {
		rc, err := f.Open()
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeIO, "failed to open workbook relationships")
		}
		var rels relationships
		err = xml.NewDecoder(rc).Decode(&rels)
		rc.Close()
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeCorruptData, "failed to parse workbook relationships")
		}
		for _, r := range rels.Rels {
			relTargets[r.ID] = r.Target
		}
	}

	for i := range w.sheets {
		target := relTargets[w.sheets[i].relID]
		if target == "" {
			target = stringpool.Sprintf("worksheets/sheet%d.bin", i+1)
		}
		w.sheets[i].target = normalizePartPath(target)
	}
	return nil
}

// normalizePartPath resolves a relationship target against the xl/ base.
func normalizePartPath(target string) string {
	target = strings.TrimPrefix(target, "/")
	if !strings.HasPrefix(target, "xl/") {
		target = "xl/" + target
	}
	return target
}

// SheetNames returns the sheet names in workbook order.
func (w *Workbook) SheetNames() []string {
	names := make([]string, len(w.sheets))
	for i, s := range w.sheets {
		names[i] = s.name
	}
	return names
}

// Sheet opens a streaming cursor over the sheet at the given 0-based index.
func (w *Workbook) Sheet(idx int) (*Cursor, error) {
	if idx < 0 || idx >= len(w.sheets) {
		return nil, errors.Newf(errors.ErrorTypeSheetNotFound,
			"sheet index %d out of range, workbook has %d sheet(s)", idx, len(w.sheets))
	}
	info := w.sheets[idx]
	f, ok := w.parts[info.target]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeCorruptData,
			"worksheet part %s missing from container", info.target)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "failed to open worksheet part")
	}
	return newCursor(w, rc), nil
}

// Close releases the container.
func (w *Workbook) Close() error {
	return w.zr.Close()
}
