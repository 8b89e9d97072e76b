package xlsb

import (
	"math"
	"time"

	"github.com/tabshift/tabshift/pkg/errors"
)

// Serial date bases. The 1900 system inherits the Lotus 1-2-3 phantom leap
// day: serials 60 and 61 both mean 1900-03-01, and serials below 60 count
// from 1900-01-01 directly (serial 0 clamps to that day).
var (
	base1899 = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)
	base1900 = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)
	base1904 = time.Date(1904, 1, 1, 0, 0, 0, 0, time.UTC)
)

// convertSerial converts a spreadsheet serial date to UTC time, rounded to
// the nearest second.
func convertSerial(serial float64, date1904 bool) (time.Time, error) {
	if math.IsNaN(serial) || math.IsInf(serial, 0) {
		return time.Time{}, errors.Newf(errors.ErrorTypeCorruptData, "invalid date serial %v", serial)
	}

	days := int(math.Floor(serial))
	frac := serial - math.Floor(serial)

	var t time.Time
	switch {
	case date1904:
		t = base1904.AddDate(0, 0, days)
	case days >= 61:
		t = base1899.AddDate(0, 0, days)
	case days == 60:
		t = time.Date(1900, 3, 1, 0, 0, 0, 0, time.UTC)
	default:
		t = base1900.AddDate(0, 0, max(days, 1)-1)
	}

	secs := math.Round(frac * 86400)
	return t.Add(time.Duration(secs) * time.Second), nil
}
