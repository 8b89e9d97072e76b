package schema

import (
	"strconv"
	"strings"

	"github.com/tabshift/tabshift/pkg/models"
	stringpool "github.com/tabshift/tabshift/pkg/strings"
)

// BuildNames derives column names for a sheet of the given width. header may
// be nil (no header row), in which case every column is named Field_<i>.
// Blank header cells fall back to Field_<i>; duplicate names get a _<n>
// suffix, counting occurrences from 1.
func BuildNames(header *models.Row, width int) []string {
	names := make([]string, width)
	taken := make(map[string]bool, width)
	counts := make(map[string]int)

	for i := 0; i < width; i++ {
		name := ""
		if header != nil {
			name = strings.TrimSpace(header.Cell(i).Format())
		}
		if name == "" {
			name = stringpool.Sprintf("Field_%d", i)
		}
		if taken[name] {
			base := name
			// A suffixed name can itself collide with a later header cell,
			// so keep counting until one is free.
			for {
				counts[base]++
				name = stringpool.Concat(base, "_", strconv.Itoa(counts[base]))
				if !taken[name] {
					break
				}
			}
		}
		taken[name] = true
		names[i] = name
	}
	return names
}
