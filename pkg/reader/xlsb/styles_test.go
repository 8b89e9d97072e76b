package xlsb

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinDateFmt(t *testing.T) {
	dateIDs := []uint16{14, 15, 22, 27, 36, 45, 47, 50, 58}
	for _, id := range dateIDs {
		assert.True(t, builtinDateFmt(id), "id %d", id)
	}
	plainIDs := []uint16{0, 1, 2, 9, 13, 23, 26, 37, 44, 48, 49, 59, 164}
	for _, id := range plainIDs {
		assert.False(t, builtinDateFmt(id), "id %d", id)
	}
}

func TestIsDateFormatCode(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"yyyy-mm-dd", true},
		{"DD/MM/YYYY", true},
		{"hh:mm:ss", true},
		{"[$-409]d-mmm-yy", true},
		{"0.00", false},
		{"#,##0", false},
		{"General", false},
		{`"year"0.0`, false},          // quoted literal is not a token
		{`0.0\y`, false},              // escaped char is not a token
		{"[Red]0.00", false},          // bracket block is not a token
		{`"when: "yyyy-mm-dd`, true}, // tokens outside the quotes still count
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, isDateFormatCode(tt.code))
		})
	}
}

func TestParseStylesResolvesDateFlags(t *testing.T) {
	// XF 0: general, XF 1: builtin date, XF 2: custom date code (id 164),
	// XF 3: plain number.
	data := buildStylesBin([]uint16{0, 14, 164, 2})

	isDate, err := parseStyles(bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, isDate, 4)
	assert.Equal(t, []bool{false, true, true, false}, isDate)
}

func TestParseStylesEmptyStream(t *testing.T) {
	isDate, err := parseStyles(bytes.NewReader(nil))
	require.NoError(t, err)
	assert.Empty(t, isDate)
}

func TestParseSharedStrings(t *testing.T) {
	data := buildSSTBin([]string{"alpha", "", "héllo 世界"})

	table, err := parseSharedStrings(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "", "héllo 世界"}, table)
}

func TestParseSharedStringsEmptyStream(t *testing.T) {
	table, err := parseSharedStrings(bytes.NewReader(nil))
	require.NoError(t, err)
	assert.Empty(t, table)
}
