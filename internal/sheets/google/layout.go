package google

import (
	"fmt"
	"strconv"
	"strings"
)

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}

// columnName converts a 1-based column index to its A1 letters (1 -> A, 27 -> AA).
func columnName(n int) string {
	var out []byte
	for n > 0 {
		n--
		out = append([]byte{byte('A' + n%26)}, out...)
		n /= 26
	}
	return string(out)
}

// reportRange is the A1 range exactly covering rows on sheet.
func reportRange(sheet string, rows [][]any) string {
	width := 1
	for _, r := range rows {
		width = max(width, len(r))
	}
	height := max(len(rows), 1)
	return fmt.Sprintf("'%s'!A1:%s%d", sheet, columnName(width), height)
}
