package google

import (
	"fmt"
	"strings"

	"spendtracker/internal/core"
)

// parseValues converts a values matrix (as returned by the Sheets API) into
// a table. Trailing blank header cells are dropped, data rows are padded or
// truncated to the header width and fully blank rows are skipped.
func parseValues(values [][]interface{}) core.Table {
	if len(values) == 0 {
		return core.Table{}
	}
	headers := toStrings(values[0])
	for len(headers) > 0 && headers[len(headers)-1] == "" {
		headers = headers[:len(headers)-1]
	}
	if len(headers) == 0 {
		return core.Table{}
	}

	t := core.Table{Headers: headers}
	for _, raw := range values[1:] {
		cells := toStrings(raw)
		if isBlank(cells) {
			continue
		}
		row := make([]string, len(headers))
		copy(row, cells)
		t.Rows = append(t.Rows, row)
	}
	return t
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}
