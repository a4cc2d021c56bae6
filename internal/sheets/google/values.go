package google

import (
	"fmt"
	"strings"
	"time"

	gsheet "google.golang.org/api/sheets/v4"

	"cheques/internal/core"
	"cheques/internal/sheets"
)

// snapshot is a parsed sheet. sheetRows[i] is the 1-based sheet row of
// rows[i].
type snapshot struct {
	headers   []string
	rows      []core.Check
	sheetRows []int
}

func parseValues(values [][]any, loc *time.Location) snapshot {
	if len(values) == 0 {
		return snapshot{}
	}
	snap := snapshot{headers: toStrings(values[0])}
	for i, raw := range values[1:] {
		m := make(map[string]any, len(snap.headers))
		for j, h := range snap.headers {
			if h == "" || j >= len(raw) {
				continue
			}
			m[h] = raw[j]
		}
		c, ok := sheets.DecodeRow(m, loc)
		if !ok {
			continue
		}
		c.ID = len(snap.rows)
		snap.rows = append(snap.rows, c)
		snap.sheetRows = append(snap.sheetRows, i+2)
	}
	return snap
}

func (s snapshot) sheetRow(action sheets.Action, id int) (int, error) {
	if id < 0 || id >= len(s.sheetRows) {
		return 0, &sheets.ApplicationError{Action: action, Message: fmt.Sprintf("Cheque %d no encontrado", id)}
	}
	return s.sheetRows[id], nil
}

// rowValues lays fields out in header order.
func (s snapshot) rowValues(fields map[core.Field]string) []any {
	out := make([]any, len(s.headers))
	for i, h := range s.headers {
		out[i] = fields[core.Field(h)]
	}
	return out
}

func (s snapshot) cellUpdates(sheetName string, row int, fields map[core.Field]string) ([]*gsheet.ValueRange, error) {
	data := make([]*gsheet.ValueRange, 0, len(fields))
	for _, f := range core.Fields {
		v, ok := fields[f]
		if !ok {
			continue
		}
		col := indexOf(s.headers, string(f))
		if col < 0 {
			return nil, fmt.Errorf("column %q not found", f)
		}
		data = append(data, &gsheet.ValueRange{
			Range:  fmt.Sprintf("%s!%s%d", sheetName, columnName(col), row),
			Values: [][]any{{v}},
		})
	}
	return data, nil
}

// columnName converts a 0-based index to A1 notation: 0 -> A, 26 -> AA.
func columnName(i int) string {
	name := ""
	for i >= 0 {
		name = string(rune('A'+i%26)) + name
		i = i/26 - 1
	}
	return name
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
			return i
		}
	}
	return -1
}
