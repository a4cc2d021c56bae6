package export

import (
	"io"
	"strconv"
	"strings"
	"time"

	"cheques/internal/core"
)

const bom = "\ufeff"

// CSV renders the report. Only the observation column is quoted; rows are
// joined by "\n" with no trailing newline.
func CSV(records []core.Check, now time.Time) ([]byte, error) {
	if len(records) == 0 {
		return nil, ErrNoData
	}
	rows := make([]string, 0, len(records)+1)
	rows = append(rows, strings.Join(Headers, ","))
	for _, l := range Lines(records, now) {
		rows = append(rows, strings.Join([]string{
			core.FormatDay(l.Date),
			strconv.Itoa(l.DaysToDue),
			l.Bank,
			l.Number,
			`"` + strings.ReplaceAll(l.Observation, `"`, `""`) + `"`,
			l.Amount.StringFixed(2),
			l.Paid.StringFixed(2),
			l.Balance.StringFixed(2),
			paymentDay(l),
			string(l.Condition),
		}, ","))
	}
	return []byte(bom + strings.Join(rows, "\n")), nil
}

// WriteCSV writes the report to w.
func WriteCSV(w io.Writer, records []core.Check, now time.Time) error {
	b, err := CSV(records, now)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}
