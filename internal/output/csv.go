package output

import (
	"bufio"
	"encoding/csv"

	"github.com/jmylchreest/screenharvest/internal/record"
)

// CSVAppender writes comma-separated rows in record.Columns order.
type CSVAppender struct{}

// NewCSVAppender creates a CSV appender.
func NewCSVAppender() *CSVAppender {
	return &CSVAppender{}
}

// AppendRows appends rows, writing the header first when dest is new.
func (a *CSVAppender) AppendRows(rows []record.Row, dest string) (err error) {
	f, created, err := openAppend(dest)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	bw := bufio.NewWriter(f)
	w := csv.NewWriter(bw)
	if created {
		if err := w.Write(record.Columns); err != nil {
			return err
		}
	}
	for _, r := range rows {
		if err := w.Write(r.Values()); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return bw.Flush()
}

// Close is a no-op; every append opens and closes the file.
func (a *CSVAppender) Close() error { return nil }
