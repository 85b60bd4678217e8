package output

import (
	"bufio"
	"encoding/json"

	"github.com/jmylchreest/screenharvest/internal/record"
)

// JSONLAppender writes newline-delimited JSON (JSONL), one object per row.
type JSONLAppender struct{}

// NewJSONLAppender creates a JSONL appender.
func NewJSONLAppender() *JSONLAppender {
	return &JSONLAppender{}
}

// AppendRows appends one JSON line per row.
func (a *JSONLAppender) AppendRows(rows []record.Row, dest string) (err error) {
	f, _, err := openAppend(dest)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	w := bufio.NewWriter(f)
	for _, r := range rows {
		output, err := json.Marshal(r)
		if err != nil {
			return err
		}
		if _, err := w.Write(output); err != nil {
			return err
		}
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return w.Flush()
}

// Close is a no-op.
func (a *JSONLAppender) Close() error { return nil }
