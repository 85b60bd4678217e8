package output

import (
	"bufio"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/screenharvest/internal/record"
)

// YAMLAppender writes each non-empty batch as its own YAML document.
type YAMLAppender struct{}

// NewYAMLAppender creates a YAML appender.
func NewYAMLAppender() *YAMLAppender {
	return &YAMLAppender{}
}

// AppendRows appends rows as a YAML sequence document.
func (a *YAMLAppender) AppendRows(rows []record.Row, dest string) (err error) {
	f, _, err := openAppend(dest)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if len(rows) == 0 {
		return nil
	}

	w := bufio.NewWriter(f)
	if _, err := w.WriteString("---\n"); err != nil {
		return err
	}
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(rows); err != nil {
		return err
	}
	if err := encoder.Close(); err != nil {
		return err
	}
	return w.Flush()
}

// Close is a no-op.
func (a *YAMLAppender) Close() error { return nil }
