package tape

import (
	"bufio"
	"io"

	"tradesim/internal/schema"
	"tradesim/pkg/exception"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
)

type tickRow struct {
	Type string `json:"type"`
	schema.Tick
}

type signalRow struct {
	Type string `json:"type"`
	schema.Signal
}

// Writer encodes payloads as tape rows.
type Writer struct {
	w *bufio.Writer
}

// NewWriter wraps w with tape encoding. Call Flush when done.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Write appends one row.
func (w *Writer) Write(p schema.Payload) error {
	var row any
	switch v := p.(type) {
	case schema.Tick:
		row = tickRow{Type: RowTick, Tick: v}
	case schema.Signal:
		row = signalRow{Type: RowSignal, Signal: v}
	default:
		return errors.Wrapf(exception.ErrUnknownTapeRow, "payload: %T", p)
	}

	b, err := sonic.ConfigStd.Marshal(row)
	if err != nil {
		return errors.Wrap(err, "encode row")
	}
	if _, err := w.w.Write(b); err != nil {
		return errors.Wrap(err, "write row")
	}
	return w.w.WriteByte('\n')
}

// Flush writes any buffered rows.
func (w *Writer) Flush() error {
	return w.w.Flush()
}
