package tape

import (
	"bufio"
	"bytes"
	"io"

	"tradesim/internal/schema"
	"tradesim/pkg/exception"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
)

const (
	RowTick   = "tick"
	RowSignal = "signal"

	maxLineSize = 1 << 20
)

type rowHeader struct {
	Type string `json:"type"`
}

// Reader decodes a JSON-lines tape. Each line is one tick or signal:
//
//	{"type":"tick","symbol":"X","price":"100.5"}
//	{"type":"signal","strategy_id":"mr","symbol":"X","side":"buy","strength":0.5}
//
// Blank lines and lines starting with '#' are skipped.
type Reader struct {
	sc   *bufio.Scanner
	line int
}

// NewReader wraps r with tape decoding.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxLineSize)
	return &Reader{sc: sc}
}

// Line returns the number of the last line read.
func (r *Reader) Line() int {
	return r.line
}

// Next returns the next payload, or io.EOF at the end of the tape.
func (r *Reader) Next() (schema.Payload, error) {
	for r.sc.Scan() {
		r.line++
		raw := bytes.TrimSpace(r.sc.Bytes())
		if len(raw) == 0 || raw[0] == '#' {
			continue
		}
		p, err := decodeRow(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", r.line)
		}
		return p, nil
	}
	if err := r.sc.Err(); err != nil {
		return nil, errors.Wrapf(err, "scan line %d", r.line+1)
	}
	return nil, io.EOF
}

func decodeRow(raw []byte) (schema.Payload, error) {
	var h rowHeader
	if err := sonic.ConfigStd.Unmarshal(raw, &h); err != nil {
		return nil, errors.Wrap(err, "decode row type")
	}

	switch h.Type {
	case RowTick:
		var tick schema.Tick
		if err := sonic.ConfigStd.Unmarshal(raw, &tick); err != nil {
			return nil, errors.Wrap(err, "decode tick")
		}
		if err := tick.Validate(); err != nil {
			return nil, err
		}
		return tick, nil
	case RowSignal:
		var sig schema.Signal
		if err := sonic.ConfigStd.Unmarshal(raw, &sig); err != nil {
			return nil, errors.Wrap(err, "decode signal")
		}
		if err := sig.Validate(); err != nil {
			return nil, err
		}
		return sig, nil
	default:
		return nil, errors.Wrapf(exception.ErrUnknownTapeRow, "type: %q", h.Type)
	}
}

// ReadAll decodes every row of r.
func ReadAll(r io.Reader) ([]schema.Payload, error) {
	reader := NewReader(r)
	var out []schema.Payload
	for {
		p, err := reader.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
}
