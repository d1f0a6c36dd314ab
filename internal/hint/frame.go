package hint

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"pkt.systems/pslog"

	"github.com/jxucoder/codegrounds/internal/logx"
)

// FrameType discriminates streamed hint frames.
type FrameType string

const (
	FrameToken FrameType = "TOKEN"
	FrameDone  FrameType = "DONE"
	FrameError FrameType = "ERROR"
)

// Frame is one `data: ` line of a hint stream.
type Frame struct {
	Type    FrameType `json:"type"`
	Content string    `json:"content,omitempty"`
	Error   string    `json:"error,omitempty"`
}

const dataPrefix = "data: "

// maxFrameSize bounds a single streamed line.
const maxFrameSize = 1 << 20

// ErrNotFrame is returned by ParseFrame for lines without the data prefix.
var ErrNotFrame = errors.New("not a data frame")

// ParseFrame decodes a single stream line. Lines without the `data: ` prefix
// return ErrNotFrame; a prefixed line whose payload is not a JSON object with
// a type returns a decode error.
func ParseFrame(line string) (Frame, error) {
	line = strings.TrimRight(line, "\r")
	if !strings.HasPrefix(line, dataPrefix) {
		return Frame{}, ErrNotFrame
	}
	var f Frame
	if err := json.Unmarshal([]byte(strings.TrimPrefix(line, dataPrefix)), &f); err != nil {
		return Frame{}, fmt.Errorf("decoding frame: %w", err)
	}
	if f.Type == "" {
		return Frame{}, fmt.Errorf("decoding frame: missing type")
	}
	return f, nil
}

// FrameReader yields the frames of a hint stream in arrival order. Lines that
// are not frames and frames that fail to decode are skipped.
type FrameReader struct {
	scanner *bufio.Scanner
	log     pslog.Logger
	skipped int
}

// NewFrameReader reads frames from r. log may be nil.
func NewFrameReader(r io.Reader, log pslog.Logger) *FrameReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameSize)
	return &FrameReader{scanner: scanner, log: logx.OrDiscard(log)}
}

// Next returns the next frame. It returns io.EOF when the stream ends cleanly
// and the underlying read error otherwise.
func (r *FrameReader) Next() (Frame, error) {
	for r.scanner.Scan() {
		f, err := ParseFrame(r.scanner.Text())
		if errors.Is(err, ErrNotFrame) {
			continue
		}
		if err != nil {
			r.skipped++
			r.log.Debug("skipping malformed hint frame", "err", err)
			continue
		}
		return f, nil
	}
	if err := r.scanner.Err(); err != nil {
		return Frame{}, err
	}
	return Frame{}, io.EOF
}

// Skipped returns how many malformed frames were dropped so far.
func (r *FrameReader) Skipped() int { return r.skipped }
