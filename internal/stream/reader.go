// Package stream decodes the upstream's newline-framed event protocol into
// a closed set of event variants. Network delivery does not align with frame
// boundaries, so the reader carries partial lines across reads.
package stream

import (
	"bufio"
	"io"
	"strings"
)

const (
	// dataPrefix is the fixed framing marker stripped from every payload.
	dataPrefix = "data: "
	// doneMarker is the upstream's literal end-of-stream payload.
	doneMarker = "[DONE]"
)

// Reader decodes frames from a raw upstream byte stream.
type Reader struct {
	buf *bufio.Reader
}

// NewReader wraps a byte stream in a frame decoder. Bytes are buffered
// between reads, so a frame split across two deliveries is reassembled
// before it is classified. Only a trailing newline completes a frame: an
// unterminated fragment at end-of-data is discarded, never classified, since
// there is no way to tell a whole frame from a truncated one.
func NewReader(r io.Reader) *Reader {
	return &Reader{buf: bufio.NewReaderSize(r, 256*1024)}
}

// Next returns the next decoded event. Returns io.EOF when the underlying
// stream is exhausted. Malformed and blank frames are returned as their own
// variants rather than skipped, so the translator's suppression rules stay
// in one place.
func (r *Reader) Next() (Event, error) {
	line, err := r.buf.ReadString('\n')
	if err != nil {
		// Any bytes returned alongside the error lack the terminating
		// newline and are dropped as a partial frame.
		if err == io.EOF {
			return Event{}, io.EOF
		}
		return Event{}, err
	}
	line = strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
	if strings.TrimSpace(line) == "" {
		return Event{Kind: KindBlank}, nil
	}
	if !strings.HasPrefix(line, dataPrefix) {
		return Event{Kind: KindMalformed}, nil
	}
	return classify(strings.TrimSpace(line[len(dataPrefix):])), nil
}
