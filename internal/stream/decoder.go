package stream

import (
	"bytes"
	"encoding/json"
	"strings"
)

// eventPrefix marks the significant lines of the wire protocol. Lines
// without it (event names, comments, keep-alives) carry no payload.
const eventPrefix = "data:"

// eventSeparator delimits logical events in the byte stream.
const eventSeparator = "\n\n"

// FrameKind tags a decoded frame.
type FrameKind int

const (
	// FrameChunk carries a piece of incremental answer text.
	FrameChunk FrameKind = iota
	// FrameDone marks the end of the response. At most one is emitted
	// per stream, regardless of how many completion markers arrive.
	FrameDone
)

// Frame is one decoded unit of the response stream.
type Frame struct {
	Kind FrameKind
	Text string
}

// eventPayload is the JSON carried by a significant line.
type eventPayload struct {
	Chunk      string `json:"chunk"`
	IsComplete bool   `json:"is_complete"`
}

// Decoder incrementally decodes the framed text protocol. Feed it raw
// byte chunks as they arrive; it returns the frames completed by each
// chunk, in arrival order. A chunk boundary may fall anywhere, even
// mid-rune inside an event: unterminated trailing bytes are buffered
// and prefixed to the next read.
//
// The decoder is best-effort by design. Unprefixed lines and payloads
// that fail to parse as JSON are silently discarded.
//
// A Decoder must not be shared across goroutines.
type Decoder struct {
	buf  []byte
	done bool
}

// Feed appends raw bytes and returns the frames they complete. After a
// FrameDone has been emitted, all further input is ignored.
func (d *Decoder) Feed(p []byte) []Frame {
	if d.done {
		return nil
	}

	d.buf = append(d.buf, p...)

	var frames []Frame
	for {
		idx := bytes.Index(d.buf, []byte(eventSeparator))
		if idx < 0 {
			break
		}

		event := d.buf[:idx]
		d.buf = d.buf[idx+len(eventSeparator):]

		frames = append(frames, d.decodeEvent(event)...)
		if d.done {
			d.buf = nil
			break
		}
	}

	return frames
}

// Done reports whether a completion marker has been decoded.
func (d *Decoder) Done() bool {
	return d.done
}

// decodeEvent parses one delimited event into frames.
func (d *Decoder) decodeEvent(event []byte) []Frame {
	var frames []Frame

	for _, line := range strings.Split(string(event), "\n") {
		if !strings.HasPrefix(line, eventPrefix) {
			continue
		}

		payload := strings.TrimSpace(strings.TrimPrefix(line, eventPrefix))

		var msg eventPayload
		if err := json.Unmarshal([]byte(payload), &msg); err != nil {
			// Malformed event: recovered locally, never surfaced.
			continue
		}

		if msg.Chunk != "" {
			frames = append(frames, Frame{Kind: FrameChunk, Text: msg.Chunk})
		}
		if msg.IsComplete {
			frames = append(frames, Frame{Kind: FrameDone})
			d.done = true
			return frames
		}
	}

	return frames
}
