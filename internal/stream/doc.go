// Package stream consumes the incremental ask-a-question endpoint.
//
// The response body is a sequence of UTF-8 text events separated by a
// double line-break. Only "data:"-prefixed lines carry payloads: JSON
// objects with optional chunk and is_complete fields. The Decoder
// handles chunk boundaries falling anywhere in an event and drops
// malformed events without surfacing them; the Client wires the
// decoder to an HTTP POST and a pair of caller callbacks.
package stream
