// Package grpcframe implements the length-prefixed gRPC message framing
// used over both the WebRTC data channel and (conceptually) HTTP/2 streams
// (§4.7), plus the in-band status frame that emulates an HTTP/2 trailer on
// the data-channel transport.
package grpcframe

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
)

// headerLen is the fixed 1-byte compression flag + 4-byte big-endian length
// prefix every message carries.
const headerLen = 5

var (
	// ErrFrameTooShort is returned by Decode when fewer than headerLen
	// bytes are available to even read the length prefix (§4.7: "a
	// message smaller than 5 bytes is invalid").
	ErrFrameTooShort = errors.New("grpcframe: frame shorter than 5-byte header")
	// ErrIncompleteFrame is returned when the header declares more payload
	// bytes than are actually present.
	ErrIncompleteFrame = errors.New("grpcframe: declared length exceeds available bytes")
)

// Encode wraps msg in the 1-byte compression-flag + 4-byte big-endian
// length header. The compression flag is always 0 (uncompressed); this core
// never negotiates gRPC compression.
func Encode(msg []byte) []byte {
	out := make([]byte, headerLen+len(msg))
	out[0] = 0
	binary.BigEndian.PutUint32(out[1:5], uint32(len(msg)))
	copy(out[5:], msg)
	return out
}

// Decode reads one framed message from the front of b, returning the
// message payload and the number of bytes consumed. It is the left inverse
// of Encode: Decode(Encode(m)) == (m, len(Encode(m)), nil) for all m
// (§8 invariant 6).
func Decode(b []byte) (msg []byte, consumed int, err error) {
	if len(b) < headerLen {
		return nil, 0, ErrFrameTooShort
	}
	length := binary.BigEndian.Uint32(b[1:5])
	total := headerLen + int(length)
	if len(b) < total {
		return nil, 0, ErrIncompleteFrame
	}
	payload := make([]byte, length)
	copy(payload, b[headerLen:total])
	return payload, total, nil
}

// CompressionFlag reads the first byte of a frame without fully decoding
// it; always 0 for frames this core produces.
func CompressionFlag(b []byte) (byte, error) {
	if len(b) < 1 {
		return 0, ErrFrameTooShort
	}
	return b[0], nil
}

// Status is the in-band emulation of an HTTP/2 gRPC trailer: a zero code is
// success, any non-zero code is a GrpcError (§4.7, §7).
type Status struct {
	Code    int
	Message string
}

// GrpcError wraps a non-zero gRPC status as a Go error.
type GrpcError struct {
	Code    int
	Message string
}

func (e *GrpcError) Error() string {
	return fmt.Sprintf("grpc-status %d: %s", e.Code, e.Message)
}

// EncodeStatus renders a Status as the header-like text frame
// ("grpc-status: N\r\ngrpc-message: msg\r\n") the data-channel transport
// emits after the last response message, emulating an HTTP/2 trailer.
func EncodeStatus(s Status) []byte {
	msg := fmt.Sprintf("grpc-status: %d\r\n", s.Code)
	if s.Message != "" {
		msg += fmt.Sprintf("grpc-message: %s\r\n", s.Message)
	}
	return []byte(msg)
}

// DecodeStatus parses a trailer frame. A missing grpc-status field yields
// code 0 with the fixed message below (§8 invariant 8); an unparseable
// status value coerces to code -1 (§4.7).
func DecodeStatus(b []byte) Status {
	fields := parseTrailerFields(b)
	raw, hasStatus := fields["grpc-status"]
	if !hasStatus {
		return Status{Code: 0, Message: "received grpc trailers without a grpc-status"}
	}
	code, err := strconv.Atoi(raw)
	if err != nil {
		return Status{Code: -1, Message: fields["grpc-message"]}
	}
	return Status{Code: code, Message: fields["grpc-message"]}
}

// StatusToError converts a Status into an error, nil for a zero code.
func StatusToError(s Status) error {
	if s.Code == 0 {
		return nil
	}
	return &GrpcError{Code: s.Code, Message: s.Message}
}

func parseTrailerFields(b []byte) map[string]string {
	out := make(map[string]string)
	line := []byte{}
	flush := func() {
		if len(line) == 0 {
			return
		}
		idx := indexByte(line, ':')
		if idx < 0 {
			line = nil
			return
		}
		key := trimSpace(string(line[:idx]))
		val := trimSpace(string(line[idx+1:]))
		out[key] = val
		line = nil
	}
	for _, c := range b {
		if c == '\n' {
			flush()
			continue
		}
		if c == '\r' {
			continue
		}
		line = append(line, c)
	}
	flush()
	return out
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

func trimSpace(s string) string {
	start := 0
	for start < len(s) && (s[start] == ' ' || s[start] == '\t') {
		start++
	}
	end := len(s)
	for end > start && (s[end-1] == ' ' || s[end-1] == '\t') {
		end--
	}
	return s[start:end]
}
