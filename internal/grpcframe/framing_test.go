package grpcframe

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// S6 Framing round-trip.
func TestEncodeDecodeRoundTrip(t *testing.T) {
	msg := []byte("protobuf-payload-stand-in")
	framed := Encode(msg)

	require.Len(t, framed, len(msg)+5)
	require.Equal(t, byte(0), framed[0])

	decoded, consumed, err := Decode(framed)
	require.NoError(t, err)
	require.Equal(t, msg, decoded)
	require.Equal(t, len(framed), consumed)
}

func TestDecodeRejectsShortFrame(t *testing.T) {
	_, _, err := Decode([]byte{0, 0, 0})
	require.ErrorIs(t, err, ErrFrameTooShort)
}

func TestDecodeRejectsTruncatedPayload(t *testing.T) {
	framed := Encode([]byte("hello world"))
	_, _, err := Decode(framed[:len(framed)-3])
	require.ErrorIs(t, err, ErrIncompleteFrame)
}

func TestDecodeHandlesMultipleFramesInBuffer(t *testing.T) {
	a := Encode([]byte("first"))
	b := Encode([]byte("second-message"))
	buf := append(append([]byte{}, a...), b...)

	msg1, n1, err := Decode(buf)
	require.NoError(t, err)
	require.Equal(t, []byte("first"), msg1)

	msg2, n2, err := Decode(buf[n1:])
	require.NoError(t, err)
	require.Equal(t, []byte("second-message"), msg2)
	require.Equal(t, len(buf), n1+n2)
}

// §8 invariant 8.
func TestDecodeStatusMissingGrpcStatus(t *testing.T) {
	s := DecodeStatus([]byte("grpc-message: oops\r\n"))
	require.Equal(t, 0, s.Code)
	require.Equal(t, "received grpc trailers without a grpc-status", s.Message)
}

func TestDecodeStatusUnparseableCoercesToMinusOne(t *testing.T) {
	s := DecodeStatus([]byte("grpc-status: not-a-number\r\n"))
	require.Equal(t, -1, s.Code)
}

func TestDecodeStatusSuccess(t *testing.T) {
	s := DecodeStatus([]byte("grpc-status: 0\r\n"))
	require.NoError(t, StatusToError(s))
}

func TestDecodeStatusErrorRoundTrip(t *testing.T) {
	original := Status{Code: 5, Message: "not found"}
	frame := EncodeStatus(original)
	decoded := DecodeStatus(frame)
	require.Equal(t, original, decoded)

	err := StatusToError(decoded)
	var grpcErr *GrpcError
	require.ErrorAs(t, err, &grpcErr)
	require.Equal(t, 5, grpcErr.Code)
	require.Equal(t, "not found", grpcErr.Message)
}
