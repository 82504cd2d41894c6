package udpmux

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// First-byte classification (§8 invariant 7).
func TestClassify(t *testing.T) {
	cases := []struct {
		b    byte
		lane Lane
		ok   bool
	}{
		{0, LaneSTUN, true},
		{3, LaneSTUN, true},
		{4, 0, false},
		{19, 0, false},
		{20, LaneDTLS, true},
		{63, LaneDTLS, true},
		{64, 0, false},
		{127, 0, false},
		{128, LaneSRTP, true},
		{191, LaneSRTP, true},
		{192, 0, false},
		{255, 0, false},
	}
	for _, c := range cases {
		lane, ok := classify(c.b)
		require.Equal(t, c.ok, ok, "byte %d", c.b)
		if ok {
			require.Equal(t, c.lane, lane, "byte %d", c.b)
		}
	}
}

func TestMuxRoutesDatagramsToLanes(t *testing.T) {
	mux, err := New("127.0.0.1:0")
	require.NoError(t, err)
	defer mux.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mux.Run(ctx)

	sender, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer sender.Close()

	_, err = sender.WriteTo([]byte{0x01, 0xAA}, mux.LocalAddr())
	require.NoError(t, err)
	_, err = sender.WriteTo([]byte{0x16, 0xBB}, mux.LocalAddr())
	require.NoError(t, err)
	_, err = sender.WriteTo([]byte{0x80, 0xCC}, mux.LocalAddr())
	require.NoError(t, err)
	_, err = sender.WriteTo([]byte{0xFF, 0xDD}, mux.LocalAddr())
	require.NoError(t, err)

	select {
	case dg := <-mux.Lane(LaneSTUN):
		require.Equal(t, byte(0x01), dg.Payload[0])
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for STUN lane datagram")
	}

	select {
	case dg := <-mux.Lane(LaneDTLS):
		require.Equal(t, byte(0x16), dg.Payload[0])
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for DTLS lane datagram")
	}

	select {
	case dg := <-mux.Lane(LaneSRTP):
		require.Equal(t, byte(0x80), dg.Payload[0])
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for SRTP lane datagram")
	}

	// The 0xFF datagram should have been discarded; none of the three
	// lanes should see it.
	select {
	case dg := <-mux.Lane(LaneSTUN):
		t.Fatalf("unexpected datagram on STUN lane: %v", dg.Payload)
	case dg := <-mux.Lane(LaneDTLS):
		t.Fatalf("unexpected datagram on DTLS lane: %v", dg.Payload)
	case dg := <-mux.Lane(LaneSRTP):
		t.Fatalf("unexpected datagram on SRTP lane: %v", dg.Payload)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestMuxWriteLoopDeliversSend(t *testing.T) {
	mux, err := New("127.0.0.1:0")
	require.NoError(t, err)
	defer mux.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mux.Run(ctx)

	receiver, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer receiver.Close()

	require.NoError(t, mux.Send(context.Background(), []byte("hello"), receiver.LocalAddr()))

	buf := make([]byte, 16)
	receiver.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := receiver.ReadFrom(buf)
	require.NoError(t, err)
	require.Equal(t, "hello", string(buf[:n]))
}
