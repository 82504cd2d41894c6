package webrtcpeer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/viamrobotics/micro-rdk-go/internal/grpcframe"
)

// requestEnvelope is the JSON body carried inside each data-channel
// grpcframe message; unlike the HTTP/2 path, there is no `:path`
// pseudo-header to carry the method, so it travels in the envelope itself.
type requestEnvelope struct {
	Method string                 `json:"method"`
	Name   string                 `json:"name"`
	Args   map[string]interface{} `json:"args"`
}

// DispatchFunc resolves one decoded request to a result map plus gRPC
// status; rpcserver.Dispatcher satisfies this shape via a small adapter,
// kept decoupled here so webrtcpeer does not import internal/robot.
type DispatchFunc func(ctx context.Context, method, name string, args map[string]interface{}) (result map[string]interface{}, status grpcframe.Status)

// dataChannelConn is the minimal read/write surface ServeDataChannel needs;
// satisfied by *pion/datachannel.DataChannel.
type dataChannelConn interface {
	ReadDataChannel(p []byte) (n int, isString bool, err error)
	WriteDataChannel(p []byte, isString bool) (int, error)
}

// ServeDataChannel reads framed requests from dc until it closes or ctx is
// cancelled, dispatching each to dispatch and writing back the framed reply
// followed by an in-band status frame (§4.7, §4.11).
func ServeDataChannel(ctx context.Context, dc dataChannelConn, dispatch DispatchFunc) error {
	buf := make([]byte, 4096)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, _, err := dc.ReadDataChannel(buf)
		if err != nil {
			return fmt.Errorf("webrtcpeer: data channel read failed: %w", err)
		}

		msg, _, err := grpcframe.Decode(buf[:n])
		if err != nil {
			writeStatus(dc, grpcframe.Status{Code: 3, Message: fmt.Sprintf("invalid frame: %v", err)})
			continue
		}

		var env requestEnvelope
		if err := json.Unmarshal(msg, &env); err != nil {
			writeStatus(dc, grpcframe.Status{Code: 3, Message: fmt.Sprintf("invalid request body: %v", err)})
			continue
		}

		result, status := dispatch(ctx, env.Method, env.Name, env.Args)
		if status.Code == 0 {
			payload, _ := json.Marshal(result)
			if _, err := dc.WriteDataChannel(grpcframe.Encode(payload), false); err != nil {
				return fmt.Errorf("webrtcpeer: data channel write failed: %w", err)
			}
		}
		writeStatus(dc, status)
	}
}

func writeStatus(dc dataChannelConn, status grpcframe.Status) {
	dc.WriteDataChannel(grpcframe.EncodeStatus(status), false)
}
