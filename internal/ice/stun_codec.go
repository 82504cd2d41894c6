package ice

import (
	"fmt"
	"net"

	"github.com/pion/stun"
)

// ICE-specific STUN attributes are not part of the pion/stun core
// vocabulary (they belong to RFC 8445, not RFC 5389); they are declared
// here as raw attribute types the same way pion/ice itself extends the
// base codec.
const (
	attrPriority       stun.AttrType = 0x0024
	attrUseCandidate   stun.AttrType = 0x0025
	attrICEControlled  stun.AttrType = 0x8029
	attrICEControlling stun.AttrType = 0x802a
)

// buildBindingRequest constructs a STUN binding request carrying the
// USERNAME (remoteUfrag:localUfrag), PRIORITY, and ICE-CONTROLLED
// attributes (this agent is always the controlled side, §4.4), integrity-
// protected with the local password and fingerprinted.
func buildBindingRequest(localUfrag, remoteUfrag, localPwd string, priority uint32, tieBreaker uint64) (*stun.Message, error) {
	username := remoteUfrag + ":" + localUfrag
	m, err := stun.Build(
		stun.TransactionID,
		stun.BindingRequest,
		stun.NewUsername(username),
		attrUint32Setter{attrPriority, priority},
		attrUint64Setter{attrICEControlled, tieBreaker},
		stun.NewShortTermIntegrity(localPwd),
		stun.Fingerprint,
	)
	if err != nil {
		return nil, fmt.Errorf("ice: building binding request: %w", err)
	}
	return m, nil
}

// buildBindingResponse constructs the success response to a binding
// request, carrying the XOR-MAPPED-ADDRESS of the requester.
func buildBindingResponse(req *stun.Message, mappedIP string, mappedPort int, localPwd string) (*stun.Message, error) {
	addr := stun.XORMappedAddress{IP: net.ParseIP(mappedIP), Port: mappedPort}
	m, err := stun.Build(
		stun.NewTransactionIDSetter(req.TransactionID),
		stun.BindingSuccess,
		&addr,
		stun.NewShortTermIntegrity(localPwd),
		stun.Fingerprint,
	)
	if err != nil {
		return nil, fmt.Errorf("ice: building binding response: %w", err)
	}
	return m, nil
}

// hasUseCandidate reports whether msg carries the USE-CANDIDATE attribute
// (§4.4: nomination signal from the controlling peer).
func hasUseCandidate(msg *stun.Message) bool {
	return msg.Contains(attrUseCandidate)
}

// isBindingRequest reports whether msg is a STUN binding request, as
// opposed to a response this agent itself sent.
func isBindingRequest(msg *stun.Message) bool {
	return msg.Type == stun.BindingRequest
}

type attrUint32Setter struct {
	t stun.AttrType
	v uint32
}

func (s attrUint32Setter) AddTo(m *stun.Message) error {
	b := []byte{byte(s.v >> 24), byte(s.v >> 16), byte(s.v >> 8), byte(s.v)}
	m.Add(s.t, b)
	return nil
}

type attrUint64Setter struct {
	t stun.AttrType
	v uint64
}

func (s attrUint64Setter) AddTo(m *stun.Message) error {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[7-i] = byte(s.v >> (8 * i))
	}
	m.Add(s.t, b)
	return nil
}
