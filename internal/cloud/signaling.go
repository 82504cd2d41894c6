package cloud

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/viamrobotics/micro-rdk-go/internal/ice"
)

// SDPType is the grammar's "offer"|"answer" discriminator (§6).
type SDPType string

const (
	SDPTypeOffer  SDPType = "offer"
	SDPTypeAnswer SDPType = "answer"
)

// SDP is the JSON object base64-encoded onto the wire (§6:
// `{"type":"offer"|"answer","sdp":"<sdp text>"}`).
type SDP struct {
	Type SDPType `json:"type"`
	SDP  string  `json:"sdp"`
}

// EncodeSDP base64-encodes the UTF-8 JSON form of sdp.
func EncodeSDP(sdp SDP) (string, error) {
	raw, err := json.Marshal(sdp)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeSDP reverses EncodeSDP, rejecting anything that is not a JSON
// object carrying "type" and "sdp" (§9 Open Question: this core hardens
// offer parsing, see SPEC_FULL.md §7).
func DecodeSDP(b64 string) (SDP, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return SDP{}, fmt.Errorf("cloud: invalid base64 SDP payload: %w", err)
	}
	var sdp SDP
	if err := json.Unmarshal(raw, &sdp); err != nil {
		return SDP{}, fmt.Errorf("cloud: invalid SDP JSON payload: %w", err)
	}
	if sdp.Type == "" {
		return SDP{}, fmt.Errorf("cloud: SDP payload has empty type field")
	}
	if sdp.SDP == "" {
		return SDP{}, fmt.Errorf("cloud: SDP payload has empty sdp field")
	}
	return sdp, nil
}

// AnswerRequestKind discriminates the four frame shapes a request carries
// (§6: "one of {init(sdp_b64), update(ice_candidate), done, error}").
type AnswerRequestKind int

const (
	RequestInit AnswerRequestKind = iota
	RequestUpdate
	RequestDone
	RequestError
)

// AnswerRequest is a frame received from the cloud signaling stream.
type AnswerRequest struct {
	Kind      AnswerRequestKind
	SDPBase64 string        // set when Kind == RequestInit
	Candidate ice.Candidate // set when Kind == RequestUpdate
	Status    int           // set when Kind == RequestError
	// Priority carries the admission priority the remote controller decided
	// on for this offer, set when Kind == RequestDone (§4.8: "the server
	// tells the controller the current floor, and the controller decides
	// whether the new offer outranks it").
	Priority uint32
}

// AnswerResponseKind mirrors AnswerRequestKind for the local -> cloud
// direction.
type AnswerResponseKind int

const (
	ResponseInit AnswerResponseKind = iota
	ResponseUpdate
	ResponseDone
	ResponseError
)

// AnswerResponse is a frame sent to the cloud signaling stream.
type AnswerResponse struct {
	Kind      AnswerResponseKind
	SDPBase64 string
	Candidate ice.Candidate
	Status    int
	// LowestPriority accompanies ResponseInit, telling the remote
	// controller the current priority floor so it can decide whether this
	// offer outranks an existing session (§4.8).
	LowestPriority uint32
}

// SessionID is the UUID the remote assigns to key one signaling exchange
// (§4.9).
type SessionID = uuid.UUID

// AppSignaling is the bidirectional stream abstraction: the local side
// sends AnswerResponse frames and receives AnswerRequest frames, keyed by a
// remote-assigned session UUID.
type AppSignaling interface {
	ID() SessionID
	Send(resp AnswerResponse) error
	Recv() (AnswerRequest, error)
	Close() error
}

// ValidateOffer enforces §6's "rejection of non-offer on the receive side
// is mandatory": a decoded SDP whose Type is not "offer" is invalid input
// on the receive side, regardless of how it parses otherwise.
func ValidateOffer(sdp SDP) error {
	if sdp.Type != SDPTypeOffer {
		return fmt.Errorf("cloud: expected an SDP offer, got type %q", sdp.Type)
	}
	return nil
}
