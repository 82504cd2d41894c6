// Package webrtcpeer drives one WebRTC session end to end: parses the
// remote SDP offer, runs ICE/DTLS/SCTP establishment over a shared udpmux,
// and exposes the resulting data channel as a grpcframe transport (§4.4-§4.7).
package webrtcpeer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/viamrobotics/micro-rdk-go/internal/ice"
)

// OfferInfo is everything this core needs to extract from a remote SDP
// offer: the ICE credentials. An offer that is not well-formed enough to
// proceed yields an error from ParseOffer instead.
type OfferInfo struct {
	UFrag string
	Pwd   string
}

// ParseOffer extracts ICE credentials from a remote SDP offer, hardening
// the Open Question from §9 per the SPEC_FULL.md §7 decision: a malformed
// offer is rejected outright rather than tolerated best-effort. An offer is
// rejected when it does not carry exactly one `m=application` section, or
// is missing either `ice-ufrag` or `ice-pwd`.
func ParseOffer(sdp string) (OfferInfo, error) {
	lines := strings.Split(sdp, "\n")

	appSections := 0
	var ufrag, pwd string
	for _, raw := range lines {
		line := strings.TrimRight(raw, "\r")
		switch {
		case strings.HasPrefix(line, "m=application"):
			appSections++
		case strings.HasPrefix(line, "a=ice-ufrag:"):
			ufrag = strings.TrimPrefix(line, "a=ice-ufrag:")
		case strings.HasPrefix(line, "a=ice-pwd:"):
			pwd = strings.TrimPrefix(line, "a=ice-pwd:")
		}
	}

	if appSections != 1 {
		return OfferInfo{}, fmt.Errorf("webrtcpeer: offer must carry exactly one m=application section, found %d", appSections)
	}
	if ufrag == "" {
		return OfferInfo{}, fmt.Errorf("webrtcpeer: offer missing required ice-ufrag attribute")
	}
	if pwd == "" {
		return OfferInfo{}, fmt.Errorf("webrtcpeer: offer missing required ice-pwd attribute")
	}
	return OfferInfo{UFrag: ufrag, Pwd: pwd}, nil
}

// ParseRemoteCandidate parses an "a=candidate:..." style line or bare
// candidate attribute value into an ice.Candidate, accepting the shape
// produced by Candidate.String. Only foundation, component, protocol,
// priority, address and port are read: the "typ" field is ignored and every
// parsed candidate is typed host, and related address/port are not parsed.
func ParseRemoteCandidate(value string) (ice.Candidate, error) {
	value = strings.TrimPrefix(strings.TrimSpace(value), "candidate:")
	fields := strings.Fields(value)
	if len(fields) < 6 {
		return ice.Candidate{}, fmt.Errorf("webrtcpeer: malformed ICE candidate %q", value)
	}
	component, err := strconv.Atoi(fields[1])
	if err != nil {
		return ice.Candidate{}, fmt.Errorf("webrtcpeer: malformed candidate component: %w", err)
	}
	priority, err := strconv.ParseUint(fields[3], 10, 32)
	if err != nil {
		return ice.Candidate{}, fmt.Errorf("webrtcpeer: malformed candidate priority: %w", err)
	}
	port, err := strconv.Atoi(fields[5])
	if err != nil {
		return ice.Candidate{}, fmt.Errorf("webrtcpeer: malformed candidate port: %w", err)
	}
	return ice.Candidate{
		Foundation: fields[0],
		Component:  component,
		Protocol:   fields[2],
		Priority:   uint32(priority),
		Address:    fields[4],
		Port:       port,
		Type:       ice.CandidateTypeHost,
	}, nil
}

// BuildAnswer renders the fixed SDP answer shape required by §6: one BUNDLE
// group, one `m=application` section offering the WebRTC data channel, a
// passive DTLS setup role, and the local ICE credentials plus certificate
// fingerprint.
func BuildAnswer(localUFrag, localPwd, fingerprint string) string {
	var b strings.Builder
	b.WriteString("v=0\r\n")
	b.WriteString("o=- 0 0 IN IP4 0.0.0.0\r\n")
	b.WriteString("s=-\r\n")
	b.WriteString("t=0 0\r\n")
	b.WriteString("a=group:BUNDLE 0\r\n")
	b.WriteString("m=application 9 UDP/DTLS/SCTP webrtc-datachannel\r\n")
	b.WriteString("c=IN IP4 0.0.0.0\r\n")
	b.WriteString("a=setup:passive\r\n")
	b.WriteString("a=mid:0\r\n")
	b.WriteString("a=sendrecv\r\n")
	b.WriteString("a=sctp-port:5000\r\n")
	fmt.Fprintf(&b, "a=ice-ufrag:%s\r\n", localUFrag)
	fmt.Fprintf(&b, "a=ice-pwd:%s\r\n", localPwd)
	fmt.Fprintf(&b, "a=fingerprint:sha-256 %s\r\n", fingerprint)
	return b.String()
}
