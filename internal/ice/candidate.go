// Package ice implements the controlled-only ICE agent described in §4.4:
// host-candidate gathering, STUN connectivity checks over the udpmux STUN
// lane, and USE-CANDIDATE-driven nomination. It never acts as the
// controlling side — this core always answers an offer.
package ice

import (
	"fmt"
	"net"

	pionice "github.com/pion/ice/v2"
)

// CandidateType mirrors pion/ice's type vocabulary (host, server-reflexive,
// peer-reflexive, relay); only host candidates are gathered by this agent
// (§4.4: "server-reflexive gathering is optional and is not required by
// this core").
type CandidateType = pionice.CandidateType

const (
	CandidateTypeHost            = pionice.CandidateTypeHost
	CandidateTypeServerReflexive = pionice.CandidateTypeServerReflexive
	CandidateTypePeerReflexive   = pionice.CandidateTypePeerReflexive
	CandidateTypeRelay           = pionice.CandidateTypeRelay
)

// Candidate is the §3 ICE candidate tuple.
type Candidate struct {
	Foundation      string
	Component       int // always 1 for data, per §3
	Protocol        string
	Priority        uint32
	Address         string
	Port            int
	Type            CandidateType
	RelatedAddress  string
	RelatedPort     int
}

func (c Candidate) String() string {
	return fmt.Sprintf("candidate:%s %d %s %d %s %d typ %s",
		c.Foundation, c.Component, c.Protocol, c.Priority, c.Address, c.Port, c.Type)
}

// hostPriority computes a deterministic, monotonically-decreasing priority
// for successive host candidates, following the RFC 8445 formula
// (type preference << 24 | local preference << 8 | (256 - component ID)),
// with component ID 1.
func hostPriority(localPref int) uint32 {
	const typePreferenceHost = 126
	return uint32(typePreferenceHost)<<24 | uint32(localPref)<<8 | uint32(256-1)
}

// GatherHostCandidates enumerates local IPv4 interface addresses and
// returns one host candidate per address bound to port (§4.4: "performs
// host-candidate gathering from enumerating the local IPv4 interface
// address").
func GatherHostCandidates(port int) ([]Candidate, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, fmt.Errorf("ice: enumerating interfaces: %w", err)
	}

	var out []Candidate
	localPref := 65535
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		ip4 := ipNet.IP.To4()
		if ip4 == nil || ip4.IsLoopback() {
			continue
		}
		out = append(out, Candidate{
			Foundation: fmt.Sprintf("host%d", len(out)+1),
			Component:  1,
			Protocol:   "udp",
			Priority:   hostPriority(localPref),
			Address:    ip4.String(),
			Port:       port,
			Type:       CandidateTypeHost,
		})
		localPref--
	}

	if len(out) == 0 {
		// Always offer loopback so single-host integration tests (S3) have
		// at least one candidate to exchange.
		out = append(out, Candidate{
			Foundation: "host1",
			Component:  1,
			Protocol:   "udp",
			Priority:   hostPriority(localPref),
			Address:    "127.0.0.1",
			Port:       port,
			Type:       CandidateTypeHost,
		})
	}
	return out, nil
}
