package rpcserver

import (
	"fmt"
	"strings"

	"github.com/viamrobotics/zeroconf"
)

// serviceType and the TXT record are fixed by §6: "registers two services of
// type `_rpc._tcp` bearing TXT record `grpc=`".
const serviceType = "_rpc._tcp"

// Advertiser wraps the zeroconf server handles for the cloud-supplied and
// local FQDN instances so both can be torn down together.
type Advertiser struct {
	servers []*zeroconf.Server
}

// instanceNameFromFQDN derives an mDNS instance name from a DNS FQDN by
// replacing dots with hyphens, per §6.
func instanceNameFromFQDN(fqdn string) string {
	return strings.ReplaceAll(strings.TrimSuffix(fqdn, "."), ".", "-")
}

// Advertise registers mDNS records for both cloudFQDN and localFQDN on port
// (§6: "instance names derived from the cloud-supplied FQDN and local FQDN").
// localFQDN is always present; cloudFQDN may be empty before the cloud
// client first establishes a connection, in which case only the local
// record is registered.
func Advertise(cloudFQDN, localFQDN string, port int) (*Advertiser, error) {
	var names []string
	if cloudFQDN != "" {
		names = append(names, instanceNameFromFQDN(cloudFQDN))
	}
	names = append(names, instanceNameFromFQDN(localFQDN))

	a := &Advertiser{}
	for _, name := range names {
		server, err := zeroconf.Register(name, serviceType, "local.", port, []string{"grpc="}, nil)
		if err != nil {
			a.Shutdown()
			return nil, fmt.Errorf("rpcserver: registering mDNS service %q: %w", name, err)
		}
		a.servers = append(a.servers, server)
	}
	return a, nil
}

// Shutdown withdraws every registered mDNS record.
func (a *Advertiser) Shutdown() {
	for _, s := range a.servers {
		s.Shutdown()
	}
}
