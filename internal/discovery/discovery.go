// Package discovery advertises and browses producers over multicast DNS /
// DNS-SD. It only ever supplies endpoints to the transport layer; it is not
// in the data path and a discovery failure is never fatal to an
// in-progress session.
package discovery

import (
	"context"
	"net"
	"strconv"

	"github.com/grandcat/zeroconf"

	"github.com/qubzes/screenreflect/internal/apperrors"
	"github.com/qubzes/screenreflect/internal/logger"
)

// ServiceType is the fixed DNS-SD service type producers advertise under
// and consumers browse for.
const ServiceType = "_screenreflect._tcp"

// Advertiser holds the running mDNS registration for a producer. Call
// Shutdown when the transport server stops so the advertisement is
// withdrawn promptly.
type Advertiser struct {
	server *zeroconf.Server
}

// Advertise registers instanceName under ServiceType on port, in the local
// domain. The advertised port must equal the transport server's listening
// port.
func Advertise(instanceName string, port int) (*Advertiser, error) {
	if instanceName == "" {
		instanceName = "screenreflect"
	}
	server, err := zeroconf.Register(instanceName, ServiceType, "local.", port, nil, nil)
	if err != nil {
		return nil, apperrors.NewDiscoveryError("advertise", err)
	}
	logger.Info("discovery advertised", "instance", instanceName, "service", ServiceType, "port", port)
	return &Advertiser{server: server}, nil
}

// Shutdown withdraws the advertisement.
func (a *Advertiser) Shutdown() {
	if a == nil || a.server == nil {
		return
	}
	a.server.Shutdown()
}

// Candidate is a discovered producer endpoint.
type Candidate struct {
	InstanceName string
	Host         string
	Port         int
}

// Browse enumerates ServiceType instances until ctx is canceled, delivering
// each resolved candidate on the returned channel. The channel is closed
// when browsing stops.
func Browse(ctx context.Context) (<-chan Candidate, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, apperrors.NewDiscoveryError("newResolver", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	out := make(chan Candidate)

	go func() {
		defer close(out)
		for entry := range entries {
			cand, ok := candidateFromEntry(entry)
			if !ok {
				continue
			}
			select {
			case out <- cand:
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, "local.", entries); err != nil {
		return nil, apperrors.NewDiscoveryError("browse", err)
	}
	return out, nil
}

func candidateFromEntry(entry *zeroconf.ServiceEntry) (Candidate, bool) {
	host := ""
	if len(entry.AddrIPv4) > 0 {
		host = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		host = entry.AddrIPv6[0].String()
	}
	if host == "" || entry.Port == 0 {
		return Candidate{}, false
	}
	return Candidate{
		InstanceName: entry.Instance,
		Host:         host,
		Port:         entry.Port,
	}, true
}

// Resolve turns a user-supplied host:port override into a Candidate without
// touching mDNS at all, for the explicit endpoint-override path.
func Resolve(hostPort string) (Candidate, error) {
	host, portStr, err := net.SplitHostPort(hostPort)
	if err != nil {
		return Candidate{}, apperrors.NewDiscoveryError("resolveOverride", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return Candidate{}, apperrors.NewDiscoveryError("resolveOverride", err)
	}
	return Candidate{Host: host, Port: port}, nil
}
