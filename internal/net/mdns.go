package net

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/hashicorp/mdns"
)

const ServiceType = "_sharedboard._tcp"

// Advertise announces a coordinator on the local network. The TXT record
// carries the websocket path so a browser knows where to dial.
func Advertise(service string, port int) (*mdns.Server, error) {
	host, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("could not get hostname: %w", err)
	}

	var ips []net.IP
	if ip := OutgoingIP(); !ip.IsLoopback() {
		ips = []net.IP{ip}
	}
	zone, err := mdns.NewMDNSService(host, ServiceType, "", "", port, ips, []string{"path=/" + service})
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS service: %w", err)
	}
	server, err := mdns.NewServer(&mdns.Config{Zone: zone})
	if err != nil {
		return nil, fmt.Errorf("failed to start mDNS server: %w", err)
	}
	return server, nil
}

// Discovered is a coordinator found by Browse.
type Discovered struct {
	Host string
	Port int
}

// Browse waits up to timeout for the first advertised coordinator.
func Browse(timeout time.Duration) (Discovered, error) {
	entries := make(chan *mdns.ServiceEntry, 8)
	found := make(chan Discovered, 1)
	go func() {
		for e := range entries {
			if e.AddrV4 == nil || e.Port == 0 {
				continue
			}
			select {
			case found <- Discovered{Host: e.AddrV4.String(), Port: e.Port}:
			default:
			}
		}
	}()

	params := mdns.DefaultParams(ServiceType)
	params.Entries = entries
	params.Timeout = timeout
	params.DisableIPv6 = true
	err := mdns.Query(params)
	close(entries)
	if err != nil {
		return Discovered{}, fmt.Errorf("%w: mdns query: %v", ErrConnection, err)
	}
	select {
	case d := <-found:
		return d, nil
	default:
		return Discovered{}, fmt.Errorf("%w: no coordinator advertised as %s", ErrConnection, ServiceType)
	}
}
