// Package discovery finds other nodes on the local network over mDNS.
package discovery

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/grandcat/zeroconf"
)

const (
	// ServiceType is the DNS-SD service nodes advertise
	ServiceType = "_supplychain._tcp"

	// Domain is the mDNS domain
	Domain = "local."

	// txtRPC marks the TXT record holding the advertised API URL
	txtRPC = "rpc="
)

// Announcer advertises the local node until Shutdown
type Announcer struct {
	server *zeroconf.Server
}

// Announce registers instance on port. rpcURL, when set, is published in a
// TXT record so browsers can reach the API behind a different host name.
func Announce(instance string, port int, rpcURL string) (*Announcer, error) {
	var txt []string
	if rpcURL != "" {
		txt = append(txt, txtRPC+rpcURL)
	}

	server, err := zeroconf.Register(instance, ServiceType, Domain, port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("discovery: register %s: %w", instance, err)
	}
	return &Announcer{server: server}, nil
}

// Shutdown withdraws the advertisement
func (a *Announcer) Shutdown() {
	if a != nil && a.server != nil {
		a.server.Shutdown()
	}
}

// Browse reports the API address of every node seen until ctx is done.
// found is called from a single goroutine.
func Browse(ctx context.Context, found func(addr string)) error {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("discovery: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	go func() {
		for entry := range entries {
			if addr := EntryAddress(entry); addr != "" {
				found(addr)
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, Domain, entries); err != nil {
		return fmt.Errorf("discovery: browse: %w", err)
	}
	return nil
}

// EntryAddress derives the HTTP address of a discovered node, preferring
// the advertised rpc TXT record over the first IPv4 address
func EntryAddress(entry *zeroconf.ServiceEntry) string {
	if entry == nil {
		return ""
	}
	for _, txt := range entry.Text {
		if url, ok := strings.CutPrefix(txt, txtRPC); ok && url != "" {
			return url
		}
	}
	if len(entry.AddrIPv4) == 0 || entry.Port == 0 {
		return ""
	}
	return "http://" + net.JoinHostPort(entry.AddrIPv4[0].String(), strconv.Itoa(entry.Port))
}
