package discovery

import (
	"net"
	"testing"

	"github.com/grandcat/zeroconf"
	"github.com/stretchr/testify/assert"
)

func TestEntryAddress(t *testing.T) {
	tests := []struct {
		name  string
		entry *zeroconf.ServiceEntry
		want  string
	}{
		{name: "nil", entry: nil, want: ""},
		{
			name:  "ipv4 and port",
			entry: &zeroconf.ServiceEntry{AddrIPv4: []net.IP{net.ParseIP("192.168.1.20")}, Port: 5000},
			want:  "http://192.168.1.20:5000",
		},
		{
			name: "txt record wins",
			entry: &zeroconf.ServiceEntry{
				AddrIPv4: []net.IP{net.ParseIP("192.168.1.20")},
				Port:     5000,
				Text:     []string{"version=1", "rpc=http://node-a.lan:5000"},
			},
			want: "http://node-a.lan:5000",
		},
		{name: "no address", entry: &zeroconf.ServiceEntry{Port: 5000}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EntryAddress(tt.entry))
		})
	}
}
