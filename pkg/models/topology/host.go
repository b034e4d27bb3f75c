package topology

import (
	"fmt"
	"net"
	"strconv"
)

// HostAddress is the network location of a worker.
type HostAddress struct {
	Host string `json:"host" toml:"host" yaml:"host"`
	Port int    `json:"port" toml:"port" yaml:"port"`
}

func NewHostAddress(host string, port int) HostAddress {
	return HostAddress{
		Host: host,
		Port: port,
	}
}

// ParseHostAddress accepts "host:port" and "[v6]:port" forms.
func ParseHostAddress(raw string) (HostAddress, error) {
	host, port, err := net.SplitHostPort(raw)
	if err != nil {
		return HostAddress{}, err
	}
	p, err := strconv.Atoi(port)
	if err != nil || p <= 0 || p > 65535 {
		return HostAddress{}, fmt.Errorf("invalid port in address %q", raw)
	}
	return NewHostAddress(host, p), nil
}

func (h HostAddress) String() string {
	return net.JoinHostPort(h.Host, strconv.Itoa(h.Port))
}

func (h HostAddress) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *HostAddress) UnmarshalText(b []byte) error {
	parsed, err := ParseHostAddress(string(b))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
