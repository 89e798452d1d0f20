package transport

import (
	"net"
	"strconv"
	"strings"
)

// DefaultPort is the standard AMQP broker port.
const DefaultPort = 5672

// Address is one candidate broker endpoint.
type Address struct {
	Host string
	Port int
}

// String renders the address as "host:port".
func (a Address) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// Resolver supplies candidate endpoints at connect time. A configured
// resolver takes precedence over both an address list and host/port.
type Resolver interface {
	Resolve() ([]Address, error)
}

// ResolverFunc adapts a plain function to the Resolver interface.
type ResolverFunc func() ([]Address, error)

func (f ResolverFunc) Resolve() ([]Address, error) { return f() }

// ParseAddresses parses a comma-separated "host[:port]" list into endpoints.
// Tokens without a port use defaultPort; empty and unparsable tokens are
// dropped. Parsing never fails: input with no usable token yields an empty
// slice, and the caller decides how loudly to complain.
func ParseAddresses(spec string, defaultPort int) []Address {
	if defaultPort <= 0 {
		defaultPort = DefaultPort
	}
	var out []Address
	for _, token := range strings.Split(spec, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		host, portStr, ok := splitHostPort(token)
		if !ok {
			continue
		}
		port := defaultPort
		if portStr != "" {
			p, err := strconv.Atoi(portStr)
			if err != nil || p <= 0 || p > 65535 {
				continue
			}
			port = p
		}
		out = append(out, Address{Host: host, Port: port})
	}
	return out
}

// splitHostPort separates an optional ":port" suffix without requiring one,
// which net.SplitHostPort does.
func splitHostPort(token string) (host, port string, ok bool) {
	i := strings.LastIndexByte(token, ':')
	if i < 0 {
		return token, "", true
	}
	host, port = token[:i], token[i+1:]
	if host == "" || port == "" {
		return "", "", false
	}
	return host, port, true
}
