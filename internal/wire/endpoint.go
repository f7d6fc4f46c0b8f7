package wire

import (
	"fmt"
	"net"
	"strings"
)

// splitEndpoint maps a spec-style endpoint string to a (network, address)
// pair accepted by net.Dial / net.Listen. Recognized forms:
//
//	tcp://host:port
//	tcp://*:port   (listen on all interfaces)
//	ipc://<path>   (unix-domain socket)
func splitEndpoint(endpoint string) (network, address string, err error) {
	switch {
	case strings.HasPrefix(endpoint, "tcp://"):
		addr := strings.TrimPrefix(endpoint, "tcp://")
		addr = strings.Replace(addr, "*", "0.0.0.0", 1)
		return "tcp", addr, nil
	case strings.HasPrefix(endpoint, "ipc://"):
		return "unix", strings.TrimPrefix(endpoint, "ipc://"), nil
	default:
		return "", "", fmt.Errorf("unsupported endpoint %q: expected tcp:// or ipc://", endpoint)
	}
}

func dial(endpoint string) (net.Conn, error) {
	network, address, err := splitEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	return net.Dial(network, address)
}

func listen(endpoint string) (net.Listener, error) {
	network, address, err := splitEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	return net.Listen(network, address)
}
