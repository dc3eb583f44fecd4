package misc

import (
	"errors"
	"fmt"
	"net"
	"strconv"
)

func GetFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}

	port := l.Addr().(*net.TCPAddr).Port

	err = l.Close()
	if err != nil {
		return 0, err
	}

	return port, nil
}

// ResolveListenAddress swaps a zero or missing port for a free one. Peers need the real port before the
// server is up.
func ResolveListenAddress(address string) (string, error) {
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return "", fmt.Errorf("bad listen address %q: %w", address, err)
	}
	if port != "" && port != "0" {
		return address, nil
	}
	free, err := GetFreePort()
	if err != nil {
		return "", err
	}
	return net.JoinHostPort(host, strconv.Itoa(free)), nil
}

// GetLocalAddress returns the first IPv4 address of an up, non-loopback interface.
func GetLocalAddress() (string, error) {
	networkInterfaces, err := net.Interfaces()
	if err != nil {
		return "", errors.New("failed to find network interface on this device")
	}

	for _, elt := range networkInterfaces {
		if elt.Flags&net.FlagLoopback != 0 || elt.Flags&net.FlagUp == 0 {
			continue
		}
		addresses, err := elt.Addrs()
		if err != nil {
			return "", errors.New("failed to get an address from the network interface")
		}
		for _, addr := range addresses {
			if ip, ok := addr.(*net.IPNet); ok {
				if ip4 := ip.IP.To4(); len(ip4) == net.IPv4len {
					return ip4.String(), nil
				}
			}
		}
	}

	return "", errors.New("failed to find a non-loopback interface with valid address on this device")
}

// GetLocalAddressOr falls back to fallback when no external interface is available.
func GetLocalAddressOr(fallback string) string {
	address, err := GetLocalAddress()
	if err != nil {
		return fallback
	}
	return address
}
