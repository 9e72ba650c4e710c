package httputil

import (
	"fmt"
	"net"
)

// ValidateIP rejects addresses a public update server has no business
// redirecting to: private, loopback, link-local, multicast and unspecified.
func ValidateIP(ip net.IP, host string) error {
	var kind string
	switch {
	case ip.IsPrivate():
		kind = "private"
	case ip.IsLoopback():
		kind = "loopback"
	case ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast():
		kind = "link-local"
	case ip.IsMulticast():
		kind = "multicast"
	case ip.IsUnspecified():
		kind = "unspecified"
	default:
		return nil
	}
	return fmt.Errorf("refusing redirect to %s address %s (%s)", kind, host, ip)
}
