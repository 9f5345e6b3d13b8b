// Package netguard rejects outbound connections to internal network
// addresses. The check runs inside the dialer's Control hook, so it applies
// to the address the socket actually connects to -- after DNS resolution and
// on every redirect hop -- which closes the DNS-rebinding window a
// resolve-then-fetch check leaves open.
package netguard

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"time"
)

// ErrPrivateAddress is returned when a target resolves to an internal,
// loopback, or link-local address.
var ErrPrivateAddress = errors.New("access to private IP denied")

// currentNetwork is IPv4 0.0.0.0/8, which net.IP has no predicate for.
var currentNetwork = &net.IPNet{
	IP:   net.IPv4(0, 0, 0, 0).To4(),
	Mask: net.CIDRMask(8, 32),
}

// IsForbidden reports whether ip falls in a range the engine must never
// connect to: IPv4 loopback (127/8), private (10/8, 172.16/12, 192.168/16),
// link-local (169.254/16), current network (0/8); IPv6 loopback (::1),
// unique-local (fc00::/7), link-local (fe80::/10); plus the unspecified
// address.
func IsForbidden(ip net.IP) bool {
	if ip == nil {
		return true
	}
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
		return true
	}
	if v4 := ip.To4(); v4 != nil && currentNetwork.Contains(v4) {
		return true
	}
	return false
}

// CheckHost classifies host when it is a literal IP. Hostnames pass; their
// resolved addresses are classified at dial time.
func CheckHost(host string) error {
	ip := net.ParseIP(host)
	if ip == nil {
		return nil
	}
	if IsForbidden(ip) {
		return fmt.Errorf("%w: %s", ErrPrivateAddress, host)
	}
	return nil
}

// Control is a net.Dialer Control hook enforcing the classifier on the
// connected address.
func Control(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("split dial address %q: %w", address, err)
	}
	ip := net.ParseIP(host)
	if ip == nil || IsForbidden(ip) {
		return fmt.Errorf("%w: %s", ErrPrivateAddress, host)
	}
	return nil
}

// NewTransport returns an http.Transport whose every connection passes
// through the private-address classifier.
func NewTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
		Control:   Control,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
}

// NewClient builds an http.Client on the guarded transport with a bounded
// redirect count. Redirect targets are re-checked via CheckHost before the
// transport dials them, so a hop to a literal private IP fails fast with a
// classifiable error.
func NewClient(timeout time.Duration, maxRedirects int) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: NewTransport(),
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			if err := CheckHost(req.URL.Hostname()); err != nil {
				return fmt.Errorf("redirect blocked: %w", err)
			}
			return nil
		},
	}
}
