package security

import (
	"net/netip"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// ValidateBaseURL checks the URL the API key is sent to. HTTPS is always
// accepted, plain HTTP only for loopback, private and .local hosts.
func ValidateBaseURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.Wrap(err, "invalid base URL")
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return errors.Errorf("base URL %q has no host", rawURL)
	}

	switch parsed.Scheme {
	case "https":
		return nil
	case "http":
		if isLocalHost(host) {
			return nil
		}
		return errors.Errorf("plain http is only allowed for local hosts, not %q", host)
	default:
		return errors.Errorf("unsupported base URL scheme %q", parsed.Scheme)
	}
}

func isLocalHost(host string) bool {
	if host == "localhost" || strings.HasSuffix(host, ".localhost") || strings.HasSuffix(host, ".local") {
		return true
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	return addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast()
}
