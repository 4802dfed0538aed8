package session

import (
	"fmt"
	"net/netip"
	"regexp"
	"strings"
)

// nameRe matches a host name or IPv4 address.  A leading '-' is refused
// because ssh and scp would parse the destination as an option.
var nameRe = regexp.MustCompile(`^[^-@:\s/\[\]][^@:\s/\[\]]*$`)

// userRe matches the user part of a destination.
var userRe = regexp.MustCompile(`^[^-@:\s/\[\]][^@:\s/\[\]]*$`)

// SplitHost splits a "[user@]host" destination.  host may be a name, an
// IPv4 address, or an IPv6 address either bare or in brackets; the
// returned host never carries brackets.
func SplitHost(dest string) (user, host string, err error) {
	bad := func(why string) (string, string, error) {
		return "", "", fmt.Errorf("invalid host %q – %s", dest, why)
	}
	if dest == "" {
		return bad("expected [user@]host")
	}
	host = dest
	if i := strings.IndexByte(dest, '@'); i >= 0 {
		user, host = dest[:i], dest[i+1:]
		if !userRe.MatchString(user) {
			return bad("user must be non-empty and must not start with '-'")
		}
	}

	if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		host = host[1 : len(host)-1]
		if !isIPv6(host) {
			return bad("brackets are only valid around an IPv6 address")
		}
		return user, host, nil
	}
	if strings.Contains(host, ":") {
		if !isIPv6(host) {
			return bad("expected [user@]host without a port, use --port")
		}
		return user, host, nil
	}
	if !nameRe.MatchString(host) {
		return bad("expected [user@]host, not starting with '-'")
	}
	return user, host, nil
}

func isIPv6(s string) bool {
	a, err := netip.ParseAddr(s)
	return err == nil && a.Is6()
}

// SCPDestination renders dest as the host half of an scp operand.
// IPv6 addresses are bracketed so scp does not take their colons for
// the path separator.
func SCPDestination(dest string) string {
	user, host, err := SplitHost(dest)
	if err != nil || !strings.Contains(host, ":") {
		return dest
	}
	if user != "" {
		return user + "@[" + host + "]"
	}
	return "[" + host + "]"
}
