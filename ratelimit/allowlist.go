package ratelimit

import (
	"net"
	"strings"
)

// AllowList matches client addresses against configured IP literals and
// CIDR ranges. A match bypasses rate limiting entirely: no bucket keys
// are ever created for an allow-listed request.
type AllowList struct {
	literals map[string]bool
	cidrs    []*net.IPNet
}

// NewAllowList parses entries as either bare IPs or CIDR ranges.
func NewAllowList(entries []string) (*AllowList, error) {
	al := &AllowList{literals: make(map[string]bool)}
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if strings.Contains(e, "/") {
			_, ipnet, err := net.ParseCIDR(e)
			if err != nil {
				return nil, err
			}
			al.cidrs = append(al.cidrs, ipnet)
			continue
		}
		ip := net.ParseIP(e)
		if ip == nil {
			return nil, &net.ParseError{Type: "IP address", Text: e}
		}
		al.literals[normalizeIP(ip).String()] = true
	}
	return al, nil
}

// normalizeIP collapses an IPv4-mapped IPv6 address (::ffff:a.b.c.d) to
// its plain IPv4 form so allow-list entries don't need both shapes.
func normalizeIP(ip net.IP) net.IP {
	if v4 := ip.To4(); v4 != nil {
		return v4
	}
	return ip
}

func (al *AllowList) contains(addr string) bool {
	ip := net.ParseIP(strings.TrimSpace(addr))
	if ip == nil {
		return false
	}
	ip = normalizeIP(ip)
	if al.literals[ip.String()] {
		return true
	}
	for _, n := range al.cidrs {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// candidateIPs orders the addresses a request could be attributed to:
// the first X-Forwarded-For entry, then X-Real-IP, then the socket peer
// address (host part only, if it carries a port).
func candidateIPs(xForwardedFor, xRealIP, remoteAddr string) []string {
	var out []string
	if xForwardedFor != "" {
		if first := strings.TrimSpace(strings.Split(xForwardedFor, ",")[0]); first != "" {
			out = append(out, first)
		}
	}
	if xRealIP != "" {
		out = append(out, strings.TrimSpace(xRealIP))
	}
	if remoteAddr != "" {
		if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
			out = append(out, host)
		} else {
			out = append(out, remoteAddr)
		}
	}
	return out
}

// IsAllowListed checks every candidate address, in order, against the
// allow list and returns on the first match.
func (al *AllowList) IsAllowListed(xForwardedFor, xRealIP, remoteAddr string) bool {
	for _, c := range candidateIPs(xForwardedFor, xRealIP, remoteAddr) {
		if al.contains(c) {
			return true
		}
	}
	return false
}

// ResolveClientIP picks the single address a request is billed against:
// the same ordered candidate list IsAllowListed checks, taking the first
// one that parses as a valid IP, falling back to remoteAddr verbatim.
func ResolveClientIP(xForwardedFor, xRealIP, remoteAddr string) string {
	for _, c := range candidateIPs(xForwardedFor, xRealIP, remoteAddr) {
		if net.ParseIP(c) != nil {
			return normalizeIP(net.ParseIP(c)).String()
		}
	}
	return remoteAddr
}
