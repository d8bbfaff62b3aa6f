// Package urlnorm normalizes URLs before they enter the frontier so that
// the same resource expressed two different ways produces the same string
// (and therefore the same seen-set key). Adapted from the teacher's
// frontier URL normalizer, but scheme-preserving rather than https-upgrading:
// spec.md section 4.5 step 1 calls for "canonicalize scheme to lowercase",
// not a protocol upgrade.
package urlnorm

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/publicsuffix"
)

var (
	// ErrEmpty is returned for an empty input string.
	ErrEmpty = errors.New("normalize url: empty input")
	// ErrUnsupportedScheme is returned for anything but http/https.
	ErrUnsupportedScheme = errors.New("normalize url: scheme must be http or https")
	// ErrNoHost is returned when the URL has no host component.
	ErrNoHost = errors.New("normalize url: missing host")
)

var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

// Normalize applies the deterministic transformations required by
// spec.md section 4.5 step 1: lowercase the scheme, remove default ports,
// strip a trailing slash from a bare-authority path, drop the fragment,
// and percent-decode unreserved characters. It does not touch the query
// string — the spec does not ask for query canonicalization, unlike the
// teacher's tracking-parameter stripping, which belongs to a different
// product than a politeness scheduler.
func Normalize(raw string) (string, error) {
	if raw == "" {
		return "", ErrEmpty
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("normalize url: %w", err)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", ErrUnsupportedScheme
	}
	if u.Host == "" {
		return "", ErrNoHost
	}

	u.Scheme = scheme
	u.Host = stripDefaultPort(scheme, strings.ToLower(u.Host))
	u.Fragment = ""
	u.RawFragment = ""
	// url.Parse has already decoded u.Path, so the escapes to keep or
	// decode are only visible in the escaped form.
	rawPath := decodeUnreservedPath(u.EscapedPath())
	if u.Path, err = url.PathUnescape(rawPath); err != nil {
		return "", fmt.Errorf("normalize url: %w", err)
	}
	u.RawPath = rawPath

	// A bare authority ("http://a.example/") normalizes to no path at all,
	// matching "http://a.example". Deeper paths keep any trailing slash —
	// only the bare-authority case is specified as strippable.
	if u.Path == "/" {
		u.Path, u.RawPath = "", ""
	}

	return u.String(), nil
}

// stripDefaultPort removes ":80" from http hosts and ":443" from https hosts.
func stripDefaultPort(scheme, host string) string {
	i := strings.LastIndex(host, ":")
	if i < 0 {
		return host
	}

	hostname, port := host[:i], host[i+1:]
	if defaultPorts[scheme] == port {
		return hostname
	}

	return host
}

// decodeUnreservedPath percent-decodes path segments that only encode
// RFC 3986 unreserved characters, and cleans "." / ".." segments, leaving
// reserved/escaped characters (notably "%2F") untouched.
func decodeUnreservedPath(p string) string {
	if p == "" {
		return ""
	}

	segments := strings.Split(p, "/")
	for i, seg := range segments {
		segments[i] = decodeUnreservedSegment(seg)
	}
	decoded := strings.Join(segments, "/")

	cleaned := path.Clean(decoded)
	if cleaned == "." {
		return ""
	}

	// path.Clean drops a trailing slash on multi-segment paths; spec.md
	// only asks to strip the trailing slash of a *bare authority* path,
	// so restore it here for anything deeper than "/".
	if cleaned != "/" && strings.HasSuffix(decoded, "/") && !strings.HasSuffix(cleaned, "/") {
		cleaned += "/"
	}

	return cleaned
}

func decodeUnreservedSegment(seg string) string {
	var b strings.Builder
	b.Grow(len(seg))

	for i := 0; i < len(seg); i++ {
		if seg[i] == '%' && i+2 < len(seg) {
			if decoded, ok := decodeHexUnreserved(seg[i+1], seg[i+2]); ok {
				b.WriteByte(decoded)
				i += 2
				continue
			}
		}
		b.WriteByte(seg[i])
	}

	return b.String()
}

// decodeHexUnreserved decodes a %XX triplet only if the resulting byte is
// an RFC 3986 unreserved character (ALPHA / DIGIT / "-" "." "_" "~").
func decodeHexUnreserved(hi, lo byte) (byte, bool) {
	h, ok1 := hexVal(hi)
	l, ok2 := hexVal(lo)
	if !ok1 || !ok2 {
		return 0, false
	}

	v := byte(h<<4 | l)
	if isUnreserved(v) {
		return v, true
	}

	return 0, false
}

func hexVal(c byte) (int, bool) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), true
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10, true
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10, true
	default:
		return 0, false
	}
}

func isUnreserved(b byte) bool {
	switch {
	case b >= 'A' && b <= 'Z', b >= 'a' && b <= 'z', b >= '0' && b <= '9':
		return true
	case b == '-' || b == '.' || b == '_' || b == '~':
		return true
	default:
		return false
	}
}

// RegistrableDomain returns the public-suffix-aware effective domain used
// as the politeness unit (e.g. "foo.co.uk", not "a.b.foo.co.uk"). Returns
// an error for hosts with no label left above their public suffix, such as
// single-label hosts ("localhost"). Hosts under a suffix missing from the
// public-suffix list and IP addresses are not rejected: their last two
// labels are returned ("a.example", and "0.1" for 127.0.0.1).
func RegistrableDomain(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("registrable domain: %w", err)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", ErrNoHost
	}

	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return "", fmt.Errorf("registrable domain: %w", err)
	}

	return domain, nil
}
