package mediaproxy

import (
	"errors"
	"net/url"
	"path"
	"strings"

	"github.com/grafov/m3u8"
)

// DefaultContentType is used when the upstream does not send one.
const DefaultContentType = "application/vnd.apple.mpegurl"

var ErrNoTarget = errors.New("proxy url has no target")

// Rewrite replaces every relative reference line of an HLS manifest with a proxy
// reference carrying the absolute URL. Directive and blank lines, and lines that
// are already absolute, are returned byte for byte.
func Rewrite(body, target, prefix string) string {
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		eol := ""
		if strings.HasSuffix(line, "\r") {
			eol = "\r"
		}
		ref := strings.TrimSpace(line)
		if ref == "" || strings.HasPrefix(ref, "#") || isAbsolute(ref) {
			continue
		}
		lines[i] = ProxyURL(prefix, ResolveReference(target, ref)) + eol
	}
	return strings.Join(lines, "\n")
}

// BasePath returns the target URL truncated after its last "/", ignoring any
// query string or fragment.
func BasePath(target string) string {
	clean := target
	if i := strings.IndexAny(clean, "?#"); i >= 0 {
		clean = clean[:i]
	}
	if i := strings.LastIndex(clean, "/"); i >= 0 {
		return clean[:i+1]
	}
	return clean + "/"
}

// Resolve joins a relative manifest reference onto a base path. Root relative
// references ("/seg.ts") resolve against the origin of the base.
func Resolve(base, ref string) string {
	if strings.HasPrefix(ref, "/") && !strings.HasPrefix(ref, "//") {
		if u, err := url.Parse(base); err == nil && u.Host != "" {
			return u.Scheme + "://" + u.Host + ref
		}
	}
	return base + ref
}

// ResolveReference returns ref as an absolute URL relative to the manifest at
// target. Absolute references are returned unchanged.
func ResolveReference(target, ref string) string {
	if isAbsolute(ref) {
		return ref
	}
	return Resolve(BasePath(target), ref)
}

// ProxyURL wraps target in a same-origin proxy reference.
func ProxyURL(prefix, target string) string {
	return prefix + "?url=" + url.QueryEscape(target)
}

// TargetFromProxyURL recovers the absolute target from a proxy reference.
func TargetFromProxyURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	target := u.Query().Get("url")
	if target == "" {
		return "", ErrNoTarget
	}
	return target, nil
}

// IsManifest reports whether a response should be treated as an HLS playlist.
func IsManifest(contentType, target string) bool {
	if strings.Contains(strings.ToLower(contentType), "mpegurl") {
		return true
	}
	p := target
	if u, err := url.Parse(target); err == nil {
		p = u.Path
	}
	return strings.EqualFold(path.Ext(p), ".m3u8")
}

// ValidTarget accepts absolute http and https URLs only.
func ValidTarget(target string) bool {
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

func isAbsolute(ref string) bool {
	lower := strings.ToLower(ref)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// PlaylistKind decodes body and returns "master", "media" or "unknown".
// Only used for logging; rewriting never depends on it.
func PlaylistKind(body string) string {
	_, listType, err := m3u8.DecodeFrom(strings.NewReader(body), false)
	if err != nil {
		return "unknown"
	}
	switch listType {
	case m3u8.MASTER:
		return "master"
	case m3u8.MEDIA:
		return "media"
	default:
		return "unknown"
	}
}
