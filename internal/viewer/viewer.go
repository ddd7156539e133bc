// Package viewer resolves the URL the dashboard player should load for a
// channel.
package viewer

import (
	"net/http"
	"strings"

	"backoffice/internal/backend"
	"backoffice/internal/mediaproxy"
)

type Options struct {
	// APIBaseURL prefixes root relative hls_url values.
	APIBaseURL string
	// SecureOrigin is set when the dashboard page itself is served over https.
	SecureOrigin bool
	ProxyPrefix  string
}

// StreamURL prefers media_url, then hls_url. Plain http streams are routed
// through the media proxy when the page is secure, to avoid mixed content.
func StreamURL(ch backend.Channel, opts Options) string {
	src := strings.TrimSpace(ch.MediaURL)
	if src == "" {
		src = strings.TrimSpace(ch.HLSURL)
		if strings.HasPrefix(src, "/") && !strings.HasPrefix(src, "//") {
			src = strings.TrimRight(opts.APIBaseURL, "/") + src
		}
	}
	if src == "" {
		return ""
	}
	if opts.SecureOrigin && strings.HasPrefix(strings.ToLower(src), "http://") {
		prefix := opts.ProxyPrefix
		if prefix == "" {
			prefix = "/proxy-stream"
		}
		return mediaproxy.ProxyURL(prefix, src)
	}
	return src
}

// SecureRequest reports whether r reached us over https, directly or behind a
// TLS terminating proxy.
func SecureRequest(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	proto := r.Header.Get("X-Forwarded-Proto")
	if i := strings.IndexByte(proto, ','); i >= 0 {
		proto = proto[:i]
	}
	return strings.EqualFold(strings.TrimSpace(proto), "https")
}
