package extract

import (
	"net/url"
	"strings"
)

// Canonicalize strips the fragment and query string from a URL. The result is
// the identity used for articles everywhere downstream. Canonicalization is
// idempotent; an unparseable URL is returned unchanged.
func Canonicalize(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

// Resolve resolves href against base and returns the absolute URL.
func Resolve(base, href string) (*url.URL, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, err
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return nil, err
	}
	return baseURL.ResolveReference(ref), nil
}

// normalizeHost strips a leading www. so hosts compare equal across the
// bare and www forms of the same site.
func normalizeHost(host string) string {
	return strings.Replace(host, "www.", "", 1)
}

// comparableURL renders a URL as host+path+query with the protocol and www.
// removed, for prefix matching against category URLs and whitelist prefixes.
func comparableURL(u *url.URL) string {
	s := normalizeHost(u.Host) + u.Path
	if u.RawQuery != "" {
		s += "?" + u.RawQuery
	}
	return s
}

// pathSlug returns the trailing path segment, URL-decoded. Empty when the
// path has no segments.
func pathSlug(path string) string {
	trimmed := strings.TrimRight(path, "/")
	idx := strings.LastIndex(trimmed, "/")
	slug := trimmed
	if idx >= 0 {
		slug = trimmed[idx+1:]
	}
	if decoded, err := url.PathUnescape(slug); err == nil {
		return decoded
	}
	return slug
}
