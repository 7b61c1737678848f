package urls

import (
	"net/url"
	"strings"
)

// trackingParams are stripped unconditionally from every host.
var trackingParams = map[string]bool{
	"utm_source":   true,
	"utm_medium":   true,
	"utm_campaign": true,
	"utm_term":     true,
	"utm_content":  true,
}

// hostSpecificParams strips an additional parameter name per host.
var hostSpecificParams = map[string]string{
	"youtu.be":         "t",
	"www.youtube.com":  "t",
	"twitter.com":      "s",
}

// Canonicalize normalizes raw into the form used for uniqueness: scheme
// forced to https if absent, authority preserved, and tracking parameters
// stripped while preserving parameter order and bare/empty-valued keys.
func Canonicalize(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if !strings.Contains(s, "://") {
		// without a scheme, url.Parse reads the host as part of the path
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", ErrInvalidURL
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}

	u.RawQuery = filterQuery(u.Host, u.RawQuery)
	return u.String(), nil
}

func filterQuery(host, rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	strip := hostSpecificParams[host]

	pairs := strings.Split(rawQuery, "&")
	kept := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		if pair == "" {
			continue
		}
		key := pair
		hasEquals := false
		if i := strings.IndexByte(pair, '='); i >= 0 {
			key = pair[:i]
			hasEquals = true
		}
		keyDecoded, err := url.QueryUnescape(key)
		if err != nil {
			keyDecoded = key
		}
		if trackingParams[keyDecoded] {
			continue
		}
		if strip != "" && keyDecoded == strip {
			continue
		}
		// An empty value ("key=") is preserved as a bare key, without the
		// trailing '='.
		if hasEquals && pair[len(key)+1:] == "" {
			kept = append(kept, key)
			continue
		}
		kept = append(kept, pair)
	}
	return strings.Join(kept, "&")
}
