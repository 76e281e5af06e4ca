// Package xcallback builds and parses x-callback-url requests.
//
// The x-callback-url convention (http://x-callback-url.com) lets one
// application invoke an action in another through a URL of the shape
//
//	scheme://x-callback-url/action?key=value&...&x-success=...&x-error=...&x-cancel=...
//
// where the x-* parameters carry URLs the target application opens to
// report success, an error, or user cancellation. This package owns the
// request model: validated scheme/action identifiers, an ordered
// parameter list, canonical URL assembly, and decoding of inbound
// callback URLs back into outcomes.
package xcallback

import (
	"net/url"
	"strings"
)

// CallbackHost is the fixed host segment of every x-callback-url.
const CallbackHost = "x-callback-url"

// Reserved parameter keys, synthesized by the request builder and never
// accepted from user input.
const (
	ParamKeySource  = "x-source"
	ParamKeySuccess = "x-success"
	ParamKeyError   = "x-error"
	ParamKeyCancel  = "x-cancel"
)

// Relative paths of the three callback endpoints this tool registers.
const (
	PathSuccess = "success"
	PathError   = "error"
	PathCancel  = "cancel"
)

// TokenKey is the query key carrying the correlation token in callback URLs.
const TokenKey = "token"

// SourceName identifies this tool in the x-source parameter.
const SourceName = "callback"

// Param is a single key/value request parameter. Values are opaque byte
// sequences; no semantic interpretation is performed.
type Param struct {
	Key   string `cbor:"1,keyasint"`
	Value string `cbor:"2,keyasint"`
}

// Request is an immutable x-callback-url request: one scheme, one
// action, and an ordered sequence of user parameters. Construct with
// NewRequest; the callback parameters are injected by BuildURL and are
// never part of the user parameter list.
type Request struct {
	scheme string
	action string
	params []Param
}

// NewRequest validates the identifiers and assembles a request. The
// params slice must already have passed ParseParams (or equivalent
// reserved-key and duplicate-key checks).
func NewRequest(scheme, action string, params []Param) (*Request, error) {
	if scheme == "" {
		return nil, &ParamError{Kind: ParamErrMissingScheme}
	}
	if !validScheme(scheme) {
		return nil, &ParamError{Kind: ParamErrInvalidScheme, Token: scheme}
	}
	if action == "" {
		return nil, &ParamError{Kind: ParamErrMissingAction}
	}
	if !validAction(action) {
		return nil, &ParamError{Kind: ParamErrInvalidAction, Token: action}
	}
	r := &Request{scheme: scheme, action: action}
	r.params = append(r.params, params...)
	return r, nil
}

// Scheme returns the target application's URL scheme.
func (r *Request) Scheme() string { return r.scheme }

// Action returns the action name.
func (r *Request) Action() string { return r.action }

// Params returns a copy of the ordered user parameters.
func (r *Request) Params() []Param {
	out := make([]Param, len(r.params))
	copy(out, r.params)
	return out
}

// BuildURL assembles the canonical request URL. User parameters appear
// first, in input order, followed by x-source and the three callback
// URLs pointing at listenerScheme with the correlation token embedded.
// Pure: no I/O, no side effects.
func (r *Request) BuildURL(token, listenerScheme string) string {
	success, errURL, cancel := CallbackTargets(listenerScheme, token)

	pairs := make([]Param, 0, len(r.params)+4)
	pairs = append(pairs, r.params...)
	pairs = append(pairs,
		Param{Key: ParamKeySource, Value: SourceName},
		Param{Key: ParamKeySuccess, Value: success},
		Param{Key: ParamKeyError, Value: errURL},
		Param{Key: ParamKeyCancel, Value: cancel},
	)

	var b strings.Builder
	b.WriteString(r.scheme)
	b.WriteString("://")
	b.WriteString(CallbackHost)
	b.WriteString("/")
	b.WriteString(r.action)
	b.WriteString("?")
	b.WriteString(encodeQuery(pairs))
	return b.String()
}

// CallbackTargets returns the success, error, and cancel URLs the
// request builder embeds for a given listener scheme and token.
func CallbackTargets(listenerScheme, token string) (success, errURL, cancel string) {
	base := listenerScheme + "://" + CallbackHost + "/"
	q := "?" + TokenKey + "=" + queryEscape(token)
	return base + PathSuccess + q, base + PathError + q, base + PathCancel + q
}

// encodeQuery serializes ordered pairs as a query string. Spaces become
// %20, not +, so the result is valid in both query and fragment
// positions and round-trips through url.QueryUnescape.
func encodeQuery(pairs []Param) string {
	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(queryEscape(p.Key))
		b.WriteByte('=')
		b.WriteString(queryEscape(p.Value))
	}
	return b.String()
}

func queryEscape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// parseQueryOrdered decodes a raw query string preserving pair order.
// Empty segments are skipped; a segment without '=' decodes to a pair
// with an empty value, matching how target apps emit flag-style params.
func parseQueryOrdered(raw string) ([]Param, error) {
	if raw == "" {
		return nil, nil
	}
	var pairs []Param
	for _, seg := range strings.Split(raw, "&") {
		if seg == "" {
			continue
		}
		k, v, _ := strings.Cut(seg, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			return nil, err
		}
		value, err := url.QueryUnescape(v)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, Param{Key: key, Value: value})
	}
	return pairs, nil
}

// validScheme reports whether s is a legal URL scheme per RFC 3986:
// a letter followed by letters, digits, '+', '-', or '.'.
func validScheme(s string) bool {
	for i, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case i > 0 && (c >= '0' && c <= '9' || c == '+' || c == '-' || c == '.'):
		default:
			return false
		}
	}
	return true
}

// validAction reports whether s is safe as a single path segment
// without escaping: letters, digits, and the unreserved marks.
func validAction(s string) bool {
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-' || c == '.' || c == '_' || c == '~':
		default:
			return false
		}
	}
	return true
}
