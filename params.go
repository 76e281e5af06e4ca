package xcallback

import (
	"fmt"
	"strings"
)

// ParamErrorKind classifies parameter and identifier validation failures.
type ParamErrorKind int

const (
	ParamErrMissingScheme ParamErrorKind = iota
	ParamErrMissingAction
	ParamErrInvalidScheme
	ParamErrInvalidAction
	ParamErrMalformedPair
	ParamErrReservedKey
	ParamErrDuplicateKey
)

// ParamError reports invalid user input. Token is the offending raw
// token or identifier, when there is one.
type ParamError struct {
	Kind  ParamErrorKind
	Token string
}

func (e *ParamError) Error() string {
	switch e.Kind {
	case ParamErrMissingScheme:
		return "scheme must not be empty"
	case ParamErrMissingAction:
		return "action must not be empty"
	case ParamErrInvalidScheme:
		return fmt.Sprintf("invalid scheme %q: must be a letter followed by letters, digits, '+', '-', or '.'", e.Token)
	case ParamErrInvalidAction:
		return fmt.Sprintf("invalid action %q: only letters, digits, '-', '.', '_', and '~' are allowed", e.Token)
	case ParamErrMalformedPair:
		return fmt.Sprintf("invalid parameter %q: expected key=value", e.Token)
	case ParamErrReservedKey:
		return fmt.Sprintf("parameter key %q is reserved and set automatically", e.Token)
	case ParamErrDuplicateKey:
		return fmt.Sprintf("duplicate parameter key %q", e.Token)
	default:
		return fmt.Sprintf("invalid parameter %q", e.Token)
	}
}

// reservedKeys are synthesized by BuildURL; user input naming them is
// rejected so a request can never carry conflicting callback targets.
var reservedKeys = map[string]bool{
	ParamKeySource:  true,
	ParamKeySuccess: true,
	ParamKeyError:   true,
	ParamKeyCancel:  true,
}

// ReservedKey reports whether key is one of the x-* parameters the
// builder injects.
func ReservedKey(key string) bool { return reservedKeys[key] }

// ParseParams converts raw "key=value" tokens into an ordered parameter
// list. The value is everything after the first '=' verbatim, so values
// may themselves contain '='. Tokens without '=' or with an empty key,
// reserved keys, and duplicate keys are rejected; on any error no
// partial result is returned.
func ParseParams(raw []string) ([]Param, error) {
	var params []Param
	seen := make(map[string]bool, len(raw))
	for _, tok := range raw {
		key, value, found := strings.Cut(tok, "=")
		if !found || key == "" {
			return nil, &ParamError{Kind: ParamErrMalformedPair, Token: tok}
		}
		if ReservedKey(key) {
			return nil, &ParamError{Kind: ParamErrReservedKey, Token: key}
		}
		if seen[key] {
			return nil, &ParamError{Kind: ParamErrDuplicateKey, Token: key}
		}
		seen[key] = true
		params = append(params, Param{Key: key, Value: value})
	}
	return params, nil
}
