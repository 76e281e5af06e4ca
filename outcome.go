package xcallback

import (
	"fmt"
	"net/url"
)

// Status is the kind of outcome a target application reported.
type Status int

const (
	StatusSuccess Status = iota
	StatusError
	StatusCancel
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	case StatusCancel:
		return "cancel"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// Sentinels used when an error callback omits errorCode or errorMessage.
// Producers vary in which fields they send; absence is never a failure.
const (
	UnknownErrorCode    = "unknown"
	UnknownErrorMessage = "unknown error"
)

// TimeoutErrorCode is the Outcome code reported when no callback
// arrives before the configured deadline.
const TimeoutErrorCode = "timeout"

// Outcome is the resolved result of one request. Exactly one Outcome is
// produced per correlation token. The cbor tags use integer keys so the
// durable registry encoding stays compact and stable.
type Outcome struct {
	Status  Status  `cbor:"1,keyasint"`
	Params  []Param `cbor:"2,keyasint,omitempty"`
	Code    string  `cbor:"3,keyasint,omitempty"`
	Message string  `cbor:"4,keyasint,omitempty"`
}

// SuccessOutcome builds a success outcome carrying the target's result
// parameters in delivery order.
func SuccessOutcome(params []Param) Outcome {
	return Outcome{Status: StatusSuccess, Params: params}
}

// ErrorOutcome builds an error outcome. Empty code or message fall back
// to the unknown sentinels.
func ErrorOutcome(code, message string) Outcome {
	if code == "" {
		code = UnknownErrorCode
	}
	if message == "" {
		message = UnknownErrorMessage
	}
	return Outcome{Status: StatusError, Code: code, Message: message}
}

// CancelOutcome builds a cancellation outcome.
func CancelOutcome() Outcome {
	return Outcome{Status: StatusCancel}
}

// TimeoutOutcome is the designed outcome for a token that expired with
// no callback, distinguishable from a target-reported error by its code.
func TimeoutOutcome(waited string) Outcome {
	return Outcome{
		Status:  StatusError,
		Code:    TimeoutErrorCode,
		Message: fmt.Sprintf("no callback received within %s", waited),
	}
}

// IsTimeout reports whether the outcome is the expiry sentinel.
func (o Outcome) IsTimeout() bool {
	return o.Status == StatusError && o.Code == TimeoutErrorCode
}

// InboundErrorKind classifies rejected inbound callback URLs.
type InboundErrorKind int

const (
	InboundErrMalformed InboundErrorKind = iota
	InboundErrWrongScheme
	InboundErrWrongHost
	InboundErrUnknownPath
	InboundErrMissingToken
)

// InboundError reports an inbound URL this listener cannot accept.
// These are logged and discarded by the receiver, never fatal: the
// process cannot control what external callers send it.
type InboundError struct {
	Kind InboundErrorKind
	URL  string
	Err  error
}

func (e *InboundError) Error() string {
	switch e.Kind {
	case InboundErrMalformed:
		return fmt.Sprintf("malformed callback URL %q: %v", e.URL, e.Err)
	case InboundErrWrongScheme:
		return fmt.Sprintf("callback URL %q does not use the listener scheme", e.URL)
	case InboundErrWrongHost:
		return fmt.Sprintf("callback URL %q: host must be %q", e.URL, CallbackHost)
	case InboundErrUnknownPath:
		return fmt.Sprintf("callback URL %q: path must be success, error, or cancel", e.URL)
	case InboundErrMissingToken:
		return fmt.Sprintf("callback URL %q carries no token", e.URL)
	default:
		return fmt.Sprintf("invalid callback URL %q", e.URL)
	}
}

func (e *InboundError) Unwrap() error { return e.Err }

// Error callback parameter names, per the x-callback-url convention.
const (
	errorCodeKey    = "errorCode"
	errorMessageKey = "errorMessage"
)

// ParseInbound decodes an inbound callback URL of the shape
//
//	listenerScheme://x-callback-url/{success|error|cancel}?token=<t>&...
//
// into the correlation token and the outcome it resolves. Percent
// decoding inverts the encoding applied by BuildURL. Result parameters
// other than token (and, for errors, errorCode/errorMessage) are
// preserved in order.
func ParseInbound(rawURL, listenerScheme string) (token string, out Outcome, err error) {
	u, perr := url.Parse(rawURL)
	if perr != nil {
		return "", Outcome{}, &InboundError{Kind: InboundErrMalformed, URL: rawURL, Err: perr}
	}
	if u.Scheme != listenerScheme {
		return "", Outcome{}, &InboundError{Kind: InboundErrWrongScheme, URL: rawURL}
	}
	if u.Host != CallbackHost {
		return "", Outcome{}, &InboundError{Kind: InboundErrWrongHost, URL: rawURL}
	}

	var status Status
	switch u.Path {
	case "/" + PathSuccess:
		status = StatusSuccess
	case "/" + PathError:
		status = StatusError
	case "/" + PathCancel:
		status = StatusCancel
	default:
		return "", Outcome{}, &InboundError{Kind: InboundErrUnknownPath, URL: rawURL}
	}

	pairs, perr := parseQueryOrdered(u.RawQuery)
	if perr != nil {
		return "", Outcome{}, &InboundError{Kind: InboundErrMalformed, URL: rawURL, Err: perr}
	}

	var code, message string
	var params []Param
	for _, p := range pairs {
		switch p.Key {
		case TokenKey:
			if token == "" {
				token = p.Value
			}
		case errorCodeKey:
			if status == StatusError {
				code = p.Value
				continue
			}
			params = append(params, p)
		case errorMessageKey:
			if status == StatusError {
				message = p.Value
				continue
			}
			params = append(params, p)
		default:
			params = append(params, p)
		}
	}
	if token == "" {
		return "", Outcome{}, &InboundError{Kind: InboundErrMissingToken, URL: rawURL}
	}

	switch status {
	case StatusSuccess:
		out = SuccessOutcome(params)
	case StatusError:
		out = ErrorOutcome(code, message)
		out.Params = params
	case StatusCancel:
		out = CancelOutcome()
	}
	return token, out, nil
}
