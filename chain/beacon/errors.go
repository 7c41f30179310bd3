package beacon

import (
	"fmt"
	"strings"

	"go.uber.org/multierr"
	"golang.org/x/xerrors"
)

// Chain info errors.
var (
	ErrUntrustedChain     = xerrors.New("untrusted chain")
	ErrMalformedChainInfo = xerrors.New("malformed chain info")
	ErrTransport          = xerrors.New("transport failure")
)

// Fetch errors.
var (
	ErrAllEndpointsFailed   = xerrors.New("all endpoints failed")
	ErrRoundNotYetAvailable = xerrors.New("round not yet available")
	ErrInvalidRound         = xerrors.New("invalid round")
	ErrMalformedBeacon      = xerrors.New("malformed beacon")
	ErrUnexpectedRound      = xerrors.New("endpoint returned a different round")
)

// Verification failures.
var (
	ErrPairingMismatch          = xerrors.New("pairing mismatch")
	ErrRandomnessMismatch       = xerrors.New("randomness mismatch")
	ErrMissingPreviousSignature = xerrors.New("missing previous signature")
)

// VerificationError lists every check a beacon failed. It matches each of its reasons
// with errors.Is.
type VerificationError struct {
	Round uint64
	err   error
}

func newVerificationError(round uint64, reasons error) error {
	if reasons == nil {
		return nil
	}
	return &VerificationError{Round: round, err: reasons}
}

func (e *VerificationError) Reasons() []error {
	return multierr.Errors(e.err)
}

func (e *VerificationError) Error() string {
	reasons := e.Reasons()
	msgs := make([]string, len(reasons))
	for i, r := range reasons {
		msgs[i] = r.Error()
	}
	return fmt.Sprintf("beacon round %d failed verification: %s", e.Round, strings.Join(msgs, "; "))
}

func (e *VerificationError) Unwrap() []error {
	return e.Reasons()
}

// Is matches any of the reasons, also for xerrors.Is which only follows single chains.
func (e *VerificationError) Is(target error) bool {
	for _, r := range e.Reasons() {
		if xerrors.Is(r, target) {
			return true
		}
	}
	return false
}

// EndpointError is the reason a single endpoint could not serve a request.
type EndpointError struct {
	URL string
	Err error
}

func (e *EndpointError) Error() string {
	return fmt.Sprintf("%s: %s", e.URL, e.Err)
}

func (e *EndpointError) Unwrap() error {
	return e.Err
}

// AllEndpointsFailedError holds one failure per endpoint, in the order the endpoints
// were tried.
type AllEndpointsFailedError struct {
	Failures []*EndpointError
}

func (e *AllEndpointsFailedError) Error() string {
	var sb strings.Builder
	sb.WriteString(ErrAllEndpointsFailed.Error())
	for i, f := range e.Failures {
		if i == 0 {
			sb.WriteString(": ")
		} else {
			sb.WriteString("; ")
		}
		sb.WriteString(f.Error())
	}
	return sb.String()
}

func (e *AllEndpointsFailedError) Unwrap() []error {
	out := make([]error, 0, len(e.Failures)+1)
	out = append(out, ErrAllEndpointsFailed)
	for _, f := range e.Failures {
		out = append(out, f)
	}
	return out
}

func (e *AllEndpointsFailedError) Is(target error) bool {
	if target == ErrAllEndpointsFailed {
		return true
	}
	for _, f := range e.Failures {
		if xerrors.Is(f, target) {
			return true
		}
	}
	return false
}
