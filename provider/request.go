package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/jrsteele09/go-school-session/accounts"
	apperrors "github.com/jrsteele09/go-school-session/internal/errors"
	"github.com/pkg/errors"
)

// Status is the canonical result of a data request.
type Status string

const (
	StatusOK             Status = "OK"
	StatusAuthExpired    Status = "AUTH_EXPIRED"
	StatusDenied         Status = "DENIED"
	StatusNotFound       Status = "NOT_FOUND"
	StatusTransportError Status = "TRANSPORT_ERROR"
)

const (
	ParamFrom = "from"
	ParamTo   = "to"

	// DateLayout is the layout of date params.
	DateLayout = "2006-01-02"
)

// Params are the feature specific request arguments.
type Params map[string]string

// DateBounded reports whether f takes the from/to params. Other features ignore them.
func DateBounded(f accounts.Feature) bool {
	return f == accounts.FeatureTimetable || f == accounts.FeatureHomework
}

// DateRange returns the from/to params, defaulting to the week starting on now's local day.
// Dates are read in now's location.
func (p Params) DateRange(now time.Time) (time.Time, time.Time, error) {
	y, m, d := now.Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	to := from.AddDate(0, 0, 7)
	var err error
	if v := p[ParamFrom]; v != "" {
		if from, err = time.ParseInLocation(DateLayout, v, now.Location()); err != nil {
			return time.Time{}, time.Time{}, errors.Errorf("[Params.DateRange] invalid %s param %q", ParamFrom, v)
		}
	}
	if v := p[ParamTo]; v != "" {
		if to, err = time.ParseInLocation(DateLayout, v, now.Location()); err != nil {
			return time.Time{}, time.Time{}, errors.Errorf("[Params.DateRange] invalid %s param %q", ParamTo, v)
		}
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, errors.Errorf("[Params.DateRange] %s is before %s", ParamTo, ParamFrom)
	}
	return from, to, nil
}

// Request is the canonical data request.
type Request struct {
	Feature   accounts.Feature
	AccountID string
	Params    Params
}

// Response is the canonical data response.
type Response struct {
	Status  Status
	Payload any

	// Cause keeps the underlying failure for classification and logs. Never shown to users.
	Cause error
	// HTTPStatus is the transport status when the backend speaks HTTP.
	HTTPStatus int
	// ProviderCode is the backend's own result code, when it has one.
	ProviderCode string
}

func OK(payload any) Response {
	return Response{Status: StatusOK, Payload: payload}
}

func Failed(status Status, cause error) Response {
	return Response{Status: status, Cause: cause}
}

// TransportError turns a failed round trip into a Response, keeping context cancellation visible.
func TransportError(ctx context.Context, err error) Response {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Failed(StatusTransportError, ctxErr)
	}
	return Failed(StatusTransportError, err)
}

// Cancelled reports whether resp failed because the caller's context ended.
func (r Response) Cancelled() bool {
	return r.Cause != nil && (errors.Is(r.Cause, context.Canceled) || errors.Is(r.Cause, context.DeadlineExceeded))
}

// Err maps the status onto the error taxonomy.
func (r Response) Err() error {
	var base error
	switch r.Status {
	case StatusOK:
		return nil
	case StatusAuthExpired:
		base = apperrors.ErrSessionExpired
	case StatusDenied:
		base = apperrors.ErrPermissionDenied
	case StatusNotFound:
		base = apperrors.ErrNotFound
	default:
		base = apperrors.ErrTransportFailure
	}
	if r.Cause == nil {
		return base
	}
	// A cause already in the taxonomy, such as the verdict of a failed re-login, wins over the status.
	if apperrors.Classify(r.Cause) != apperrors.KindUnknown {
		return r.Cause
	}
	return fmt.Errorf("%w: %w", base, r.Cause)
}
