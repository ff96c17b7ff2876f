package uwf

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhdewitt/uwfmon/internal/cim"
)

// ErrConnectionTestFailed is returned when the target host does not answer
// management requests.
var ErrConnectionTestFailed = errors.New("uwf: connection test failed")

const (
	hrAbort int32 = -2147467260 // E_ABORT
	hrFail  int32 = -2147467259 // E_FAIL
)

// QueryError describes a failed class query.
type QueryError struct {
	Query string
	Host  string
	Level int
	Code  ErrorCode
	Err   error
}

func (e *QueryError) Error() string {
	host := e.Host
	if host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("query %q on %s (level %d): %v", e.Query, host, e.Level, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// failure is the classification of one error.
type failure struct {
	code    ErrorCode
	native  string
	hresult int32
	message string
	err     error
}

// classify sorts err into cancellation, management-layer or generic failure.
// A context that has ended always wins over the error's own identity.
func classify(ctx context.Context, err error) failure {
	if ctxErr := ctxError(ctx, err); ctxErr != nil {
		if !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		return failure{
			code:    ErrorOccurred | OperationCancelled,
			native:  NoNativeErrorCode,
			hresult: hrAbort,
			message: err.Error(),
			err:     err,
		}
	}

	var mgmt *cim.ManagementError
	if errors.As(err, &mgmt) {
		return failure{
			code:    ErrorOccurred | ExceptionManagement,
			native:  mgmt.Native.String(),
			hresult: mgmt.HResult,
			message: mgmt.Message,
			err:     err,
		}
	}

	hr := hrFail
	var withHR interface{ HResult() int32 }
	if errors.As(err, &withHR) {
		hr = withHR.HResult()
	}
	return failure{
		code:    ErrorOccurred | ExceptionGeneric,
		native:  NoNativeErrorCode,
		hresult: hr,
		message: err.Error(),
		err:     err,
	}
}

func ctxError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	switch {
	case errors.Is(err, context.Canceled):
		return context.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return context.DeadlineExceeded
	}
	return nil
}
