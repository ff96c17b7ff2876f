package cim

import (
	"errors"
	"fmt"
)

// ErrUnsupportedPlatform is returned by the dialer on hosts without COM/WMI.
var ErrUnsupportedPlatform = errors.New("cim: management sessions require windows")

// NativeCode is the management-layer result code carried by a failing operation.
type NativeCode uint32

const (
	CodeOK                       NativeCode = 0
	CodeFailed                   NativeCode = 1
	CodeAccessDenied             NativeCode = 2
	CodeInvalidNamespace         NativeCode = 3
	CodeInvalidParameter         NativeCode = 4
	CodeInvalidClass             NativeCode = 5
	CodeNotFound                 NativeCode = 6
	CodeNotSupported             NativeCode = 7
	CodeClassHasChildren         NativeCode = 8
	CodeClassHasInstances        NativeCode = 9
	CodeInvalidSuperclass        NativeCode = 10
	CodeAlreadyExists            NativeCode = 11
	CodeNoSuchProperty           NativeCode = 12
	CodeTypeMismatch             NativeCode = 13
	CodeQueryLanguageUnsupported NativeCode = 14
	CodeInvalidQuery             NativeCode = 15
	CodeMethodNotAvailable       NativeCode = 16
	CodeMethodNotFound           NativeCode = 17
	CodeInvalidOperationTimeout  NativeCode = 22
	CodeServerLimitsExceeded     NativeCode = 27
	CodeServerIsShuttingDown     NativeCode = 28
)

var nativeCodeNames = map[NativeCode]string{
	CodeOK:                       "Ok",
	CodeFailed:                   "Failed",
	CodeAccessDenied:             "AccessDenied",
	CodeInvalidNamespace:         "InvalidNamespace",
	CodeInvalidParameter:         "InvalidParameter",
	CodeInvalidClass:             "InvalidClass",
	CodeNotFound:                 "NotFound",
	CodeNotSupported:             "NotSupported",
	CodeClassHasChildren:         "ClassHasChildren",
	CodeClassHasInstances:        "ClassHasInstances",
	CodeInvalidSuperclass:        "InvalidSuperclass",
	CodeAlreadyExists:            "AlreadyExists",
	CodeNoSuchProperty:           "NoSuchProperty",
	CodeTypeMismatch:             "TypeMismatch",
	CodeQueryLanguageUnsupported: "QueryLanguageNotSupported",
	CodeInvalidQuery:             "InvalidQuery",
	CodeMethodNotAvailable:       "MethodNotAvailable",
	CodeMethodNotFound:           "MethodNotFound",
	CodeInvalidOperationTimeout:  "InvalidOperationTimeout",
	CodeServerLimitsExceeded:     "ServerLimitsExceeded",
	CodeServerIsShuttingDown:     "ServerIsShuttingDown",
}

func (c NativeCode) String() string {
	if name, ok := nativeCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("NativeCode(%d)", uint32(c))
}

// WBEM HRESULTs returned by the scripting API.
const (
	hrWbemFailed               uint32 = 0x80041001
	hrWbemNotFound             uint32 = 0x80041002
	hrWbemAccessDenied         uint32 = 0x80041003
	hrWbemTypeMismatch         uint32 = 0x80041005
	hrWbemInvalidParameter     uint32 = 0x80041008
	hrWbemNotSupported         uint32 = 0x8004100C
	hrWbemInvalidNamespace     uint32 = 0x8004100E
	hrWbemInvalidClass         uint32 = 0x80041010
	hrWbemInvalidQuery         uint32 = 0x80041017
	hrWbemInvalidQueryType     uint32 = 0x80041018
	hrWbemAlreadyExists        uint32 = 0x80041019
	hrWbemInvalidMethod        uint32 = 0x8004102E
	hrWbemMethodNotImplemented uint32 = 0x80041055
	hrWbemShuttingDown         uint32 = 0x80041033
	hrWbemQuotaViolation       uint32 = 0x8004106C
	hrAccessDenied             uint32 = 0x80070005
)

// NativeCodeFromHResult maps a WBEM HRESULT to its management-layer result code.
func NativeCodeFromHResult(hr uint32) NativeCode {
	switch hr {
	case 0:
		return CodeOK
	case hrWbemNotFound:
		return CodeNotFound
	case hrWbemAccessDenied, hrAccessDenied:
		return CodeAccessDenied
	case hrWbemTypeMismatch:
		return CodeTypeMismatch
	case hrWbemInvalidParameter:
		return CodeInvalidParameter
	case hrWbemNotSupported:
		return CodeNotSupported
	case hrWbemInvalidNamespace:
		return CodeInvalidNamespace
	case hrWbemInvalidClass:
		return CodeInvalidClass
	case hrWbemInvalidQuery:
		return CodeInvalidQuery
	case hrWbemInvalidQueryType:
		return CodeQueryLanguageUnsupported
	case hrWbemAlreadyExists:
		return CodeAlreadyExists
	case hrWbemInvalidMethod:
		return CodeMethodNotFound
	case hrWbemMethodNotImplemented:
		return CodeMethodNotAvailable
	case hrWbemShuttingDown:
		return CodeServerIsShuttingDown
	case hrWbemQuotaViolation:
		return CodeServerLimitsExceeded
	default:
		return CodeFailed
	}
}

// ManagementError is a failure reported by the management layer itself, as
// opposed to a transport or programming error.
type ManagementError struct {
	Op      string
	Native  NativeCode
	HResult int32
	Message string
	Err     error
}

func (e *ManagementError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s (0x%08X): %s", e.Op, e.Native, uint32(e.HResult), e.Message)
	}
	return fmt.Sprintf("%s (0x%08X): %s", e.Native, uint32(e.HResult), e.Message)
}

func (e *ManagementError) Unwrap() error {
	return e.Err
}

// NewManagementError builds a ManagementError from a raw HRESULT.
func NewManagementError(op string, hr uint32, message string) *ManagementError {
	return &ManagementError{
		Op:      op,
		Native:  NativeCodeFromHResult(hr),
		HResult: int32(hr),
		Message: message,
	}
}
