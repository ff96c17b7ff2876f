package uwf

import (
	"strconv"
	"strings"
	"sync/atomic"
)

// ErrorCode classifies the outcome of a call. Several flags may be set at once.
type ErrorCode uint16

const (
	None                 ErrorCode = 0x0
	ErrorOccurred        ErrorCode = 0x1
	DataAvailable        ErrorCode = 0x2
	NoDataAvailable      ErrorCode = 0x4
	ConnectionTestFailed ErrorCode = 0x8
	OperationCancelled   ErrorCode = 0x10
	ExceptionManagement  ErrorCode = 0x40
	ExceptionGeneric     ErrorCode = 0x80
)

var codeNames = []struct {
	code ErrorCode
	name string
}{
	{ErrorOccurred, "error-occurred"},
	{DataAvailable, "data-available"},
	{NoDataAvailable, "no-data-available"},
	{ConnectionTestFailed, "connection-test-failed"},
	{OperationCancelled, "operation-cancelled"},
	{ExceptionManagement, "exception-management"},
	{ExceptionGeneric, "exception-generic"},
}

// Has reports whether every flag of flag is set in c.
func (c ErrorCode) Has(flag ErrorCode) bool {
	return flag != None && c&flag == flag
}

// Failed reports whether c describes any failure.
func (c ErrorCode) Failed() bool {
	return c&(ErrorOccurred|ConnectionTestFailed|OperationCancelled|ExceptionManagement|ExceptionGeneric) != 0
}

func (c ErrorCode) String() string {
	if c == None {
		return "none"
	}
	var parts []string
	rest := c
	for _, n := range codeNames {
		if c&n.code != 0 {
			parts = append(parts, n.name)
			rest &^= n.code
		}
	}
	if rest != 0 {
		parts = append(parts, "0x"+strconv.FormatUint(uint64(rest), 16))
	}
	return strings.Join(parts, "|")
}

// LastError records the most recent code reported by a client. It is advisory;
// every call also returns its own code.
type LastError struct {
	v atomic.Uint32
}

func (l *LastError) Load() ErrorCode {
	return ErrorCode(l.v.Load())
}

func (l *LastError) Store(code ErrorCode) {
	l.v.Store(uint32(code))
}

// Merge ORs code into the recorded value.
func (l *LastError) Merge(code ErrorCode) {
	l.v.Or(uint32(code))
}
