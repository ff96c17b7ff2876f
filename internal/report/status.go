package report

import (
	"fmt"
	"strconv"

	"github.com/nhdewitt/uwfmon/internal/uwf"
)

// Level is the user-visible classification of a collection.
type Level string

const (
	LevelOK          Level = "ok"
	LevelCancelled   Level = "cancelled"
	LevelUnreachable Level = "unreachable"
	LevelError       Level = "error"
)

type Status struct {
	Level   Level  `json:"level" yaml:"level"`
	Store   string `json:"store,omitempty" yaml:"store,omitempty"`
	HResult string `json:"hresult,omitempty" yaml:"hresult,omitempty"`
	Message string `json:"message" yaml:"message"`
}

// OK reports whether the collection needs no attention.
func (s Status) OK() bool {
	return s.Level == LevelOK
}

// Evaluate classifies a cycle: cancellation first, then connectivity, then the
// first store reporting an error.
func Evaluate(res uwf.CollectResult, stores *uwf.Stores) Status {
	switch {
	case res.Code.Has(uwf.OperationCancelled):
		return Status{Level: LevelCancelled, Message: "collection cancelled"}
	case res.Code.Has(uwf.ConnectionTestFailed):
		return Status{Level: LevelUnreachable, Message: fmt.Sprintf("connection test to %s failed", hostName(res.Host))}
	}

	for _, s := range stores.All() {
		if !s.ErrorOccurred() {
			continue
		}
		d := s.Diagnostics()
		hr := HexCode(s.Get(uwf.KeyHResult))
		return Status{
			Level:   LevelError,
			Store:   s.Schema().Name,
			HResult: hr,
			Message: fmt.Sprintf("%s query failed (%s): %s", s.Schema().Name, hr, d.Message),
		}
	}

	if res.Outcome != uwf.Succeeded {
		msg := res.Outcome.String()
		if res.Err != nil {
			msg = res.Err.Error()
		}
		return Status{Level: LevelError, Message: msg}
	}
	return Status{Level: LevelOK, Message: "ok"}
}

// HexCode renders a signed decimal HRESULT as 0x%08X. Input that is not a
// number is returned unchanged.
func HexCode(decimal string) string {
	n, err := strconv.ParseInt(decimal, 10, 64)
	if err != nil {
		return decimal
	}
	return fmt.Sprintf("0x%08X", uint32(n))
}

func hostName(host string) string {
	if host == "" {
		return "localhost"
	}
	return host
}
