//go:build !windows

package cim

import "context"

type unsupportedDialer struct{}

// NewDialer returns a dialer that always fails; WMI only exists on Windows.
func NewDialer() Dialer {
	return unsupportedDialer{}
}

func (unsupportedDialer) Dial(_ context.Context, _ string, _ SessionOptions) (Session, error) {
	return nil, ErrUnsupportedPlatform
}
