package cim

import (
	"context"
	"iter"
	"strings"
	"time"
)

// DialectWQL is the only query dialect the UWF providers understand.
const DialectWQL = "WQL"

// Property is a single named value read from a management instance.
type Property struct {
	Name  string
	Value any
}

// Instance is one result row of a management class query.
// Properties keep the order the provider returned them in.
type Instance struct {
	ClassName  string
	Path       string
	Properties []Property
}

// Get returns the value of the property with exactly the given name.
func (i Instance) Get(name string) (any, bool) {
	for _, p := range i.Properties {
		if p.Name == name {
			return p.Value, true
		}
	}
	return nil, false
}

// Lookup is Get with case-insensitive name matching.
func (i Instance) Lookup(name string) (any, bool) {
	for _, p := range i.Properties {
		if strings.EqualFold(p.Name, name) {
			return p.Value, true
		}
	}
	return nil, false
}

// SessionOptions configures a management session.
type SessionOptions struct {
	// Timeout bounds every blocking call made through the session.
	Timeout time.Duration
}

// Session is a connection to the management service of one host.
// A Session is owned by the call that dialed it and must be closed by that call.
type Session interface {
	// TestConnection reports whether the host answers management requests.
	TestConnection(ctx context.Context) bool

	// QueryInstances runs query in namespace and yields the results in source order.
	// Breaking out of the loop stops the enumeration and releases its resources.
	QueryInstances(ctx context.Context, namespace, dialect, query string) iter.Seq2[Instance, error]

	// EnumerateInstances returns every instance of className.
	EnumerateInstances(ctx context.Context, namespace, className string) ([]Instance, error)

	// InvokeMethod calls a parameterless method on instance and blocks until the
	// provider reports completion.
	InvokeMethod(ctx context.Context, namespace string, instance Instance, method string) error

	Close() error
}

// Dialer opens sessions. An empty host means the local machine.
type Dialer interface {
	Dial(ctx context.Context, host string, opts SessionOptions) (Session, error)
}

// DialFunc adapts a function to the Dialer interface.
type DialFunc func(ctx context.Context, host string, opts SessionOptions) (Session, error)

func (f DialFunc) Dial(ctx context.Context, host string, opts SessionOptions) (Session, error) {
	return f(ctx, host, opts)
}

// awaitProbe runs probe on its own goroutine and reports its result, or false
// once ctx ends. A probe that is already issued cannot be interrupted: after
// ctx ends it runs to completion in the background and its result is dropped.
// probe must only touch state it owns.
func awaitProbe(ctx context.Context, probe func() bool) bool {
	res := make(chan bool, 1)
	go func() { res <- probe() }()

	select {
	case ok := <-res:
		return ok
	case <-ctx.Done():
		return false
	}
}
