// Package cimtest provides an in-memory cim.Dialer for tests.
package cimtest

import (
	"context"
	"fmt"
	"iter"
	"regexp"
	"strings"
	"sync"

	"github.com/nhdewitt/uwfmon/internal/cim"
)

var selectPattern = regexp.MustCompile(`(?i)^\s*select\s+\*\s+from\s+(\w+)(?:\s+where\s+(\w+)\s*=\s*'([^']*)')?\s*$`)

// P builds a property.
func P(name string, value any) cim.Property {
	return cim.Property{Name: name, Value: value}
}

// Object builds an instance of class. The path defaults to the class name.
func Object(class string, props ...cim.Property) cim.Instance {
	return cim.Instance{ClassName: class, Path: class, Properties: props}
}

// Query records one QueryInstances or EnumerateInstances call.
type Query struct {
	Namespace string
	Text      string
}

// Invocation records one InvokeMethod call.
type Invocation struct {
	Namespace string
	Path      string
	Method    string
}

// Host is the scripted state of one fake machine.
type Host struct {
	// Unreachable makes TestConnection report false.
	Unreachable bool
	// DialErr is returned from Dial.
	DialErr error
	// Classes holds the instances of each class in source order. A class that
	// is missing from the map fails queries with InvalidClass.
	Classes map[string][]cim.Instance
	// Namespaces pins a class to one namespace; asking for it anywhere else
	// fails with InvalidNamespace. Classes without an entry answer in any namespace.
	Namespaces map[string]string
	// QueryErr fails every query against the named class.
	QueryErr map[string]error
	// FailAfter fails a class query with FailErr after that many instances.
	FailAfter map[string]int
	FailErr   error
	// BeforeYield runs before each instance of a class is handed out.
	BeforeYield func(class string, index int)

	// InvokeErr is returned from every method invocation.
	InvokeErr error
	// InvokeBlock, when set, holds every invocation until it is closed.
	// Like a real provider call it ignores the context.
	InvokeBlock chan struct{}

	mu          sync.Mutex
	queries     []Query
	invocations []Invocation
}

// Queries returns the queries run against h so far.
func (h *Host) Queries() []Query {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Query(nil), h.queries...)
}

func (h *Host) record(namespace, text string) {
	h.mu.Lock()
	h.queries = append(h.queries, Query{Namespace: namespace, Text: text})
	h.mu.Unlock()
}

// checkNamespace fails when class is pinned to a namespace other than namespace.
func (h *Host) checkNamespace(op, namespace, class string) error {
	for name, ns := range h.Namespaces {
		if strings.EqualFold(name, class) && !strings.EqualFold(ns, namespace) {
			return cim.NewManagementError(op, 0x8004100E, "Invalid namespace")
		}
	}
	return nil
}

// Invocations returns the methods invoked on h so far.
func (h *Host) Invocations() []Invocation {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Invocation(nil), h.invocations...)
}

func (h *Host) lookupClass(name string) ([]cim.Instance, bool) {
	for class, instances := range h.Classes {
		if strings.EqualFold(class, name) {
			return instances, true
		}
	}
	return nil, false
}

func (h *Host) queryErr(class string) error {
	for name, err := range h.QueryErr {
		if strings.EqualFold(name, class) {
			return err
		}
	}
	return nil
}

// Dialer is a cim.Dialer over a set of fake hosts. Unknown hosts dial
// successfully but fail the connection test.
type Dialer struct {
	mu    sync.Mutex
	hosts map[string]*Host
	open  int
	dials int
	last  cim.SessionOptions
}

func NewDialer() *Dialer {
	return &Dialer{hosts: make(map[string]*Host)}
}

// AddHost registers h under name and returns it. The empty name is the local machine.
func (d *Dialer) AddHost(name string, h *Host) *Host {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hosts[strings.ToLower(name)] = h
	return h
}

// OpenSessions returns how many dialed sessions have not been closed.
func (d *Dialer) OpenSessions() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

// Dials returns how many sessions were dialed.
func (d *Dialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// LastOptions returns the options of the most recent dial.
func (d *Dialer) LastOptions() cim.SessionOptions {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

func (d *Dialer) Dial(ctx context.Context, host string, opts cim.SessionOptions) (cim.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	h, ok := d.hosts[strings.ToLower(host)]
	if !ok {
		h = &Host{Unreachable: true}
	}
	if h.DialErr != nil {
		return nil, h.DialErr
	}

	d.dials++
	d.open++
	d.last = opts
	return &session{dialer: d, host: h}, nil
}

type session struct {
	dialer *Dialer
	host   *Host

	mu     sync.Mutex
	closed bool
}

func (s *session) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("cimtest: session used after close")
	}
	return nil
}

func (s *session) TestConnection(ctx context.Context) bool {
	return ctx.Err() == nil && !s.host.Unreachable
}

func (s *session) QueryInstances(ctx context.Context, namespace, dialect, query string) iter.Seq2[cim.Instance, error] {
	return func(yield func(cim.Instance, error) bool) {
		if err := s.checkOpen(); err != nil {
			yield(cim.Instance{}, err)
			return
		}
		s.host.record(namespace, query)
		if !strings.EqualFold(dialect, cim.DialectWQL) {
			yield(cim.Instance{}, cim.NewManagementError("ExecQuery", 0x80041018, "Invalid query type"))
			return
		}

		m := selectPattern.FindStringSubmatch(query)
		if m == nil {
			yield(cim.Instance{}, cim.NewManagementError("ExecQuery", 0x80041017, "Invalid query"))
			return
		}
		class, prop, want := m[1], m[2], m[3]

		if err := s.host.checkNamespace("ExecQuery", namespace, class); err != nil {
			yield(cim.Instance{}, err)
			return
		}
		if err := s.host.queryErr(class); err != nil {
			yield(cim.Instance{}, err)
			return
		}
		instances, ok := s.host.lookupClass(class)
		if !ok {
			yield(cim.Instance{}, cim.NewManagementError("ExecQuery", 0x80041010, "Invalid class"))
			return
		}

		failAfter, fail := -1, false
		if n, ok := s.host.FailAfter[class]; ok {
			failAfter, fail = n, true
		}

		index := 0
		for _, inst := range instances {
			if prop != "" {
				v, ok := inst.Lookup(prop)
				if !ok || !strings.EqualFold(fmt.Sprint(v), want) {
					continue
				}
			}
			if fail && index == failAfter {
				yield(cim.Instance{}, s.host.FailErr)
				return
			}
			if err := ctx.Err(); err != nil {
				yield(cim.Instance{}, err)
				return
			}
			if s.host.BeforeYield != nil {
				s.host.BeforeYield(class, index)
			}
			if !yield(inst, nil) {
				return
			}
			index++
		}
		if fail && index == failAfter {
			yield(cim.Instance{}, s.host.FailErr)
		}
	}
}

func (s *session) EnumerateInstances(ctx context.Context, namespace, className string) ([]cim.Instance, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.host.record(namespace, className)
	if err := s.host.checkNamespace("InstancesOf", namespace, className); err != nil {
		return nil, err
	}
	if err := s.host.queryErr(className); err != nil {
		return nil, err
	}
	instances, ok := s.host.lookupClass(className)
	if !ok {
		return nil, cim.NewManagementError("InstancesOf", 0x80041010, "Invalid class")
	}
	return append([]cim.Instance(nil), instances...), nil
}

func (s *session) InvokeMethod(ctx context.Context, namespace string, instance cim.Instance, method string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	s.host.mu.Lock()
	s.host.invocations = append(s.host.invocations, Invocation{
		Namespace: namespace,
		Path:      instance.Path,
		Method:    method,
	})
	s.host.mu.Unlock()

	if s.host.InvokeBlock != nil {
		<-s.host.InvokeBlock
	}
	return s.host.InvokeErr
}

func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	s.dialer.mu.Lock()
	s.dialer.open--
	s.dialer.mu.Unlock()
	return nil
}
