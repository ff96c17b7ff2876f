//go:build windows

package cim

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"runtime"
	"strings"
	"syscall"

	ole "github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"
	"github.com/yusufpapurcu/wmi"
)

const (
	// ConnectServer returns within two minutes instead of blocking indefinitely.
	wbemConnectFlagUseMaxWait = 0x80

	// ExecQuery returns a semisynchronous, rewindable object set.
	wbemFlagReturnImmediately = 0x10

	sOK    = 0x0
	sFalse = 0x1

	probeNamespace = `root\cimv2`
)

// Win32_ComputerSystem is loaded by the reachability probe.
type Win32_ComputerSystem struct {
	Name   string
	Domain string
}

type comDialer struct{}

// NewDialer returns the WMI dialer backed by the COM scripting API.
func NewDialer() Dialer {
	return comDialer{}
}

func (comDialer) Dial(ctx context.Context, host string, opts SessionOptions) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	apt, err := newApartment()
	if err != nil {
		return nil, err
	}

	s := &comSession{
		host:     host,
		opts:     opts,
		apt:      apt,
		services: make(map[string]*ole.IDispatch),
	}

	if err := apt.do(ctx, s.createLocator); err != nil {
		apt.close()
		return nil, err
	}
	return s, nil
}

// apartment pins COM work to one OS thread initialized for the multithreaded apartment.
type apartment struct {
	jobs chan func()
	done chan struct{}
}

func newApartment() (*apartment, error) {
	a := &apartment{
		jobs: make(chan func()),
		done: make(chan struct{}),
	}
	ready := make(chan error, 1)
	go a.loop(ready)
	if err := <-ready; err != nil {
		return nil, err
	}
	return a, nil
}

func (a *apartment) loop(ready chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(a.done)

	if err := ole.CoInitializeEx(0, ole.COINIT_MULTITHREADED); err != nil {
		var oleErr *ole.OleError
		if !errors.As(err, &oleErr) || (oleErr.Code() != sOK && oleErr.Code() != sFalse) {
			ready <- fmt.Errorf("CoInitializeEx: %w", err)
			return
		}
	}
	defer ole.CoUninitialize()

	ready <- nil
	for job := range a.jobs {
		job()
	}
}

// do runs fn on the apartment thread. The context is only consulted before fn
// starts: COM calls cannot be interrupted once issued.
func (a *apartment) do(ctx context.Context, fn func() error) error {
	errc := make(chan error, 1)
	select {
	case a.jobs <- func() { errc <- fn() }:
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-errc
}

func (a *apartment) close() {
	close(a.jobs)
	<-a.done
}

type comSession struct {
	host     string
	opts     SessionOptions
	apt      *apartment
	locator  *ole.IDispatch
	services map[string]*ole.IDispatch
	closed   bool
}

func (s *comSession) createLocator() error {
	unknown, err := oleutil.CreateObject("WbemScripting.SWbemLocator")
	if err != nil {
		return wrapOleError("create SWbemLocator", err)
	}
	defer unknown.Release()

	s.locator, err = unknown.QueryInterface(ole.IID_IDispatch)
	if err != nil {
		return wrapOleError("query SWbemLocator", err)
	}
	return nil
}

// server returns the ConnectServer host argument; nil selects the local machine.
func (s *comSession) server() any {
	if s.host == "" {
		return nil
	}
	return s.host
}

// service returns the SWbemServices object for namespace. Apartment thread only.
func (s *comSession) service(namespace string) (*ole.IDispatch, error) {
	key := strings.ToLower(namespace)
	if svc, ok := s.services[key]; ok {
		return svc, nil
	}

	raw, err := oleutil.CallMethod(s.locator, "ConnectServer",
		s.server(), namespace, nil, nil, nil, nil, wbemConnectFlagUseMaxWait)
	if err != nil {
		return nil, wrapOleError("ConnectServer "+namespace, err)
	}

	svc := raw.ToIDispatch()
	s.services[key] = svc
	return svc, nil
}

func (s *comSession) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opts.Timeout)
}

// TestConnection loads Win32_ComputerSystem through the wmi package, which
// opens its own COM connection and offers no cancellation. When the session
// timeout fires first the probe keeps running until the provider answers.
func (s *comSession) TestConnection(ctx context.Context) bool {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	server := s.server()
	return awaitProbe(ctx, func() bool {
		var dst []Win32_ComputerSystem
		client := &wmi.Client{NonePtrZero: true}
		err := client.Query(wmi.CreateQuery(&dst, ""), &dst, server, probeNamespace)
		return err == nil && len(dst) > 0
	})
}

func (s *comSession) QueryInstances(ctx context.Context, namespace, dialect, query string) iter.Seq2[Instance, error] {
	return func(yield func(Instance, error) bool) {
		var set *ole.IDispatch
		var count int

		err := s.apt.do(ctx, func() error {
			svc, err := s.service(namespace)
			if err != nil {
				return err
			}

			raw, err := oleutil.CallMethod(svc, "ExecQuery", query, dialect, wbemFlagReturnImmediately)
			if err != nil {
				return wrapOleError("ExecQuery", err)
			}
			set = raw.ToIDispatch()

			countVar, err := oleutil.GetProperty(set, "Count")
			if err != nil {
				set.Release()
				set = nil
				return wrapOleError("Count", err)
			}
			count = int(countVar.Val)
			return nil
		})
		if err != nil {
			yield(Instance{}, err)
			return
		}
		defer s.release(set)

		for i := range count {
			var inst Instance
			err := s.apt.do(ctx, func() error {
				var err error
				inst, err = readItem(set, i)
				return err
			})
			if !yield(inst, err) || err != nil {
				return
			}
		}
	}
}

func (s *comSession) EnumerateInstances(ctx context.Context, namespace, className string) ([]Instance, error) {
	var out []Instance
	err := s.apt.do(ctx, func() error {
		svc, err := s.service(namespace)
		if err != nil {
			return err
		}

		raw, err := oleutil.CallMethod(svc, "InstancesOf", className)
		if err != nil {
			return wrapOleError("InstancesOf "+className, err)
		}
		set := raw.ToIDispatch()
		defer set.Release()

		return oleutil.ForEach(set, func(v *ole.VARIANT) error {
			defer v.Clear()
			inst, err := readObject(v.ToIDispatch())
			if err != nil {
				return err
			}
			out = append(out, inst)
			return nil
		})
	})
	return out, err
}

func (s *comSession) InvokeMethod(ctx context.Context, namespace string, instance Instance, method string) error {
	return s.apt.do(ctx, func() error {
		svc, err := s.service(namespace)
		if err != nil {
			return err
		}

		raw, err := oleutil.CallMethod(svc, "Get", instance.Path)
		if err != nil {
			return wrapOleError("Get "+instance.Path, err)
		}
		obj := raw.ToIDispatch()
		defer obj.Release()

		ret, err := oleutil.CallMethod(obj, method)
		if err != nil {
			return wrapOleError(method, err)
		}
		defer ret.Clear()

		if rc, ok := ret.Value().(int32); ok && rc != 0 {
			return NewManagementError(method, uint32(rc), fmt.Sprintf("%s returned %d", method, rc))
		}
		return nil
	})
}

func (s *comSession) release(d *ole.IDispatch) {
	_ = s.apt.do(context.Background(), func() error {
		d.Release()
		return nil
	})
}

func (s *comSession) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	_ = s.apt.do(context.Background(), func() error {
		for ns, svc := range s.services {
			svc.Release()
			delete(s.services, ns)
		}
		if s.locator != nil {
			s.locator.Release()
			s.locator = nil
		}
		return nil
	})
	s.apt.close()
	return nil
}

func readItem(set *ole.IDispatch, i int) (Instance, error) {
	raw, err := oleutil.CallMethod(set, "ItemIndex", i)
	if err != nil {
		return Instance{}, wrapOleError("ItemIndex", err)
	}
	item := raw.ToIDispatch()
	defer item.Release()

	return readObject(item)
}

// readObject copies an SWbemObject into an Instance.
func readObject(obj *ole.IDispatch) (Instance, error) {
	var inst Instance

	pathRaw, err := oleutil.GetProperty(obj, "Path_")
	if err != nil {
		return inst, wrapOleError("Path_", err)
	}
	path := pathRaw.ToIDispatch()
	defer path.Release()

	if v, err := oleutil.GetProperty(path, "Class"); err == nil {
		inst.ClassName = v.ToString()
		v.Clear()
	}
	if v, err := oleutil.GetProperty(path, "Path"); err == nil {
		inst.Path = v.ToString()
		v.Clear()
	}

	propsRaw, err := oleutil.GetProperty(obj, "Properties_")
	if err != nil {
		return inst, wrapOleError("Properties_", err)
	}
	props := propsRaw.ToIDispatch()
	defer props.Release()

	err = oleutil.ForEach(props, func(v *ole.VARIANT) error {
		defer v.Clear()
		prop := v.ToIDispatch()

		nameVar, err := oleutil.GetProperty(prop, "Name")
		if err != nil {
			return wrapOleError("Property.Name", err)
		}
		name := nameVar.ToString()
		nameVar.Clear()

		valueVar, err := oleutil.GetProperty(prop, "Value")
		if err != nil {
			return wrapOleError("Property.Value "+name, err)
		}
		inst.Properties = append(inst.Properties, Property{Name: name, Value: variantValue(valueVar)})
		valueVar.Clear()
		return nil
	})
	if err != nil {
		return inst, err
	}
	return inst, nil
}

func variantValue(v *ole.VARIANT) any {
	if v.VT&ole.VT_ARRAY != 0 {
		arr := v.ToArray()
		if arr == nil {
			return nil
		}
		return arr.ToValueArray()
	}
	return v.Value()
}

// wrapOleError turns a COM dispatch failure into a ManagementError.
func wrapOleError(op string, err error) error {
	var oleErr *ole.OleError
	if !errors.As(err, &oleErr) {
		return fmt.Errorf("%s: %w", op, err)
	}

	hr := uint32(oleErr.Code())
	// DISP_E_EXCEPTION carries the provider's SCODE in the exception info.
	if se, ok := any(oleErr).(interface{ SubError() error }); ok {
		if sc, ok := se.SubError().(interface{ SCODE() uint32 }); ok && sc.SCODE() != 0 {
			hr = sc.SCODE()
		}
	}

	mgmtErr := NewManagementError(op, hr, hresultMessage(hr, oleErr))
	mgmtErr.Err = err
	return mgmtErr
}

func hresultMessage(hr uint32, err *ole.OleError) string {
	if hr&0xFFFF0000 == 0x80070000 {
		return syscall.Errno(hr & 0xFFFF).Error()
	}
	if d := err.Description(); d != "" {
		return d
	}
	return err.Error()
}
