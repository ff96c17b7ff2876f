package uwf

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhdewitt/uwfmon/internal/cim"
	"github.com/nhdewitt/uwfmon/internal/cim/cimtest"
)

func TestParseAction(t *testing.T) {
	tests := []struct {
		in         string
		want       Action
		wantMethod string
		wantErr    bool
	}{
		{in: "enable", want: ActionEnable, wantMethod: "Enable"},
		{in: "Disable", want: ActionDisable, wantMethod: "Disable"},
		{in: " RESTART ", want: ActionRestart, wantMethod: "RestartSystem"},
		{in: "reset", want: ActionReset, wantMethod: "ResetSettings"},
		{in: "shutdown", want: ActionShutdown, wantMethod: "ShutdownSystem"},
		{in: "commit", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAction(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownAction)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantMethod, got.Method())
		})
	}
}

func TestInvoke(t *testing.T) {
	for _, action := range Actions() {
		t.Run(string(action), func(t *testing.T) {
			h := uwfHost()
			c, d := newTestClient(h)

			code, err := c.Invoke(context.Background(), action, "")
			require.NoError(t, err)
			assert.Equal(t, None, code)

			assert.Equal(t, []cimtest.Invocation{{
				Namespace: Namespace,
				Path:      ClassFilter,
				Method:    action.Method(),
			}}, h.Invocations())
			assert.Equal(t, 0, d.OpenSessions())
		})
	}
}

func TestInvokeFailures(t *testing.T) {
	tests := []struct {
		name     string
		host     func() *cimtest.Host
		action   Action
		wantCode ErrorCode
		wantIs   error
	}{
		{
			name:     "unknown action",
			host:     uwfHost,
			action:   Action("commit"),
			wantCode: ErrorOccurred | ExceptionGeneric,
			wantIs:   ErrUnknownAction,
		},
		{
			name: "no filter instance",
			host: func() *cimtest.Host {
				h := uwfHost()
				h.Classes[ClassFilter] = nil
				return h
			},
			action:   ActionEnable,
			wantCode: ErrorOccurred | ExceptionGeneric,
			wantIs:   ErrNoFilterInstance,
		},
		{
			name: "provider rejects",
			host: func() *cimtest.Host {
				h := uwfHost()
				h.InvokeErr = cim.NewManagementError("Enable", 0x80041003, "Access denied")
				return h
			},
			action:   ActionEnable,
			wantCode: ErrorOccurred | ExceptionManagement,
		},
		{
			name: "generic",
			host: func() *cimtest.Host {
				h := uwfHost()
				h.InvokeErr = errors.New("connection reset")
				return h
			},
			action:   ActionDisable,
			wantCode: ErrorOccurred | ExceptionGeneric,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, d := newTestClient(tt.host())

			code, err := c.Invoke(context.Background(), tt.action, "")
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, code)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
			assert.Equal(t, tt.wantCode, c.LastError())
			assert.Equal(t, 0, d.OpenSessions())
		})
	}
}

func TestInvokeTimeoutReleasesSession(t *testing.T) {
	h := uwfHost()
	h.InvokeBlock = make(chan struct{})
	c, d := newTestClient(h, WithOperationTimeout(20*time.Millisecond))

	code, err := c.Invoke(context.Background(), ActionRestart, "")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, ErrorOccurred|OperationCancelled, code)

	// The abandoned invocation still holds the session.
	assert.Equal(t, 1, d.OpenSessions())

	close(h.InvokeBlock)
	require.Eventually(t, func() bool { return d.OpenSessions() == 0 }, time.Second, 5*time.Millisecond)
}

func TestInvokeCancelled(t *testing.T) {
	h := uwfHost()
	h.InvokeBlock = make(chan struct{})
	c, d := newTestClient(h)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		assert.Eventually(t, func() bool { return len(h.Invocations()) == 1 }, time.Second, time.Millisecond)
		cancel()
	}()

	code, err := c.Invoke(ctx, ActionShutdown, "")
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, ErrorOccurred|OperationCancelled, code)

	close(h.InvokeBlock)
	require.Eventually(t, func() bool { return d.OpenSessions() == 0 }, time.Second, 5*time.Millisecond)
}

func TestInvokeUnreachableDialError(t *testing.T) {
	c, _ := newTestClient(&cimtest.Host{DialErr: errors.New("no route to host")})

	code, err := c.Invoke(context.Background(), ActionEnable, "")
	require.Error(t, err)
	assert.Equal(t, ErrorOccurred|ExceptionGeneric, code)
}
