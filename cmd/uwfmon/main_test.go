package main

// Tests in this file swap package-level hooks (newDialer, isElevated).
// Do not use t.Parallel().

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/nhdewitt/uwfmon/internal/cim"
	"github.com/nhdewitt/uwfmon/internal/cim/cimtest"
	"github.com/nhdewitt/uwfmon/internal/uwf"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreAnyFunction("os/signal.loop"))
}

func localHost() *cimtest.Host {
	P, Object := cimtest.P, cimtest.Object
	return &cimtest.Host{
		Classes: map[string][]cim.Instance{
			uwf.ClassFilter: {
				Object(uwf.ClassFilter, P(uwf.PropCurrentEnabled, true), P(uwf.PropNextEnabled, true)),
			},
			uwf.ClassOverlay: {
				Object(uwf.ClassOverlay, P(uwf.PropAvailableSpace, uint32(1000)), P(uwf.PropOverlayConsumption, uint32(24))),
			},
			uwf.ClassOverlayConfig: {
				Object(uwf.ClassOverlayConfig, P(uwf.PropCurrentSession, true), P(uwf.PropType, uint32(0)), P(uwf.PropMaximumSize, uint32(1024))),
			},
			uwf.ClassVolume: {
				Object(uwf.ClassVolume, P(uwf.PropCurrentSession, true), P(uwf.PropProtected, true), P(uwf.PropDriveLetter, "C:")),
			},
			uwf.ClassServicing: {
				Object(uwf.ClassServicing, P(uwf.PropCurrentSession, true), P(uwf.PropServicingEnabled, false)),
			},
			uwf.ClassOptionalFeature: {
				Object(uwf.ClassOptionalFeature, P("Name", "Client-DeviceLockdown"), P(uwf.PropInstallState, uint32(1))),
			},
		},
	}
}

func stubDialer(t *testing.T, hosts map[string]*cimtest.Host) *cimtest.Dialer {
	t.Helper()

	d := cimtest.NewDialer()
	for name, h := range hosts {
		d.AddHost(name, h)
	}
	orig := newDialer
	newDialer = func() cim.Dialer { return d }
	t.Cleanup(func() { newDialer = orig })
	return d
}

func stubElevated(t *testing.T, elevated bool) {
	t.Helper()

	orig := isElevated
	isElevated = func() bool { return elevated }
	t.Cleanup(func() { isElevated = orig })
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("UWFMON_CONFIG", "")

	var stdout, stderr bytes.Buffer
	err := execute(context.Background(), append([]string{"uwfmon"}, args...), &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

type envelope struct {
	Type     string         `json:"type"`
	Hostname string         `json:"hostname"`
	Data     map[string]any `json:"data"`
}

func decode(t *testing.T, out string) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal([]byte(out), &env), out)
	return env
}

func TestStatusCommand(t *testing.T) {
	d := stubDialer(t, map[string]*cimtest.Host{"": localHost()})

	out, _, err := run(t, "status", "-o", "json")
	require.NoError(t, err)

	env := decode(t, out)
	assert.Equal(t, "status", env.Type)
	assert.Equal(t, "localhost", env.Hostname)
	assert.Equal(t, "enabled", env.Data["installed"])
	assert.Equal(t, "succeeded", env.Data["outcome"])

	status, ok := env.Data["status"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ok", status["level"])
	assert.Equal(t, 0, d.OpenSessions())
}

func TestStatusCommandUnreachable(t *testing.T) {
	stubDialer(t, nil)

	out, _, err := run(t, "status", "--host", "kiosk-9", "-o", "json")
	require.ErrorIs(t, err, SilentExitError{Code: 1})

	env := decode(t, out)
	assert.Equal(t, "kiosk-9", env.Hostname)
	status := env.Data["status"].(map[string]any)
	assert.Equal(t, "unreachable", status["level"])
}

func TestVolumesCommandTable(t *testing.T) {
	stubDialer(t, map[string]*cimtest.Host{"": localHost()})

	out, _, err := run(t, "volumes", "-o", "table")
	require.NoError(t, err)
	assert.Contains(t, out, "DRIVE")
	assert.Contains(t, out, "C:")
}

func TestVolumesCommandUnreachable(t *testing.T) {
	stubDialer(t, nil)

	_, _, err := run(t, "volumes", "--host", "ghost")
	assert.ErrorIs(t, err, uwf.ErrConnectionTestFailed)
}

func TestInstalledCommand(t *testing.T) {
	stubDialer(t, map[string]*cimtest.Host{"": localHost()})

	out, _, err := run(t, "installed", "-o", "json")
	require.NoError(t, err)

	env := decode(t, out)
	assert.Equal(t, "feature", env.Type)
	assert.Equal(t, true, env.Data["installed"])
	assert.Equal(t, "enabled", env.Data["state"])
}

func TestActionCommand(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		elevated bool
		wantErr  string
		wantCall bool
	}{
		{name: "unknown action", args: []string{"action", "explode", "--yes"}, elevated: true, wantErr: "unknown action"},
		{name: "missing confirmation", args: []string{"action", "enable"}, elevated: true, wantErr: "--yes"},
		{name: "not elevated", args: []string{"action", "enable", "--yes"}, wantErr: "elevated"},
		{name: "enable", args: []string{"action", "enable", "--yes", "-o", "json"}, elevated: true, wantCall: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := localHost()
			h.Classes[uwf.ClassFilter][0].Path = `UWF_Filter.Id="UWF_Filter"`
			stubDialer(t, map[string]*cimtest.Host{"": h})
			stubElevated(t, tt.elevated)

			out, _, err := run(t, tt.args...)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Empty(t, h.Invocations())
				return
			}
			require.NoError(t, err)

			env := decode(t, out)
			assert.Equal(t, "action", env.Type)
			assert.Equal(t, "Enable", env.Data["method"])
			if tt.wantCall {
				require.Len(t, h.Invocations(), 1)
				assert.Equal(t, "Enable", h.Invocations()[0].Method)
				assert.Equal(t, uwf.Namespace, h.Invocations()[0].Namespace)
			}
		})
	}
}

func TestActionCommandRemoteSkipsElevation(t *testing.T) {
	h := localHost()
	stubDialer(t, map[string]*cimtest.Host{"kiosk-1": h})
	stubElevated(t, false)

	_, _, err := run(t, "action", "reset", "--yes", "--host", "kiosk-1", "-o", "json")
	require.NoError(t, err)
	require.Len(t, h.Invocations(), 1)
	assert.Equal(t, "ResetSettings", h.Invocations()[0].Method)
}

func TestUnknownOutputFormat(t *testing.T) {
	stubDialer(t, nil)

	_, _, err := run(t, "installed", "-o", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

func TestRunMainExitCodes(t *testing.T) {
	stubDialer(t, nil)
	t.Setenv("UWFMON_CONFIG", "")

	tests := []struct {
		name string
		args []string
		want int
	}{
		{name: "ok", args: []string{"uwfmon", "--help"}, want: 0},
		{name: "silent failure", args: []string{"uwfmon", "installed", "--host", "ghost", "-o", "json"}, want: 1},
		{name: "error", args: []string{"uwfmon", "action"}, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := 0
			runMain(tt.args, &stdout, &stderr, func(c int) { code = c })
			assert.Equal(t, tt.want, code)
		})
	}
}
