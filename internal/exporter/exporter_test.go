package exporter

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/nhdewitt/uwfmon/internal/cim"
	"github.com/nhdewitt/uwfmon/internal/cim/cimtest"
	"github.com/nhdewitt/uwfmon/internal/uwf"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func kioskHost() *cimtest.Host {
	P, Object := cimtest.P, cimtest.Object
	return &cimtest.Host{
		Classes: map[string][]cim.Instance{
			uwf.ClassFilter: {
				Object(uwf.ClassFilter, P(uwf.PropCurrentEnabled, true), P(uwf.PropNextEnabled, false)),
			},
			uwf.ClassOverlay: {
				Object(uwf.ClassOverlay, P(uwf.PropAvailableSpace, uint32(900)), P(uwf.PropOverlayConsumption, uint32(124))),
			},
			uwf.ClassOverlayConfig: {},
			uwf.ClassVolume: {
				Object(uwf.ClassVolume, P(uwf.PropCurrentSession, true), P(uwf.PropProtected, true), P(uwf.PropDriveLetter, "C:")),
				Object(uwf.ClassVolume, P(uwf.PropCurrentSession, false), P(uwf.PropProtected, false), P(uwf.PropDriveLetter, "C:")),
			},
			uwf.ClassServicing: {
				Object(uwf.ClassServicing, P(uwf.PropCurrentSession, true), P(uwf.PropServicingEnabled, false)),
				Object(uwf.ClassServicing, P(uwf.PropCurrentSession, false), P(uwf.PropServicingEnabled, true)),
			},
		},
	}
}

func newTestExporter(hosts ...string) (*Exporter, *cimtest.Dialer) {
	d := cimtest.NewDialer()
	d.AddHost("kiosk-1", kioskHost())
	client := uwf.New(d, uwf.WithLogger(quietLogger()))
	return New(client, hosts, time.Hour, quietLogger()), d
}

func TestPollPublishesGauges(t *testing.T) {
	e, d := newTestExporter("kiosk-1")
	e.poll(context.Background(), "kiosk-1")

	assert.Equal(t, 1.0, testutil.ToFloat64(e.collectionSuccess.WithLabelValues("kiosk-1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.filterEnabled.WithLabelValues("kiosk-1", "current")))
	assert.Equal(t, 0.0, testutil.ToFloat64(e.filterEnabled.WithLabelValues("kiosk-1", "next")))
	assert.Equal(t, 124.0, testutil.ToFloat64(e.overlayConsumed.WithLabelValues("kiosk-1")))
	assert.Equal(t, 900.0, testutil.ToFloat64(e.overlayAvailable.WithLabelValues("kiosk-1")))
	assert.Equal(t, 0.0, testutil.ToFloat64(e.servicingEnabled.WithLabelValues("kiosk-1", "current")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.servicingEnabled.WithLabelValues("kiosk-1", "next")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.volumeProtected.WithLabelValues("kiosk-1", "C:", "current")))
	assert.Equal(t, 0.0, testutil.ToFloat64(e.volumeProtected.WithLabelValues("kiosk-1", "C:", "next")))

	assert.Equal(t, 0, d.OpenSessions())
}

func TestPollUnreachableHost(t *testing.T) {
	e, _ := newTestExporter("ghost")
	e.poll(context.Background(), "ghost")

	assert.Equal(t, 0.0, testutil.ToFloat64(e.collectionSuccess.WithLabelValues("ghost")))
	assert.Equal(t, 0, testutil.CollectAndCount(e.filterEnabled))
	assert.Equal(t, 0, testutil.CollectAndCount(e.volumeProtected))
}

func TestPollDropsStaleSeries(t *testing.T) {
	e, d := newTestExporter("kiosk-1")
	e.poll(context.Background(), "kiosk-1")
	require.Equal(t, 2, testutil.CollectAndCount(e.volumeProtected))

	d.AddHost("kiosk-1", &cimtest.Host{Unreachable: true})
	e.poll(context.Background(), "kiosk-1")

	assert.Equal(t, 0, testutil.CollectAndCount(e.volumeProtected))
	assert.Equal(t, 0, testutil.CollectAndCount(e.overlayConsumed))
	assert.Equal(t, 0.0, testutil.ToFloat64(e.collectionSuccess.WithLabelValues("kiosk-1")))
}

func TestPollPartialFailurePublishesOnlySuccess(t *testing.T) {
	e, d := newTestExporter("kiosk-1")
	e.poll(context.Background(), "kiosk-1")
	require.Equal(t, 2, testutil.CollectAndCount(e.filterEnabled))

	h := kioskHost()
	h.QueryErr = map[string]error{uwf.ClassVolume: errors.New("rpc server unavailable")}
	d.AddHost("kiosk-1", h)
	e.poll(context.Background(), "kiosk-1")

	assert.Equal(t, 0.0, testutil.ToFloat64(e.collectionSuccess.WithLabelValues("kiosk-1")))
	assert.Equal(t, 0, testutil.CollectAndCount(e.filterEnabled))
	assert.Equal(t, 0, testutil.CollectAndCount(e.overlayConsumed))
	assert.Equal(t, 0, testutil.CollectAndCount(e.overlayAvailable))
	assert.Equal(t, 0, testutil.CollectAndCount(e.servicingEnabled))
	assert.Equal(t, 0, testutil.CollectAndCount(e.volumeProtected))
}

func TestLocalHostLabel(t *testing.T) {
	d := cimtest.NewDialer()
	d.AddHost("", kioskHost())
	e := New(uwf.New(d, uwf.WithLogger(quietLogger())), nil, time.Hour, quietLogger())

	require.Equal(t, []string{""}, e.hosts)
	e.poll(context.Background(), "")
	assert.Equal(t, 1.0, testutil.ToFloat64(e.collectionSuccess.WithLabelValues("localhost")))
}

func TestRunStopsOnCancel(t *testing.T) {
	e, _ := newTestExporter("kiosk-1")
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		e.Run(ctx)
	}()

	assert.Eventually(t, func() bool {
		return testutil.CollectAndCount(e.collectionSuccess) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	e, _ := newTestExporter("kiosk-1")
	e.poll(context.Background(), "kiosk-1")

	rec := httptest.NewRecorder()
	e.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `uwf_filter_enabled{host="kiosk-1",session="current"} 1`)
	assert.Contains(t, body, `uwf_collection_success{host="kiosk-1"} 1`)
	assert.Contains(t, body, "uwf_collections_total")
}

type panicSource struct{}

func (panicSource) Collect(context.Context, string, *uwf.Stores) uwf.CollectResult {
	panic("provider crashed")
}

func (panicSource) EnumerateVolumes(context.Context, string) ([]uwf.VolumeRecord, error) {
	return nil, nil
}

func TestPollRecoversPanic(t *testing.T) {
	e := New(panicSource{}, []string{"kiosk-1"}, time.Hour, quietLogger())

	assert.NotPanics(t, func() { e.poll(context.Background(), "kiosk-1") })
	assert.Equal(t, 0.0, testutil.ToFloat64(e.collectionSuccess.WithLabelValues("kiosk-1")))
}

func TestServeShutsDownOnCancel(t *testing.T) {
	e, _ := newTestExporter("kiosk-1")
	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	go func() { errc <- Serve(ctx, "127.0.0.1:0", e) }()

	assert.Eventually(t, func() bool {
		return testutil.CollectAndCount(e.collectionSuccess) == 1
	}, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestServeReturnsBindError(t *testing.T) {
	held, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer held.Close()

	e, _ := newTestExporter("kiosk-1")

	errc := make(chan error, 1)
	go func() { errc <- Serve(context.Background(), held.Addr().String(), e) }()

	select {
	case err := <-errc:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return on an address in use")
	}
}
