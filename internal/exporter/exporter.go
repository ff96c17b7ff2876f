// Package exporter polls UWF hosts on an interval and publishes their state
// as Prometheus gauges.
package exporter

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/nhdewitt/uwfmon/internal/uwf"
)

// Source is the part of *uwf.Client the exporter uses.
type Source interface {
	Collect(ctx context.Context, host string, stores *uwf.Stores) uwf.CollectResult
	EnumerateVolumes(ctx context.Context, host string) ([]uwf.VolumeRecord, error)
}

type Exporter struct {
	source   Source
	hosts    []string
	interval time.Duration
	log      logrus.FieldLogger

	registry          *prometheus.Registry
	filterEnabled     *prometheus.GaugeVec
	overlayConsumed   *prometheus.GaugeVec
	overlayAvailable  *prometheus.GaugeVec
	servicingEnabled  *prometheus.GaugeVec
	volumeProtected   *prometheus.GaugeVec
	collectionSuccess *prometheus.GaugeVec
}

func New(source Source, hosts []string, interval time.Duration, log logrus.FieldLogger) *Exporter {
	if len(hosts) == 0 {
		hosts = []string{""}
	}
	e := &Exporter{
		source:   source,
		hosts:    hosts,
		interval: interval,
		log:      log,
		registry: prometheus.NewRegistry(),

		filterEnabled: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "uwf_filter_enabled",
			Help: "Whether the write filter is enabled for the session.",
		}, []string{"host", "session"}),
		overlayConsumed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "uwf_overlay_consumption_megabytes",
			Help: "Overlay space in use.",
		}, []string{"host"}),
		overlayAvailable: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "uwf_overlay_available_megabytes",
			Help: "Overlay space still available.",
		}, []string{"host"}),
		servicingEnabled: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "uwf_servicing_enabled",
			Help: "Whether servicing mode is enabled for the session.",
		}, []string{"host", "session"}),
		volumeProtected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "uwf_volume_protected",
			Help: "Whether the volume is protected in the session.",
		}, []string{"host", "drive", "session"}),
		collectionSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "uwf_collection_success",
			Help: "Whether the last collection cycle succeeded.",
		}, []string{"host"}),
	}
	e.registry.MustRegister(
		e.filterEnabled,
		e.overlayConsumed,
		e.overlayAvailable,
		e.servicingEnabled,
		e.volumeProtected,
		e.collectionSuccess,
	)
	return e
}

func (e *Exporter) Registry() *prometheus.Registry { return e.registry }

// Handler serves the exporter gauges together with the process-wide collectors.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(
		prometheus.Gatherers{e.registry, prometheus.DefaultGatherer},
		promhttp.HandlerOpts{},
	)
}

// Run polls every host once, then again on each tick until ctx ends.
func (e *Exporter) Run(ctx context.Context) {
	pollAll := func() {
		for _, host := range e.hosts {
			if ctx.Err() != nil {
				return
			}
			e.poll(ctx, host)
		}
	}

	// Collect Baseline
	pollAll()

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pollAll()
		}
	}
}

func (e *Exporter) poll(ctx context.Context, host string) {
	label := host
	if label == "" {
		label = "localhost"
	}
	log := e.log.WithField("host", label)

	defer func() {
		if r := recover(); r != nil {
			log.Errorf("panic recovered in exporter: %v", r)
			e.clear(label)
			e.collectionSuccess.WithLabelValues(label).Set(0)
		}
	}()

	stores := uwf.NewStores()
	res := e.source.Collect(ctx, host, stores)
	if res.Outcome == uwf.Cancelled {
		return
	}

	vols, err := e.source.EnumerateVolumes(ctx, host)
	if err != nil {
		log.WithError(err).Warn("volume enumeration failed")
	}

	snap, err := uwf.BuildSnapshot(stores, vols)
	if err != nil {
		log.WithError(err).Warn("snapshot has malformed values")
	}
	e.publish(label, res, snap)
}

// clear drops every state series of host.
func (e *Exporter) clear(host string) {
	e.filterEnabled.DeletePartialMatch(prometheus.Labels{"host": host})
	e.overlayConsumed.DeleteLabelValues(host)
	e.overlayAvailable.DeleteLabelValues(host)
	e.servicingEnabled.DeletePartialMatch(prometheus.Labels{"host": host})
	e.volumeProtected.DeletePartialMatch(prometheus.Labels{"host": host})
}

// publish replaces the series of host. A cycle that did not succeed publishes
// only uwf_collection_success=0.
func (e *Exporter) publish(host string, res uwf.CollectResult, snap *uwf.Snapshot) {
	e.clear(host)

	e.collectionSuccess.WithLabelValues(host).Set(boolGauge(res.Outcome == uwf.Succeeded))
	if res.Outcome != uwf.Succeeded {
		return
	}

	if f := snap.Filter; f != nil {
		e.filterEnabled.WithLabelValues(host, "current").Set(boolGauge(f.CurrentEnabled))
		e.filterEnabled.WithLabelValues(host, "next").Set(boolGauge(f.NextEnabled))
	}
	if o := snap.Overlay; o != nil {
		e.overlayConsumed.WithLabelValues(host).Set(float64(o.Consumption))
		e.overlayAvailable.WithLabelValues(host).Set(float64(o.AvailableSpace))
	}
	if s := snap.Servicing; s != nil {
		e.servicingEnabled.WithLabelValues(host, "current").Set(boolGauge(s.Enabled))
	}
	if s := snap.ServicingNext; s != nil {
		e.servicingEnabled.WithLabelValues(host, "next").Set(boolGauge(s.Enabled))
	}
	for _, v := range snap.Volumes {
		session := "next"
		if v.CurrentSession {
			session = "current"
		}
		e.volumeProtected.WithLabelValues(host, v.DriveLetter, session).Set(boolGauge(v.Protected))
	}
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Serve runs Run and an HTTP server on listen until ctx ends or the server
// fails. Polling stops before Serve returns.
func Serve(ctx context.Context, listen string, e *Exporter) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", e.Handler())

	srv := &http.Server{
		Addr:         listen,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 40 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		e.Run(runCtx)
	}()

	errc := make(chan error, 1)
	go func() {
		e.log.WithField("listen", listen).Info("exporter listening")
		errc <- srv.ListenAndServe()
	}()

	var err error
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = srv.Shutdown(shutdownCtx)
		<-errc
	case err = <-errc:
		e.log.WithError(err).Error("exporter server stopped")
	}
	stop()
	<-done

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
