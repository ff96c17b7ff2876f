package uwf

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Outcome is the aggregate result of a collection cycle.
type Outcome int

const (
	Succeeded Outcome = iota
	Cancelled
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Succeeded:
		return "succeeded"
	case Cancelled:
		return "cancelled"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// CollectResult summarizes one collection cycle.
type CollectResult struct {
	ID       string
	Host     string
	Outcome  Outcome
	Code     ErrorCode
	Err      error
	Duration time.Duration
}

// Collect reseeds stores and fills every one of them concurrently from host.
// All queries share ctx; a failing query never stops the others. Collect
// returns once every query has finished.
func (c *Client) Collect(ctx context.Context, host string, stores *Stores) CollectResult {
	start := time.Now()
	res := CollectResult{ID: uuid.NewString(), Host: host}
	log := c.log.WithFields(logrus.Fields{
		"host":  hostLabel(host),
		"cycle": res.ID,
	})

	stores.Reset()
	targets := stores.targets()
	codes := make([]ErrorCode, len(targets))
	errs := make([]error, len(targets))

	var g errgroup.Group
	g.SetLimit(c.workers)
	for i, t := range targets {
		g.Go(func() error {
			taskStart := time.Now()
			defer func() {
				if r := recover(); r != nil {
					err := fmt.Errorf("uwf: query %s panicked: %v", t.name, r)
					f := classify(context.Background(), err)
					t.store.setFailure(f.native, f.hresult, f.message)
					codes[i], errs[i] = f.code, err
					log.WithField("store", t.name).Error(err)
				}
				queryDuration.WithLabelValues(t.name, taskOutcome(codes[i])).Observe(time.Since(taskStart).Seconds())
			}()
			codes[i], errs[i] = c.QueryClass(ctx, t.store.Schema().Query(), t.store, host, t.level)
			return nil
		})
	}
	// Tasks record their failures in codes and errs; Wait never returns an error.
	_ = g.Wait()

	for _, code := range codes {
		res.Code |= code
	}
	res.Err = errors.Join(errs...)

	switch {
	case res.Code.Has(OperationCancelled):
		res.Outcome = Cancelled
	case res.Code.Failed():
		res.Outcome = Failed
	default:
		res.Outcome = Succeeded
	}
	res.Duration = time.Since(start)

	collections.WithLabelValues(res.Outcome.String()).Inc()
	log.WithFields(logrus.Fields{
		"outcome":  res.Outcome.String(),
		"code":     res.Code.String(),
		"duration": res.Duration,
	}).Info("collection finished")
	return res
}
