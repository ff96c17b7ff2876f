package uwf

import (
	"context"
	"fmt"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/nhdewitt/uwfmon/internal/cim"
)

// QueryClass reads the instance at the given level of query's result into store.
//
// An unreachable host sets connection-test-failed and returns
// ConnectionTestFailed|NoDataAvailable without querying. A result with fewer
// than level+1 instances returns NoDataAvailable and leaves store untouched.
// Every other failure is written to the diagnostic keys of store and returned
// as a *QueryError; cancellation satisfies errors.Is(err, context.Canceled).
func (c *Client) QueryClass(ctx context.Context, query string, store *PropertyStore, host string, level int) (code ErrorCode, err error) {
	log := c.log.WithFields(logrus.Fields{
		"host":  hostLabel(host),
		"query": query,
		"level": level,
	})
	defer func() { c.last.Store(code) }()

	fail := func(cause error) (ErrorCode, error) {
		f := classify(ctx, cause)
		store.setFailure(f.native, f.hresult, f.message)
		log.WithError(f.err).WithField("code", f.code).Debug("class query failed")
		return f.code, &QueryError{Query: query, Host: host, Level: level, Code: f.code, Err: f.err}
	}

	if level < 0 {
		return fail(fmt.Errorf("uwf: negative instance level %d", level))
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	sess, err := c.dial(ctx, host)
	if err != nil {
		return fail(err)
	}
	defer sess.Close()

	if !sess.TestConnection(ctx) {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		store.Set(KeyConnectionTestFailed, "true")
		code := ConnectionTestFailed | NoDataAvailable
		log.Warn("connection test failed")
		return code, &QueryError{Query: query, Host: host, Level: level, Code: code, Err: ErrConnectionTestFailed}
	}

	index := 0
	for inst, err := range sess.QueryInstances(ctx, Namespace, cim.DialectWQL, query) {
		if err != nil {
			return fail(err)
		}
		if index < level {
			index++
			continue
		}

		for _, p := range inst.Properties {
			if !store.Has(p.Name) || slices.Contains(DiagnosticKeys, p.Name) {
				continue
			}
			if err := ctx.Err(); err != nil {
				return fail(err)
			}
			store.Set(p.Name, FormatValue(p.Value))
		}
		store.Set(KeyErrorOccurred, "false")
		store.Set(KeyConnectionTestFailed, "false")
		log.Debug("class query returned data")
		return DataAvailable, nil
	}

	log.Debug("no instance at level")
	return NoDataAvailable, nil
}
