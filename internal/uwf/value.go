package uwf

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/nhdewitt/uwfmon/internal/cim"
)

// FeatureQuery selects the optional feature that provides UWF.
const FeatureQuery = "SELECT * FROM Win32_OptionalFeature WHERE Name='Client-DeviceLockdown'"

// InstallState is the Win32_OptionalFeature install state.
type InstallState int

const (
	// InstallNone means the state could not be read.
	InstallNone     InstallState = 0
	InstallEnabled  InstallState = 1
	InstallDisabled InstallState = 2
	InstallAbsent   InstallState = 3
	InstallUnknown  InstallState = 4
)

func (s InstallState) String() string {
	switch s {
	case InstallEnabled:
		return "enabled"
	case InstallDisabled:
		return "disabled"
	case InstallAbsent:
		return "absent"
	case InstallUnknown:
		return "unknown"
	case InstallNone:
		return "none"
	default:
		return fmt.Sprintf("InstallState(%d)", int(s))
	}
}

// Installed reports whether the feature is enabled.
func (s InstallState) Installed() bool {
	return s == InstallEnabled
}

// QueryValue returns property of the first instance of query that carries it.
// An empty namespace selects the UWF namespace. On failure the returned value
// is the error message and the code is authoritative.
func (c *Client) QueryValue(ctx context.Context, query, property, host, namespace string) (string, ErrorCode) {
	if namespace == "" {
		namespace = Namespace
	}
	log := c.log.WithFields(logrus.Fields{
		"host":     hostLabel(host),
		"query":    query,
		"property": property,
	})

	fail := func(cause error) (string, ErrorCode) {
		f := classify(ctx, cause)
		code := ErrorOccurred | ExceptionGeneric
		if f.code.Has(OperationCancelled) {
			code |= OperationCancelled
		}
		c.last.Merge(code)
		log.WithError(f.err).Debug("value query failed")
		return f.message, code
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	sess, err := c.dial(ctx, host)
	if err != nil {
		return fail(err)
	}
	defer sess.Close()

	for inst, err := range sess.QueryInstances(ctx, namespace, cim.DialectWQL, query) {
		if err != nil {
			return fail(err)
		}
		if v, ok := inst.Get(property); ok {
			return FormatValue(v), DataAvailable
		}
	}
	return "", NoDataAvailable
}

// FeatureInstalled returns the install state of the UWF optional feature.
func (c *Client) FeatureInstalled(ctx context.Context, host string) (InstallState, ErrorCode) {
	v, code := c.QueryValue(ctx, FeatureQuery, PropInstallState, host, FeatureNamespace)
	if code != DataAvailable {
		return InstallNone, code
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		code = ErrorOccurred | ExceptionGeneric
		c.last.Merge(code)
		return InstallNone, code
	}
	return InstallState(n), code
}

// FormatValue renders a property value as stored in a PropertyStore.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.FormatInt(int64(x), 10)
	case int8:
		return strconv.FormatInt(int64(x), 10)
	case int16:
		return strconv.FormatInt(int64(x), 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint:
		return strconv.FormatUint(uint64(x), 10)
	case uint8:
		return strconv.FormatUint(uint64(x), 10)
	case uint16:
		return strconv.FormatUint(uint64(x), 10)
	case uint32:
		return strconv.FormatUint(uint64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case []string:
		return strings.Join(x, ",")
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = FormatValue(e)
		}
		return strings.Join(parts, ",")
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
