package uwf

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/nhdewitt/uwfmon/internal/cim"
)

// VolumeRecord is the protection state of one UWF_Volume instance.
type VolumeRecord struct {
	Protected         bool   `json:"protected" yaml:"protected"`
	CurrentSession    bool   `json:"currentSession" yaml:"currentSession"`
	CommitPending     bool   `json:"commitPending" yaml:"commitPending"`
	BindByDriveLetter bool   `json:"bindByDriveLetter" yaml:"bindByDriveLetter"`
	DriveLetter       string `json:"driveLetter" yaml:"driveLetter"`
	VolumeName        string `json:"volumeName" yaml:"volumeName"`
}

// EnumerateVolumes lists every UWF_Volume instance of host in source order.
// An unreachable host yields a nil slice and an error wrapping
// ErrConnectionTestFailed; a reachable host without volumes yields an empty,
// non-nil slice.
func (c *Client) EnumerateVolumes(ctx context.Context, host string) ([]VolumeRecord, error) {
	log := c.log.WithField("host", hostLabel(host))

	fail := func(cause error) ([]VolumeRecord, error) {
		f := classify(ctx, cause)
		c.last.Merge(f.code)
		log.WithError(f.err).Debug("volume enumeration failed")
		return nil, fmt.Errorf("enumerate volumes on %s: %w", hostLabel(host), f.err)
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
		c.last.Merge(ConnectionTestFailed | NoDataAvailable)
		log.Warn("connection test failed")
		return nil, fmt.Errorf("enumerate volumes on %s: %w", hostLabel(host), ErrConnectionTestFailed)
	}

	vols := []VolumeRecord{}
	for inst, err := range sess.QueryInstances(ctx, Namespace, cim.DialectWQL, VolumeSchema.Query()) {
		if err != nil {
			return fail(err)
		}
		vols = append(vols, volumeFromInstance(inst))
	}
	return vols, nil
}

func volumeFromInstance(inst cim.Instance) VolumeRecord {
	var v VolumeRecord
	for _, p := range inst.Properties {
		if p.Value == nil {
			continue
		}
		switch strings.ToLower(p.Name) {
		case "currentsession":
			v.CurrentSession = parseBool(p.Value)
		case "protected":
			v.Protected = parseBool(p.Value)
		case "bindbydriveletter":
			v.BindByDriveLetter = parseBool(p.Value)
		case "commitpending":
			v.CommitPending = parseBool(p.Value)
		case "volumename":
			v.VolumeName = FormatValue(p.Value)
		case "driveletter":
			v.DriveLetter = FormatValue(p.Value)
		}
	}
	return v
}

func parseBool(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		b, _ := strconv.ParseBool(x)
		return b
	default:
		b, _ := strconv.ParseBool(FormatValue(x))
		return b
	}
}

// ProtectedDriveLetters returns the distinct drive letters of protected volumes
// belonging to the current (true) or next (false) session, in source order.
func ProtectedDriveLetters(vols []VolumeRecord, currentSession bool) []string {
	letters := []string{}
	seen := make(map[string]struct{})
	for _, v := range vols {
		if !v.Protected || v.CurrentSession != currentSession {
			continue
		}
		if _, ok := seen[v.DriveLetter]; ok {
			continue
		}
		seen[v.DriveLetter] = struct{}{}
		letters = append(letters, v.DriveLetter)
	}
	return letters
}
