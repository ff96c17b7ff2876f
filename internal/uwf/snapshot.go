package uwf

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type FilterStatus struct {
	ID              string `json:"id,omitempty" yaml:"id,omitempty"`
	CurrentEnabled  bool   `json:"currentEnabled" yaml:"currentEnabled"`
	NextEnabled     bool   `json:"nextEnabled" yaml:"nextEnabled"`
	HORMEnabled     bool   `json:"hormEnabled" yaml:"hormEnabled"`
	ShutdownPending bool   `json:"shutdownPending" yaml:"shutdownPending"`
}

// OverlayStatus holds overlay usage figures in megabytes.
type OverlayStatus struct {
	AvailableSpace    uint64 `json:"availableSpace" yaml:"availableSpace"`
	CriticalThreshold uint64 `json:"criticalThreshold" yaml:"criticalThreshold"`
	Consumption       uint64 `json:"consumption" yaml:"consumption"`
	WarningThreshold  uint64 `json:"warningThreshold" yaml:"warningThreshold"`
}

// OverlayType is the storage backing the overlay.
type OverlayType int

const (
	OverlayRAM  OverlayType = 0
	OverlayDisk OverlayType = 1
)

func (t OverlayType) String() string {
	switch t {
	case OverlayRAM:
		return "RAM"
	case OverlayDisk:
		return "Disk"
	default:
		return fmt.Sprintf("OverlayType(%d)", int(t))
	}
}

func (t OverlayType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

type OverlayConfig struct {
	Type           OverlayType `json:"type" yaml:"type"`
	MaximumSize    uint64      `json:"maximumSize" yaml:"maximumSize"`
	CurrentSession bool        `json:"currentSession" yaml:"currentSession"`
}

type ServicingStatus struct {
	Enabled        bool `json:"enabled" yaml:"enabled"`
	CurrentSession bool `json:"currentSession" yaml:"currentSession"`
}

// Snapshot is the typed view of one collection cycle. Sections whose store
// held no data are nil.
type Snapshot struct {
	Filter            *FilterStatus    `json:"filter,omitempty" yaml:"filter,omitempty"`
	Overlay           *OverlayStatus   `json:"overlay,omitempty" yaml:"overlay,omitempty"`
	OverlayNext       *OverlayStatus   `json:"overlayNext,omitempty" yaml:"overlayNext,omitempty"`
	OverlayConfig     *OverlayConfig   `json:"overlayConfig,omitempty" yaml:"overlayConfig,omitempty"`
	OverlayConfigNext *OverlayConfig   `json:"overlayConfigNext,omitempty" yaml:"overlayConfigNext,omitempty"`
	Servicing         *ServicingStatus `json:"servicing,omitempty" yaml:"servicing,omitempty"`
	ServicingNext     *ServicingStatus `json:"servicingNext,omitempty" yaml:"servicingNext,omitempty"`
	Volumes           []VolumeRecord   `json:"volumes" yaml:"volumes"`
	Protected         []string         `json:"protected" yaml:"protected"`
	ProtectedNext     []string         `json:"protectedNext" yaml:"protectedNext"`
}

// storeParser collects parse errors of one store.
type storeParser struct {
	store *PropertyStore
	errs  []error
}

func (p *storeParser) flag(key string) bool {
	v := p.store.Get(key)
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s.%s: %w", p.store.Schema().Name, key, err))
	}
	return b
}

func (p *storeParser) number(key string) uint64 {
	v := p.store.Get(key)
	if v == "" {
		return 0
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s.%s: %w", p.store.Schema().Name, key, err))
	}
	return n
}

// hasData reports whether the store was filled by a successful query.
func hasData(s *PropertyStore) bool {
	return s != nil && s.Get(KeyErrorOccurred) == "false"
}

func isSession(s *PropertyStore, current bool) bool {
	return strings.EqualFold(s.Get(PropCurrentSession), strconv.FormatBool(current))
}

// BuildSnapshot converts the stores of a cycle and a volume list into typed
// records. Values that are present but malformed are reported as errors; the
// rest of the snapshot is still filled.
func BuildSnapshot(stores *Stores, volumes []VolumeRecord) (*Snapshot, error) {
	snap := &Snapshot{
		Volumes:       volumes,
		Protected:     ProtectedDriveLetters(volumes, true),
		ProtectedNext: ProtectedDriveLetters(volumes, false),
	}
	if snap.Volumes == nil {
		snap.Volumes = []VolumeRecord{}
	}
	var errs []error

	if s := stores.Filter; hasData(s) {
		p := &storeParser{store: s}
		snap.Filter = &FilterStatus{
			ID:              s.Get(PropID),
			CurrentEnabled:  p.flag(PropCurrentEnabled),
			NextEnabled:     p.flag(PropNextEnabled),
			HORMEnabled:     p.flag(PropHORMEnabled),
			ShutdownPending: p.flag(PropShutdownPending),
		}
		errs = append(errs, p.errs...)
	}

	overlay := func(s *PropertyStore) *OverlayStatus {
		if !hasData(s) {
			return nil
		}
		p := &storeParser{store: s}
		o := &OverlayStatus{
			AvailableSpace:    p.number(PropAvailableSpace),
			CriticalThreshold: p.number(PropCriticalOverlayThreshold),
			Consumption:       p.number(PropOverlayConsumption),
			WarningThreshold:  p.number(PropWarningOverlayThreshold),
		}
		errs = append(errs, p.errs...)
		return o
	}
	snap.Overlay = overlay(stores.Overlay)
	snap.OverlayNext = overlay(stores.OverlayNext)

	overlayConfig := func(s *PropertyStore, current bool) *OverlayConfig {
		if !hasData(s) || !isSession(s, current) {
			return nil
		}
		p := &storeParser{store: s}
		c := &OverlayConfig{
			Type:           OverlayType(p.number(PropType)),
			MaximumSize:    p.number(PropMaximumSize),
			CurrentSession: current,
		}
		errs = append(errs, p.errs...)
		return c
	}
	snap.OverlayConfig = overlayConfig(stores.OverlayConfigCurrent, true)
	snap.OverlayConfigNext = overlayConfig(stores.OverlayConfigNext, false)

	servicing := func(s *PropertyStore, current bool) *ServicingStatus {
		if !hasData(s) || !isSession(s, current) {
			return nil
		}
		p := &storeParser{store: s}
		st := &ServicingStatus{
			Enabled:        p.flag(PropServicingEnabled),
			CurrentSession: current,
		}
		errs = append(errs, p.errs...)
		return st
	}
	snap.Servicing = servicing(stores.ServicingCurrent, true)
	snap.ServicingNext = servicing(stores.ServicingNext, false)

	return snap, errors.Join(errs...)
}
