package uwf

import (
	"fmt"
	"maps"
	"strconv"
)

// PropertyStore holds the string values fetched for one schema. Its key set is
// fixed at construction; touching any other key panics. A store is owned by one
// query at a time and is not safe for concurrent use.
type PropertyStore struct {
	schema Schema
	keys   []string
	values map[string]string
}

// NewStore returns a store with every key of schema mapped to "".
func NewStore(schema Schema) *PropertyStore {
	s := &PropertyStore{
		schema: schema,
		keys:   schema.Keys(),
	}
	s.Reset()
	return s
}

// Reset returns every value to "".
func (s *PropertyStore) Reset() {
	s.values = make(map[string]string, len(s.keys))
	for _, k := range s.keys {
		s.values[k] = ""
	}
}

// ClearAndReinitialize resets each store to its initial state. Nil stores are skipped.
func ClearAndReinitialize(stores ...*PropertyStore) {
	for _, s := range stores {
		if s != nil {
			s.Reset()
		}
	}
}

// Schema returns the schema the store was built from.
func (s *PropertyStore) Schema() Schema { return s.schema }

// Keys returns the store's keys in schema order.
func (s *PropertyStore) Keys() []string {
	return append([]string(nil), s.keys...)
}

// Has reports whether key belongs to the store's schema.
func (s *PropertyStore) Has(key string) bool {
	_, ok := s.values[key]
	return ok
}

// Get returns the value of key. It panics if key is not in the schema.
func (s *PropertyStore) Get(key string) string {
	v, ok := s.values[key]
	if !ok {
		panic(fmt.Sprintf("uwf: store %q has no key %q", s.schema.Name, key))
	}
	return v
}

// Set stores value under key. It panics if key is not in the schema.
func (s *PropertyStore) Set(key, value string) {
	if _, ok := s.values[key]; !ok {
		panic(fmt.Sprintf("uwf: store %q has no key %q", s.schema.Name, key))
	}
	s.values[key] = value
}

// Values returns a copy of the store contents.
func (s *PropertyStore) Values() map[string]string {
	return maps.Clone(s.values)
}

// ErrorOccurred reports whether the last query into the store failed.
func (s *PropertyStore) ErrorOccurred() bool {
	return s.values[KeyErrorOccurred] == "true"
}

// ConnectionTestFailed reports whether the host failed its reachability test.
func (s *PropertyStore) ConnectionTestFailed() bool {
	return s.values[KeyConnectionTestFailed] == "true"
}

// Diagnostics is the typed view of a store's diagnostic keys.
type Diagnostics struct {
	ErrorOccurred        bool
	NativeErrorCode      string
	HResult              int32
	Message              string
	ConnectionTestFailed bool
}

// Diagnostics parses the diagnostic keys of the store.
func (s *PropertyStore) Diagnostics() Diagnostics {
	d := Diagnostics{
		ErrorOccurred:        s.ErrorOccurred(),
		NativeErrorCode:      s.values[KeyNativeErrorCode],
		Message:              s.values[KeyErrorMessage],
		ConnectionTestFailed: s.ConnectionTestFailed(),
	}
	if hr, err := strconv.ParseInt(s.values[KeyHResult], 10, 32); err == nil {
		d.HResult = int32(hr)
	}
	return d
}

// setFailure records a classified failure in the diagnostic keys.
func (s *PropertyStore) setFailure(native string, hresult int32, message string) {
	s.values[KeyErrorOccurred] = "true"
	s.values[KeyNativeErrorCode] = native
	s.values[KeyHResult] = strconv.FormatInt(int64(hresult), 10)
	s.values[KeyErrorMessage] = message
}

// Stores groups the stores filled by one collection cycle.
type Stores struct {
	Filter               *PropertyStore
	Overlay              *PropertyStore
	OverlayNext          *PropertyStore
	OverlayConfigCurrent *PropertyStore
	OverlayConfigNext    *PropertyStore
	Volume               *PropertyStore
	ServicingCurrent     *PropertyStore
	ServicingNext        *PropertyStore
}

// NewStores returns pristine stores for one cycle.
func NewStores() *Stores {
	return &Stores{
		Filter:               NewStore(FilterSchema),
		Overlay:              NewStore(OverlaySchema),
		OverlayNext:          NewStore(OverlaySchema),
		OverlayConfigCurrent: NewStore(OverlayConfigCurrentSchema),
		OverlayConfigNext:    NewStore(OverlayConfigNextSchema),
		Volume:               NewStore(VolumeSchema),
		ServicingCurrent:     NewStore(ServicingSchema),
		ServicingNext:        NewStore(ServicingSchema),
	}
}

// All returns the stores in a fixed order.
func (s *Stores) All() []*PropertyStore {
	return []*PropertyStore{
		s.Filter,
		s.Overlay,
		s.OverlayNext,
		s.OverlayConfigCurrent,
		s.OverlayConfigNext,
		s.Volume,
		s.ServicingCurrent,
		s.ServicingNext,
	}
}

// Reset reseeds every store.
func (s *Stores) Reset() {
	ClearAndReinitialize(s.All()...)
}

// target is one store of a cycle and the instance level it is read from.
type target struct {
	name  string
	store *PropertyStore
	level int
}

func (s *Stores) targets() []target {
	return []target{
		{"filter", s.Filter, 0},
		{"overlay", s.Overlay, 0},
		{"overlay-next", s.OverlayNext, 1},
		{"overlay-config-current", s.OverlayConfigCurrent, 0},
		{"overlay-config-next", s.OverlayConfigNext, 1},
		{"volume", s.Volume, 0},
		{"servicing-current", s.ServicingCurrent, 0},
		{"servicing-next", s.ServicingNext, 1},
	}
}
