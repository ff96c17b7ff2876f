package report

import (
	"encoding/json"
	"time"

	"github.com/nhdewitt/uwfmon/internal/uwf"
)

// Payload is any report body carried by an Envelope.
type Payload interface {
	PayloadType() string
}

// Envelope wraps a payload with metadata for output
type Envelope struct {
	Type      string    `json:"type" yaml:"type"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Hostname  string    `json:"hostname" yaml:"hostname"`
	Data      Payload   `json:"data" yaml:"data"`
}

func NewEnvelope(host string, data Payload) Envelope {
	if host == "" {
		host = "localhost"
	}
	return Envelope{
		Type:      data.PayloadType(),
		Timestamp: time.Now().UTC(),
		Hostname:  host,
		Data:      data,
	}
}

// MarshalJSON ensures serialization with the concrete payload type
func (e Envelope) MarshalJSON() ([]byte, error) {
	type Alias Envelope
	return json.Marshal(&struct {
		Alias
		Data any `json:"data"`
	}{
		Alias: Alias(e),
		Data:  e.Data,
	})
}

// StatusReport is the result of a full status collection.
type StatusReport struct {
	Cycle     string        `json:"cycle" yaml:"cycle"`
	Installed string        `json:"installed" yaml:"installed"`
	Outcome   string        `json:"outcome" yaml:"outcome"`
	Code      string        `json:"code" yaml:"code"`
	Status    Status        `json:"status" yaml:"status"`
	Snapshot  *uwf.Snapshot `json:"snapshot,omitempty" yaml:"snapshot,omitempty"`
	Duration  string        `json:"duration" yaml:"duration"`
}

type VolumeReport struct {
	Volumes       []uwf.VolumeRecord `json:"volumes" yaml:"volumes"`
	Protected     []string           `json:"protected" yaml:"protected"`
	ProtectedNext []string           `json:"protectedNext" yaml:"protectedNext"`
}

type InstallReport struct {
	State     string `json:"state" yaml:"state"`
	Installed bool   `json:"installed" yaml:"installed"`
	Code      string `json:"code" yaml:"code"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
}

type ActionReport struct {
	Action string `json:"action" yaml:"action"`
	Method string `json:"method" yaml:"method"`
	Code   string `json:"code" yaml:"code"`
	Error  string `json:"error,omitempty" yaml:"error,omitempty"`
}

func (StatusReport) PayloadType() string  { return "status" }
func (VolumeReport) PayloadType() string  { return "volumes" }
func (InstallReport) PayloadType() string { return "feature" }
func (ActionReport) PayloadType() string  { return "action" }

// NewVolumeReport splits vols into current and next session protection.
func NewVolumeReport(vols []uwf.VolumeRecord) VolumeReport {
	if vols == nil {
		vols = []uwf.VolumeRecord{}
	}
	return VolumeReport{
		Volumes:       vols,
		Protected:     uwf.ProtectedDriveLetters(vols, true),
		ProtectedNext: uwf.ProtectedDriveLetters(vols, false),
	}
}
