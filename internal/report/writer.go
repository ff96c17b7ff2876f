package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/nhdewitt/uwfmon/internal/uwf"
)

// Format represents the output format type
type Format string

const (
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatTable Format = "table"
)

func (f Format) IsUnknown() bool {
	switch f {
	case FormatJSON, FormatYAML, FormatTable:
		return false
	default:
		return true
	}
}

// SupportedFormats returns every accepted output format.
func SupportedFormats() []string {
	return []string{string(FormatJSON), string(FormatYAML), string(FormatTable)}
}

var (
	onColor   = color.New(color.FgGreen)
	offColor  = color.New(color.FgYellow)
	failColor = color.New(color.FgRed, color.Bold)
)

// Writer renders envelopes in one format.
type Writer struct {
	format Format
	output io.Writer
}

// NewWriter returns a writer for format. A nil output selects os.Stdout and an
// unknown format falls back to JSON.
func NewWriter(format Format, output io.Writer) *Writer {
	if output == nil {
		output = os.Stdout
	}
	if format.IsUnknown() {
		format = FormatJSON
	}
	return &Writer{format: format, output: output}
}

func (w *Writer) Format() Format { return w.format }

func (w *Writer) Write(env Envelope) error {
	switch w.format {
	case FormatYAML:
		enc := yaml.NewEncoder(w.output)
		enc.SetIndent(2)
		if err := enc.Encode(env); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case FormatTable:
		return w.writeTable(env)
	default:
		enc := json.NewEncoder(w.output)
		enc.SetIndent("", "  ")
		if err := enc.Encode(env); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	}
}

func (w *Writer) writeTable(env Envelope) error {
	tw := tabwriter.NewWriter(w.output, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Host:\t%s\n", env.Hostname)
	fmt.Fprintf(tw, "Time:\t%s\n", env.Timestamp.Format("2006-01-02 15:04:05Z07:00"))

	switch d := env.Data.(type) {
	case StatusReport:
		writeStatus(tw, d)
	case *StatusReport:
		writeStatus(tw, *d)
	case VolumeReport:
		writeVolumes(tw, d)
	case InstallReport:
		fmt.Fprintf(tw, "Feature:\t%s\n", d.State)
		if d.Error != "" {
			fmt.Fprintf(tw, "Error:\t%s\n", failColor.Sprint(d.Error))
		}
	case ActionReport:
		fmt.Fprintf(tw, "Action:\t%s (%s)\n", d.Action, d.Method)
		if d.Error != "" {
			fmt.Fprintf(tw, "Result:\t%s\n", failColor.Sprint(d.Error))
		} else {
			fmt.Fprintf(tw, "Result:\t%s\n", onColor.Sprint("completed"))
		}
	default:
		fmt.Fprintf(tw, "Data:\t%v\n", d)
	}
	return tw.Flush()
}

func onOff(b bool) string {
	if b {
		return onColor.Sprint("on")
	}
	return offColor.Sprint("off")
}

const unavailable = "-"

func writeStatus(tw io.Writer, r StatusReport) {
	fmt.Fprintf(tw, "Feature:\t%s\n", r.Installed)
	status := string(r.Status.Level)
	if !r.Status.OK() {
		status = failColor.Sprintf("%s: %s", r.Status.Level, r.Status.Message)
	}
	fmt.Fprintf(tw, "Status:\t%s\n", status)

	s := r.Snapshot
	if s == nil {
		return
	}

	if f := s.Filter; f != nil {
		fmt.Fprintf(tw, "Filter:\t%s\tnext: %s\n", onOff(f.CurrentEnabled), onOff(f.NextEnabled))
		fmt.Fprintf(tw, "HORM:\t%s\n", onOff(f.HORMEnabled))
		fmt.Fprintf(tw, "Shutdown pending:\t%t\n", f.ShutdownPending)
	} else {
		fmt.Fprintf(tw, "Filter:\t%s\n", unavailable)
	}

	if o := s.Overlay; o != nil {
		fmt.Fprintf(tw, "Overlay used:\t%d MB\tavailable: %d MB\n", o.Consumption, o.AvailableSpace)
		fmt.Fprintf(tw, "Thresholds:\twarning %d MB\tcritical %d MB\n", o.WarningThreshold, o.CriticalThreshold)
	}
	if o := s.OverlayNext; o != nil {
		fmt.Fprintf(tw, "Next thresholds:\twarning %d MB\tcritical %d MB\n", o.WarningThreshold, o.CriticalThreshold)
	}

	writeOverlayConfig(tw, "Overlay", s.OverlayConfig)
	writeOverlayConfig(tw, "Next overlay", s.OverlayConfigNext)

	if sv := s.Servicing; sv != nil {
		fmt.Fprintf(tw, "Servicing:\t%s\n", onOff(sv.Enabled))
	}
	if sv := s.ServicingNext; sv != nil {
		fmt.Fprintf(tw, "Next servicing:\t%s\n", onOff(sv.Enabled))
	}

	fmt.Fprintf(tw, "Protected:\t%s\n", letters(s.Protected))
	fmt.Fprintf(tw, "Next protected:\t%s\n", letters(s.ProtectedNext))
}

func writeOverlayConfig(tw io.Writer, label string, c *uwf.OverlayConfig) {
	if c == nil {
		fmt.Fprintf(tw, "%s:\t%s\n", label, unavailable)
		return
	}
	fmt.Fprintf(tw, "%s:\t%s\tmax %d MB\n", label, c.Type, c.MaximumSize)
}

func writeVolumes(tw io.Writer, r VolumeReport) {
	fmt.Fprintln(tw, "DRIVE\tPROTECTED\tSESSION\tCOMMIT PENDING\tVOLUME")
	for _, v := range r.Volumes {
		session := "next"
		if v.CurrentSession {
			session = "current"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n", v.DriveLetter, onOff(v.Protected), session, v.CommitPending, v.VolumeName)
	}
}

func letters(l []string) string {
	if len(l) == 0 {
		return unavailable
	}
	return strings.Join(l, " ")
}
