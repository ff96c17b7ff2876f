package uwf

// Namespace holds the UWF management classes.
const Namespace = `ROOT\StandardCimv2\embedded`

// FeatureNamespace holds the optional-feature class used to detect UWF.
const FeatureNamespace = `ROOT\Cimv2`

const (
	ClassFilter          = "UWF_Filter"
	ClassOverlay         = "UWF_Overlay"
	ClassOverlayConfig   = "UWF_OverlayConfig"
	ClassVolume          = "UWF_Volume"
	ClassServicing       = "UWF_Servicing"
	ClassOptionalFeature = "Win32_OptionalFeature"
)

// Property names, verbatim as the providers publish them.
const (
	PropCurrentEnabled  = "CurrentEnabled"
	PropNextEnabled     = "NextEnabled"
	PropHORMEnabled     = "HORMEnabled"
	PropID              = "Id"
	PropShutdownPending = "ShutdownPending"

	PropAvailableSpace           = "AvailableSpace"
	PropCriticalOverlayThreshold = "CriticalOverlayThreshold"
	PropOverlayConsumption       = "OverlayConsumption"
	PropWarningOverlayThreshold  = "WarningOverlayThreshold"

	PropType           = "Type"
	PropMaximumSize    = "MaximumSize"
	PropCurrentSession = "CurrentSession"

	PropBindByDriveLetter = "BindByDriveLetter"
	PropCommitPending     = "CommitPending"
	PropDriveLetter       = "DriveLetter"
	PropProtected         = "Protected"
	PropVolumeName        = "VolumeName"

	PropServicingEnabled = "ServicingEnabled"

	PropInstallState = "InstallState"
)

// Diagnostic keys appended to every schema.
const (
	KeyErrorOccurred        = "error-occurred"
	KeyNativeErrorCode      = "native-error-code"
	KeyHResult              = "hresult"
	KeyErrorMessage         = "error-message"
	KeyConnectionTestFailed = "connection-test-failed"
)

// DiagnosticKeys is the fixed suffix of every schema, in order.
var DiagnosticKeys = []string{
	KeyErrorOccurred,
	KeyNativeErrorCode,
	KeyHResult,
	KeyErrorMessage,
	KeyConnectionTestFailed,
}

// NoNativeErrorCode is stored when a failure carries no management-layer code.
const NoNativeErrorCode = "NoNativeErrorCode"

// Schema declares the properties of interest of one management class.
type Schema struct {
	Name       string
	Class      string
	Properties []string
}

// Query returns the select-all query for the schema's class.
func (s Schema) Query() string {
	return SelectAll(s.Class)
}

// Keys returns the schema properties followed by the diagnostic keys.
func (s Schema) Keys() []string {
	keys := make([]string, 0, len(s.Properties)+len(DiagnosticKeys))
	keys = append(keys, s.Properties...)
	return append(keys, DiagnosticKeys...)
}

// SelectAll builds a select-all WQL query for class.
func SelectAll(class string) string {
	return "SELECT * FROM " + class
}

var (
	FilterSchema = Schema{
		Name:  "filter",
		Class: ClassFilter,
		Properties: []string{
			PropCurrentEnabled, PropNextEnabled, PropHORMEnabled, PropID, PropShutdownPending,
		},
	}

	OverlaySchema = Schema{
		Name:  "overlay",
		Class: ClassOverlay,
		Properties: []string{
			PropAvailableSpace, PropCriticalOverlayThreshold, PropOverlayConsumption, PropWarningOverlayThreshold,
		},
	}

	OverlayConfigCurrentSchema = Schema{
		Name:       "overlay-config-current",
		Class:      ClassOverlayConfig,
		Properties: []string{PropType, PropMaximumSize, PropCurrentSession},
	}

	OverlayConfigNextSchema = Schema{
		Name:       "overlay-config-next",
		Class:      ClassOverlayConfig,
		Properties: []string{PropType, PropMaximumSize, PropCurrentSession},
	}

	VolumeSchema = Schema{
		Name:  "volume",
		Class: ClassVolume,
		Properties: []string{
			PropBindByDriveLetter, PropCommitPending, PropCurrentSession, PropDriveLetter, PropProtected, PropVolumeName,
		},
	}

	ServicingSchema = Schema{
		Name:       "servicing",
		Class:      ClassServicing,
		Properties: []string{PropCurrentSession, PropServicingEnabled},
	}
)

// Schemas lists every declared schema.
func Schemas() []Schema {
	return []Schema{
		FilterSchema,
		OverlaySchema,
		OverlayConfigCurrentSchema,
		OverlayConfigNextSchema,
		VolumeSchema,
		ServicingSchema,
	}
}
