package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors for the failure classes of a rescoring run
var (
	// ErrConfiguration is returned for invalid or missing configuration
	ErrConfiguration = errors.New("configuration error")

	// ErrPatternMismatch is returned when a configured regex does not match or capture
	ErrPatternMismatch = errors.New("pattern mismatch")

	// ErrMalformedInput is returned when an input file cannot be parsed
	ErrMalformedInput = errors.New("malformed input")

	// ErrUnsupportedFormat is returned when a PSM file type is unknown or cannot be inferred
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrMissingFeatures is returned when feature filtering would remove every PSM
	ErrMissingFeatures = errors.New("missing rescoring features")

	// ErrExternalTool is returned when an external command is missing or fails
	ErrExternalTool = errors.New("external tool error")

	// ErrLengthMismatch is returned when bulk assignment values do not match the collection size
	ErrLengthMismatch = errors.New("length mismatch")
)

// ConfigurationError represents an invalid configuration value with a remediation hint
type ConfigurationError struct {
	Option  string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Option != "" {
		return fmt.Sprintf("configuration error for '%s': %s", e.Option, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// NewConfigurationError creates a new ConfigurationError
func NewConfigurationError(option, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Option: option, Message: fmt.Sprintf(format, args...)}
}

// PatternMismatchError names the identifier a pattern failed to match
type PatternMismatchError struct {
	Option  string
	Pattern string
	ID      string
}

func (e *PatternMismatchError) Error() string {
	return fmt.Sprintf("`%s` pattern '%s' could not be matched to spectrum ID '%s'; ensure that the regex contains a capturing group",
		e.Option, e.Pattern, e.ID)
}

func (e *PatternMismatchError) Is(target error) bool {
	return target == ErrPatternMismatch
}

// MalformedInputError represents a parse failure in an input file
type MalformedInputError struct {
	Path string
	Line int // 0 when unknown
	Err  error
}

func (e *MalformedInputError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("malformed input in %s at line %d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("malformed input in %s: %v", e.Path, e.Err)
}

func (e *MalformedInputError) Is(target error) bool {
	return target == ErrMalformedInput
}

func (e *MalformedInputError) Unwrap() error { return e.Err }

// UnsupportedFormatError represents an unknown or non-inferable PSM file type
type UnsupportedFormatError struct {
	Path     string
	FileType string
}

func (e *UnsupportedFormatError) Error() string {
	if e.FileType == "" || e.FileType == "infer" {
		return fmt.Sprintf("could not infer PSM file type for '%s', please specify `psm_file_type`", e.Path)
	}
	return fmt.Sprintf("unsupported PSM file type '%s' for '%s'", e.FileType, e.Path)
}

func (e *UnsupportedFormatError) Is(target error) bool {
	return target == ErrUnsupportedFormat
}

// MissingFeatureError reports PSMs removed for lacking the full feature set
type MissingFeatureError struct {
	Removed int
	Missing []string
}

func (e *MissingFeatureError) Error() string {
	missing := append([]string(nil), e.Missing...)
	sort.Strings(missing)
	return fmt.Sprintf("all %d PSMs were missing one or more rescoring feature(s): %s",
		e.Removed, strings.Join(missing, ", "))
}

func (e *MissingFeatureError) Is(target error) bool {
	return target == ErrMissingFeatures
}

// ExternalToolError names a command that could not be found or exited non-zero
type ExternalToolError struct {
	Command string
	Output  string
	Err     error
}

func (e *ExternalToolError) Error() string {
	msg := fmt.Sprintf("could not run command '%s': %v; please ensure that the command is installed and available in your PATH",
		e.Command, e.Err)
	if e.Output != "" {
		msg += "\n" + e.Output
	}
	return msg
}

func (e *ExternalToolError) Is(target error) bool {
	return target == ErrExternalTool
}

func (e *ExternalToolError) Unwrap() error { return e.Err }

// LengthMismatchError represents a bulk assignment with the wrong number of values
type LengthMismatchError struct {
	Field string
	Want  int
	Got   int
}

func (e *LengthMismatchError) Error() string {
	return fmt.Sprintf("cannot assign %d values to field '%s' of a collection with %d PSMs", e.Got, e.Field, e.Want)
}

func (e *LengthMismatchError) Is(target error) bool {
	return target == ErrLengthMismatch
}
