package config

import (
	"fmt"
	"strings"
)

// ErrorCode is a caller-visible numeric code with its message
type ErrorCode struct {
	Code    int    `mapstructure:"code" json:"code"`
	Message string `mapstructure:"message" json:"message"`
}

// Format renders the message, filling any verbs with args
func (e ErrorCode) Format(args ...interface{}) string {
	if len(args) == 0 || !strings.Contains(e.Message, "%") {
		return e.Message
	}
	return fmt.Sprintf(e.Message, args...)
}

// ErrorCodes maps every failure condition of a job to the code reported to callers
type ErrorCodes struct {
	PreconversionTimeout  ErrorCode `mapstructure:"preconversion_timeout"`
	PreconversionNoOutput ErrorCode `mapstructure:"preconversion_no_output"`
	PreconversionFailed   ErrorCode `mapstructure:"preconversion_failed"`
	InvalidOutput         ErrorCode `mapstructure:"invalid_output"`
	Internal              ErrorCode `mapstructure:"internal"`
	FinalizationFailed    ErrorCode `mapstructure:"finalization_failed"`
	StorageUnavailable    ErrorCode `mapstructure:"storage_unavailable"`
	UploadFailed          ErrorCode `mapstructure:"upload_failed"`
	InvalidDocument       ErrorCode `mapstructure:"invalid_document"`
	InvalidPassword       ErrorCode `mapstructure:"invalid_password"`
	ConversionFailed      ErrorCode `mapstructure:"conversion_failed"`
	DurationExceeded      ErrorCode `mapstructure:"duration_exceeded"`
	Cancelled             ErrorCode `mapstructure:"cancelled"`
}

// DefaultErrorCodes returns the built-in table
func DefaultErrorCodes() ErrorCodes {
	return ErrorCodes{
		PreconversionTimeout:  ErrorCode{1050, "Maximum preconversion duration exceeded"},
		PreconversionNoOutput: ErrorCode{1060, "Preconversion did not produce a PDF"},
		PreconversionFailed:   ErrorCode{1070, "Internal error processing file"},
		InvalidOutput:         ErrorCode{1080, "Invalid output method"},
		Internal:              ErrorCode{1100, "An internal error has occurred"},
		FinalizationFailed:    ErrorCode{1110, "Internal error while finalizing output"},
		StorageUnavailable:    ErrorCode{1120, "Job state storage unavailable"},
		UploadFailed:          ErrorCode{1130, "Failed to upload converted output"},
		InvalidDocument:       ErrorCode{1200, "Invalid or unreadable PDF document"},
		InvalidPassword:       ErrorCode{1210, "Invalid or missing PDF password"},
		ConversionFailed:      ErrorCode{1220, "Error occurred whilst converting the file"},
		DurationExceeded:      ErrorCode{1230, "Conversion exceeded max duration of %dms"},
		Cancelled:             ErrorCode{1250, "Conversion cancelled"},
	}
}

func (c *ErrorCodes) entries() map[string]*ErrorCode {
	return map[string]*ErrorCode{
		"preconversion_timeout":   &c.PreconversionTimeout,
		"preconversion_no_output": &c.PreconversionNoOutput,
		"preconversion_failed":    &c.PreconversionFailed,
		"invalid_output":          &c.InvalidOutput,
		"internal":                &c.Internal,
		"finalization_failed":     &c.FinalizationFailed,
		"storage_unavailable":     &c.StorageUnavailable,
		"upload_failed":           &c.UploadFailed,
		"invalid_document":        &c.InvalidDocument,
		"invalid_password":        &c.InvalidPassword,
		"conversion_failed":       &c.ConversionFailed,
		"duration_exceeded":       &c.DurationExceeded,
		"cancelled":               &c.Cancelled,
	}
}

// Validate checks that every code is set and no two conditions share a code
func (c *ErrorCodes) Validate() error {
	seen := make(map[int]string)
	for name, code := range c.entries() {
		if code.Code <= 0 {
			return fmt.Errorf("error_codes.%s.code must be positive", name)
		}
		if code.Message == "" {
			return fmt.Errorf("error_codes.%s.message is required", name)
		}
		if other, ok := seen[code.Code]; ok {
			return fmt.Errorf("error_codes.%s and error_codes.%s share code %d", name, other, code.Code)
		}
		seen[code.Code] = name
	}
	return nil
}
