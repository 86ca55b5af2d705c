package errors

import (
	"fmt"
	"time"
)

// StampError describes a failure while placing or embedding a field
type StampError struct {
	Type        ErrorType `json:"type"`
	Message     string    `json:"message"`
	Context     string    `json:"context,omitempty"`
	FieldID     string    `json:"field_id,omitempty"`
	PageNumber  int       `json:"page_number,omitempty"`
	Recoverable bool      `json:"recoverable"`
	Timestamp   time.Time `json:"timestamp"`
	Err         error     `json:"-"`
}

// ErrorType represents the categories of stamping errors
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeInvalidGeometry: non-positive rendering dimensions or
	// percentages outside their range. Raised before a field exists.
	ErrorTypeInvalidGeometry
	// ErrorTypePageIndexOutOfRange: the field targets a page the document
	// does not have. The field is skipped.
	ErrorTypePageIndexOutOfRange
	// ErrorTypeUnsupportedImageFormat: the value is neither PNG nor JPEG.
	ErrorTypeUnsupportedImageFormat
	// ErrorTypeCodec: the PDF bytes cannot be parsed or written.
	ErrorTypeCodec
)

// ErrorSeverity indicates how critical an error is
type ErrorSeverity int

const (
	SeverityInfo ErrorSeverity = iota
	SeverityWarning
	SeverityError
	SeverityFatal
)

// Sentinels for use with errors.Is. Matching compares the error type only.
var (
	ErrInvalidGeometry        = &StampError{Type: ErrorTypeInvalidGeometry, Message: "invalid geometry"}
	ErrPageIndexOutOfRange    = &StampError{Type: ErrorTypePageIndexOutOfRange, Message: "page index out of range"}
	ErrUnsupportedImageFormat = &StampError{Type: ErrorTypeUnsupportedImageFormat, Message: "unsupported image format"}
	ErrCodec                  = &StampError{Type: ErrorTypeCodec, Message: "pdf codec error"}
)

// Error implements the error interface
func (e *StampError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Type.String(), e.Message)
	if e.FieldID != "" {
		msg += fmt.Sprintf(" (field %s)", e.FieldID)
	}
	if e.Context != "" {
		msg += ": " + e.Context
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *StampError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a StampError of the same type
func (e *StampError) Is(target error) bool {
	t, ok := target.(*StampError)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// String returns a string representation of the ErrorType
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeInvalidGeometry:
		return "INVALID_GEOMETRY"
	case ErrorTypePageIndexOutOfRange:
		return "PAGE_INDEX_OUT_OF_RANGE"
	case ErrorTypeUnsupportedImageFormat:
		return "UNSUPPORTED_IMAGE_FORMAT"
	case ErrorTypeCodec:
		return "CODEC_ERROR"
	default:
		return "UNKNOWN"
	}
}

// GetSeverity returns the severity level for a given error type
func (et ErrorType) GetSeverity() ErrorSeverity {
	switch et {
	case ErrorTypePageIndexOutOfRange:
		return SeverityWarning
	case ErrorTypeInvalidGeometry, ErrorTypeUnsupportedImageFormat:
		return SeverityError
	case ErrorTypeCodec:
		return SeverityFatal
	default:
		return SeverityError
	}
}

// IsRecoverable determines if a finishing run can continue past this error
func (et ErrorType) IsRecoverable() bool {
	// Only a missing page is skipped; silently dropping an image field
	// would produce a visibly incomplete document.
	return et == ErrorTypePageIndexOutOfRange
}

// New creates a new StampError
func New(errorType ErrorType, message string) *StampError {
	return &StampError{
		Type:        errorType,
		Message:     message,
		Recoverable: errorType.IsRecoverable(),
		Timestamp:   time.Now(),
	}
}

// Wrap wraps err as a StampError of the given type
func Wrap(errorType ErrorType, message string, err error) *StampError {
	e := New(errorType, message)
	e.Err = err
	return e
}

// WithContext adds context to an existing StampError
func (e *StampError) WithContext(context string) *StampError {
	e.Context = context
	return e
}

// WithField records the field the error belongs to
func (e *StampError) WithField(fieldID string) *StampError {
	e.FieldID = fieldID
	return e
}

// WithPage adds page number information to an existing StampError
func (e *StampError) WithPage(pageNumber int) *StampError {
	e.PageNumber = pageNumber
	return e
}

// GetSeverity returns the severity of this specific error
func (e *StampError) GetSeverity() ErrorSeverity {
	return e.Type.GetSeverity()
}

// IsCritical returns true if this error is fatal
func (e *StampError) IsCritical() bool {
	return e.GetSeverity() == SeverityFatal
}

// ErrorCollection gathers the warnings of one finishing run
type ErrorCollection struct {
	Errors   []*StampError `json:"errors"`
	Warnings []*StampError `json:"warnings"`
}

// NewErrorCollection creates an empty collection
func NewErrorCollection() *ErrorCollection {
	return &ErrorCollection{
		Errors:   make([]*StampError, 0),
		Warnings: make([]*StampError, 0),
	}
}

// Add adds an error to the appropriate list based on severity
func (ec *ErrorCollection) Add(err *StampError) {
	severity := err.GetSeverity()
	if severity == SeverityWarning || severity == SeverityInfo {
		ec.Warnings = append(ec.Warnings, err)
	} else {
		ec.Errors = append(ec.Errors, err)
	}
}

// Count returns the total number of errors and warnings
func (ec *ErrorCollection) Count() (errors, warnings int) {
	return len(ec.Errors), len(ec.Warnings)
}

// Summary returns a text summary of all errors and warnings
func (ec *ErrorCollection) Summary() string {
	errorCount, warningCount := ec.Count()
	if errorCount == 0 && warningCount == 0 {
		return "No errors or warnings"
	}
	return fmt.Sprintf("Found %d error(s) and %d warning(s)", errorCount, warningCount)
}
