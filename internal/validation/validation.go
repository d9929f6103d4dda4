// Package validation provides input validation for the Coachwise API.
package validation

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
)

// MaxRequestSize is the maximum request body size (1MB)
const MaxRequestSize = 1 << 20

// MaxNoteLength bounds human-entered dispute messages and resolution notes.
const MaxNoteLength = 4000

// idRegex validates prefixed entity IDs (e.g. "dsp_a1b2...", "bk_0f3e...").
var idRegex = regexp.MustCompile(`^[a-z]{2,8}_[a-f0-9]{8,32}$`)

// currencyRegex validates 3-letter uppercase ISO currency codes.
var currencyRegex = regexp.MustCompile(`^[A-Z]{3}$`)

// RequestSizeMiddleware limits request body size
func RequestSizeMiddleware(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// IsValidID checks if a string is a well-formed prefixed entity ID.
func IsValidID(id string) bool {
	return idRegex.MatchString(id)
}

// IsValidCurrency checks if a string is a 3-letter ISO currency code.
func IsValidCurrency(code string) bool {
	return currencyRegex.MatchString(code)
}

// SanitizeNote trims whitespace, strips null bytes, and caps length.
func SanitizeNote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > MaxNoteLength {
		s = s[:MaxNoteLength]
	}
	return strings.ReplaceAll(s, "\x00", "")
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	return e[0].Field + ": " + e[0].Message
}

// Validate validates a request and returns errors
func Validate(validators ...func() *ValidationError) ValidationErrors {
	var errors ValidationErrors
	for _, v := range validators {
		if err := v(); err != nil {
			errors = append(errors, *err)
		}
	}
	return errors
}

// Required checks if a field is non-empty
func Required(field, value string) func() *ValidationError {
	return func() *ValidationError {
		if strings.TrimSpace(value) == "" {
			return &ValidationError{Field: field, Message: "is required"}
		}
		return nil
	}
}

// ValidID checks if a field is a well-formed entity ID.
func ValidID(field, value string) func() *ValidationError {
	return func() *ValidationError {
		if value == "" {
			return nil // Use Required for required fields
		}
		if !IsValidID(value) {
			return &ValidationError{Field: field, Message: "must be a prefixed entity ID"}
		}
		return nil
	}
}

// ValidCurrency checks if a field is a 3-letter ISO currency code.
func ValidCurrency(field, value string) func() *ValidationError {
	return func() *ValidationError {
		if value == "" {
			return nil
		}
		if !IsValidCurrency(value) {
			return &ValidationError{Field: field, Message: "must be a 3-letter ISO currency code"}
		}
		return nil
	}
}

// NonNegativeCents checks a minor-unit amount is not negative.
func NonNegativeCents(field string, cents int64) func() *ValidationError {
	return func() *ValidationError {
		if cents < 0 {
			return &ValidationError{Field: field, Message: "must not be negative"}
		}
		return nil
	}
}

// MaxLength checks if a field exceeds max length
func MaxLength(field, value string, max int) func() *ValidationError {
	return func() *ValidationError {
		if len(value) > max {
			return &ValidationError{Field: field, Message: "exceeds maximum length"}
		}
		return nil
	}
}

// IDParamMiddleware validates the named URL parameter as an entity ID on
// routes that use it. Rejects malformed IDs before they reach handlers.
func IDParamMiddleware(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param(param)
		if id != "" && !IsValidID(id) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_id",
				"message": param + " must be a prefixed entity ID",
			})
			return
		}
		c.Next()
	}
}
