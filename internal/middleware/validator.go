package middleware

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	tenantPattern   = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)
	documentPattern = regexp.MustCompile(`^[a-zA-Z0-9._:-]{1,128}$`)
)

// MaxDocumentTextBytes bounds the text accepted by the analyze endpoint.
const MaxDocumentTextBytes = 5 << 20

// ValidateTenantID validates tenant ID format
func ValidateTenantID(tenant string) error {
	if tenant == "" {
		return fmt.Errorf("tenant ID cannot be empty")
	}
	if !tenantPattern.MatchString(tenant) {
		return fmt.Errorf("invalid tenant ID format (alphanumeric, dash, underscore only, max 64 chars)")
	}
	return nil
}

// ValidateDocumentID allows the identifiers document systems commonly emit.
func ValidateDocumentID(id string) error {
	if id == "" {
		return fmt.Errorf("document_id is required")
	}
	if !documentPattern.MatchString(id) || strings.Contains(id, "..") {
		return fmt.Errorf("invalid document_id format")
	}
	return nil
}

// ValidateAnalyzeRequest checks the inbound analyze body before it reaches the pipeline.
func ValidateAnalyzeRequest(documentID string, revision int, text string) error {
	if err := ValidateDocumentID(documentID); err != nil {
		return err
	}
	if revision < 0 {
		return fmt.Errorf("revision must be >= 0")
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("text is required")
	}
	if len(text) > MaxDocumentTextBytes {
		return fmt.Errorf("text exceeds %d bytes", MaxDocumentTextBytes)
	}
	return nil
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")

	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' || r == '\r' {
			result.WriteRune(r)
		}
	}
	return strings.TrimSpace(result.String())
}

// ValidateLimit validates pagination limit
func ValidateLimit(limit int) int {
	if limit <= 0 {
		return 20 // default
	}
	if limit > 100 {
		return 100 // max limit
	}
	return limit
}
