// Package validation checks names, paths and origins that arrive from
// uploads, the command line and HTTP requests.
package validation

import (
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/conneroisu/reportsmith/internal/errors"
)

// TemplateExtension is the only extension accepted for template files.
const TemplateExtension = ".jsx"

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,127}$`)

// ValidateTemplateName checks a template identifier. Names are used as file
// stems and URL segments, so only letters, digits, '-' and '_' are allowed.
func ValidateTemplateName(name string) error {
	if name == "" {
		return errors.NewValidationError(errors.ErrCodeInvalidName, "template name cannot be empty")
	}
	if !namePattern.MatchString(name) {
		return errors.NewValidationError(errors.ErrCodeInvalidName,
			fmt.Sprintf("invalid template name %q", name))
	}
	return nil
}

// ValidateStyleID checks a style identifier. An empty id is allowed and
// selects no presentation object.
func ValidateStyleID(id string) error {
	if id == "" {
		return nil
	}
	if !namePattern.MatchString(id) {
		return errors.NewValidationError(errors.ErrCodeInvalidName,
			fmt.Sprintf("invalid style id %q", id))
	}
	return nil
}

// ValidateFileExtension validates file extensions against an allowlist
func ValidateFileExtension(filename string, allowedExtensions []string) error {
	if filename == "" {
		return errors.NewValidationError(errors.ErrCodeInvalidExtension, "filename cannot be empty")
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return errors.NewValidationError(errors.ErrCodeInvalidExtension, "file must have an extension")
	}

	for _, allowed := range allowedExtensions {
		if ext == strings.ToLower(allowed) {
			return nil
		}
	}

	return errors.NewValidationError(errors.ErrCodeInvalidExtension,
		fmt.Sprintf("file extension '%s' is not allowed", ext))
}

// TemplateNameFromFile derives the template name from an uploaded or
// dropped-in file name such as "usage-table.jsx".
func TemplateNameFromFile(filename string) (string, error) {
	base := filepath.Base(filepath.ToSlash(filename))
	if err := ValidateFileExtension(base, []string{TemplateExtension}); err != nil {
		return "", err
	}
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if err := ValidateTemplateName(name); err != nil {
		return "", err
	}
	return name, nil
}

// ValidatePath validates a directory path from configuration.
func ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return fmt.Errorf("path traversal detected: %s", path)
		}
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "<", ">"}
	for _, char := range dangerousChars {
		if strings.Contains(path, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}

	return nil
}

// ValidateOrigin checks a request origin against the CORS allow-list. A
// "*" entry allows every http or https origin.
func ValidateOrigin(origin string, allowedOrigins []string) error {
	if origin == "" {
		return fmt.Errorf("origin header is required")
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return fmt.Errorf("invalid origin format: %w", err)
	}

	if originURL.Scheme != "http" && originURL.Scheme != "https" {
		return fmt.Errorf("invalid origin scheme '%s': only http and https are allowed", originURL.Scheme)
	}

	for _, allowed := range allowedOrigins {
		if allowed == "*" || origin == allowed || originURL.Host == allowed {
			return nil
		}
	}

	return fmt.Errorf("origin '%s' is not in allowed origins list", origin)
}

// ValidateURL validates configured service addresses (API base, upstream
// data source, generation endpoint).
func ValidateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: %s (only http/https allowed)", parsed.Scheme)
	}

	dangerous := []string{"`", "<", ">", "\"", "'", "\\", "\n", "\r", " "}
	for _, char := range dangerous {
		if strings.Contains(rawURL, char) {
			return fmt.Errorf("URL contains invalid character: %q", char)
		}
	}

	if parsed.Host == "" {
		return fmt.Errorf("URL must have a valid hostname")
	}

	return nil
}
