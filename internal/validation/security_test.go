package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/reportsmith/internal/errors"
)

func TestValidateTemplateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "kebab case", input: "box-usage-barchart", wantErr: false},
		{name: "underscore and digits", input: "report_01", wantErr: false},
		{name: "empty", input: "", wantErr: true},
		{name: "path traversal", input: "../secrets", wantErr: true},
		{name: "slash", input: "a/b", wantErr: true},
		{name: "leading dash", input: "-report", wantErr: true},
		{name: "extension included", input: "report.jsx", wantErr: true},
		{name: "markup", input: "<script>", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTemplateName(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, errors.ErrorTypeValidation, errors.TypeOf(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateStyleID(t *testing.T) {
	assert.NoError(t, ValidateStyleID(""))
	assert.NoError(t, ValidateStyleID("light-01"))
	assert.Error(t, ValidateStyleID("../dark"))
}

func TestTemplateNameFromFile(t *testing.T) {
	tests := []struct {
		filename string
		want     string
		wantErr  bool
	}{
		{filename: "usage-table.jsx", want: "usage-table"},
		{filename: "USAGE.JSX", want: "USAGE"},
		{filename: "uploads/dir/pie.jsx", want: "pie"},
		{filename: "report.js", wantErr: true},
		{filename: "report", wantErr: true},
		{filename: "bad name.jsx", wantErr: true},
		{filename: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			got, err := TemplateNameFromFile(tt.filename)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateFileExtension(t *testing.T) {
	err := ValidateFileExtension("report.exe", []string{".jsx"})
	require.Error(t, err)

	var re *errors.ReportError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, errors.ErrCodeInvalidExtension, re.Code)
	assert.Contains(t, err.Error(), "'.exe' is not allowed")
}

func TestValidatePath(t *testing.T) {
	assert.NoError(t, ValidatePath("./templates"))
	assert.NoError(t, ValidatePath("/srv/reports/templates"))
	assert.Error(t, ValidatePath(""))
	assert.Error(t, ValidatePath("templates/../../etc"))
	assert.Error(t, ValidatePath("templates;rm -rf"))
}

func TestValidateOrigin(t *testing.T) {
	allowed := []string{"http://localhost:5173", "reports.example.com"}

	tests := []struct {
		name    string
		origin  string
		allowed []string
		wantErr bool
	}{
		{"exact match", "http://localhost:5173", allowed, false},
		{"host match", "https://reports.example.com", allowed, false},
		{"not listed", "http://evil.example", allowed, true},
		{"empty", "", allowed, true},
		{"bad scheme", "file://localhost:5173", allowed, true},
		{"wildcard", "http://anything.test", []string{"*"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOrigin(tt.origin, tt.allowed)
			assert.Equal(t, tt.wantErr, err != nil, "err = %v", err)
		})
	}
}

func TestValidateURL(t *testing.T) {
	assert.NoError(t, ValidateURL("https://api.example.com/v1"))
	assert.NoError(t, ValidateURL("http://localhost:8080/api?x=1&y=2"))
	assert.Error(t, ValidateURL("ftp://example.com"))
	assert.Error(t, ValidateURL("javascript:alert(1)"))
	assert.Error(t, ValidateURL("http://"))
	assert.Error(t, ValidateURL("http://example.com/<x>"))
}
