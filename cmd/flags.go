package cmd

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/conneroisu/reportsmith/internal/payload"
)

// outputFormats are the values accepted by --output.
var outputFormats = []string{"table", "json", "yaml"}

// StandardFlags provides consistent flag definitions across commands
type StandardFlags struct {
	// Output flags
	OutputFormat string
	Quiet        bool

	// Render flags
	Style    string
	Data     string
	DataFile string
	Session  string
}

// AddStandardFlags adds the named flag groups to a command
func AddStandardFlags(cmd *cobra.Command, flagTypes ...string) *StandardFlags {
	flags := &StandardFlags{}

	for _, flagType := range flagTypes {
		switch flagType {
		case "output":
			addOutputFlags(cmd, flags)
		case "render":
			addRenderFlags(cmd, flags)
		}
	}

	return flags
}

func addOutputFlags(cmd *cobra.Command, flags *StandardFlags) {
	cmd.Flags().StringVarP(&flags.OutputFormat, "output", "o", "table", "Output format (table|json|yaml)")
	cmd.Flags().BoolVarP(&flags.Quiet, "quiet", "q", false, "Suppress output")
	AddFlagValidation(cmd, "output", ValidateFormat)
}

func addRenderFlags(cmd *cobra.Command, flags *StandardFlags) {
	cmd.Flags().StringVarP(&flags.Style, "style", "s", "", "Style table id (e.g. light-01)")
	cmd.Flags().StringVar(&flags.Data, "data", "", "Data payload (JSON or @file.json)")
	cmd.Flags().StringVarP(&flags.DataFile, "data-file", "d", "", "Data payload file (JSON or YAML)")
	cmd.Flags().StringVar(&flags.Session, "session", "", "Session token passed to the upstream data source")
}

// ValidateFormat checks an --output value.
func ValidateFormat(format string) error {
	for _, valid := range outputFormats {
		if strings.EqualFold(format, valid) {
			return nil
		}
	}
	return fmt.Errorf("invalid output format %s, must be one of: %s",
		format, strings.Join(outputFormats, ", "))
}

// ValidateFlags validates flag combinations and values
func (f *StandardFlags) ValidateFlags() error {
	if f.Data != "" && f.DataFile != "" {
		return fmt.Errorf("cannot specify both --data and --data-file")
	}
	if f.OutputFormat != "" {
		return ValidateFormat(f.OutputFormat)
	}
	return nil
}

// HasData reports whether the payload comes from flags rather than the
// configured data source.
func (f *StandardFlags) HasData() bool {
	return f.Data != "" || f.DataFile != ""
}

// ParseData parses the data payload with support for file references.
func (f *StandardFlags) ParseData(fs afero.Fs) (interface{}, error) {
	if f.DataFile != "" {
		return readDataFile(fs, f.DataFile)
	}

	if strings.HasPrefix(f.Data, "@") {
		return readDataFile(fs, strings.TrimPrefix(f.Data, "@"))
	}

	if f.Data != "" {
		var data interface{}
		if err := json.Unmarshal([]byte(f.Data), &data); err != nil {
			return nil, fmt.Errorf("invalid JSON in --data: %w", err)
		}
		return data, nil
	}

	return nil, nil
}

func readDataFile(fs afero.Fs, path string) (interface{}, error) {
	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read data file %s: %w", path, err)
	}
	return payload.Decode(raw, filepath.Ext(path))
}

// bindFlags binds flags to viper configuration keys.
func bindFlags(cmd *cobra.Command, bindings map[string]string, persistent bool) {
	set := cmd.Flags()
	if persistent {
		set = cmd.PersistentFlags()
	}
	for flagName, configKey := range bindings {
		if flag := set.Lookup(flagName); flag != nil {
			_ = viper.BindPFlag(configKey, flag)
		}
	}
}

// AddFlagValidation adds validation for a specific flag
func AddFlagValidation(cmd *cobra.Command, flagName string, validator func(string) error) {
	flag := cmd.Flags().Lookup(flagName)
	if flag == nil {
		return
	}

	flag.Value = &validatingValue{
		Value:     flag.Value,
		validator: validator,
	}
}

type validatingValue struct {
	pflag.Value
	validator func(string) error
}

func (v *validatingValue) Set(val string) error {
	if v.validator != nil {
		if err := v.validator(val); err != nil {
			return err
		}
	}
	return v.Value.Set(val)
}

// ValidatePort checks a --port value.
func ValidatePort(portStr string) error {
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid port number: %s", portStr)
	}

	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}

	return nil
}
