// Package cmd provides the reportsmith command-line interface.
//
// Configuration is read with the following precedence:
//  1. Command-line flags (--port, --templates, etc.)
//  2. REPORTSMITH_<SECTION>_<OPTION> environment variables
//  3. The file named by --config or REPORTSMITH_CONFIG_FILE
//  4. .reportsmith.yml in the current directory
//  5. Built-in defaults
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/reportsmith/internal/config"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "reportsmith",
	Short: "Render JSX report templates behind a static security gate",
	Long: `reportsmith renders user-supplied JSX report templates into HTML documents.
Every template passes a structural and a lexical scanner before it is stored,
and runs in an isolated interpreter with an allow-listed module set.

Quick Start:
  reportsmith scan report.jsx          Scan a template without storing it
  reportsmith admit report.jsx         Scan and store a template
  reportsmith render usage-table       Render a stored template to HTML
  reportsmith list                     List stored templates
  reportsmith generate -p "..."        Generate a template from a prompt
  reportsmith serve                    Start the report server`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		return reportError(rootCmd.ErrOrStderr(), err)
	}
	return 0
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is .reportsmith.yml, can also use REPORTSMITH_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (text, json)")
	rootCmd.PersistentFlags().String("templates", "", "templates directory")
	rootCmd.PersistentFlags().String("styles", "", "styles directory")

	bindFlags(rootCmd, map[string]string{
		"log-level":  "log.level",
		"log-format": "log.format",
		"templates":  "templates.dir",
		"styles":     "styles.dir",
	}, true)
}

// initConfig selects the config file and enables environment overrides.
func initConfig() {
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv(config.EnvPrefix + "_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".reportsmith")
	}

	config.BindEnv(viper.GetViper())

	// A missing or unreadable file leaves defaults and environment in place
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
