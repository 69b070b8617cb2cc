// Package flags provides the flags shared by the CLI commands.
//
// Command specific flags are defined next to the command.
package flags

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/feedispatch/multisig-ops/multisig"
)

// DefaultConfigPath is read when --config is not given. A missing file is not an error: the
// configuration is then taken from the environment.
const DefaultConfigPath = "multisig.yml"

// MustString returns the string value, ignoring the error.
// Safe to use with registered flags where GetString cannot fail.
func MustString(s string, _ error) string { return s }

// MustInt returns the int value, ignoring the error.
func MustInt(i int, _ error) int { return i }

// MustBool returns the bool value, ignoring the error.
func MustBool(b bool, _ error) bool { return b }

// Config adds the --config/-c flag.
// Retrieve the value with cmd.Flags().GetString("config").
func Config(cmd *cobra.Command) {
	cmd.Flags().StringP("config", "c", DefaultConfigPath, "Path to the YAML config file")
}

// MetricsFile adds the --metrics-file flag naming a Prometheus textfile to write the orchestrator
// counters to when the command finishes. Empty disables it.
// Retrieve the value with flags.GetMetricsFile(cmd).
func MetricsFile(cmd *cobra.Command) {
	cmd.Flags().String("metrics-file", "", "Write orchestrator metrics in Prometheus text format to this file (node exporter textfile collector)")
}

// GetMetricsFile returns the value of the --metrics-file flag, empty when it is not registered.
func GetMetricsFile(cmd *cobra.Command) string {
	if cmd.Flags().Lookup("metrics-file") == nil {
		return ""
	}

	return MustString(cmd.Flags().GetString("metrics-file"))
}

// Format is the output format of a command.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
)

var _ pflag.Value = (*Format)(nil)

func (f *Format) String() string { return string(*f) }

func (f *Format) Set(v string) error {
	switch Format(strings.ToLower(v)) {
	case FormatTable:
		*f = FormatTable
	case FormatJSON:
		*f = FormatJSON
	default:
		return fmt.Errorf("must be one of %q or %q", FormatTable, FormatJSON)
	}

	return nil
}

func (f *Format) Type() string { return "format" }

// Output adds the --output/-o flag selecting the output format (default: table).
//
// Usage:
//
//	flags.Output(cmd)
//	// later in RunE:
//	format := flags.GetFormat(cmd)
func Output(cmd *cobra.Command) {
	f := FormatTable
	cmd.Flags().VarP(&f, "output", "o", `Output format: "table" or "json"`)
}

// GetFormat returns the value of the --output flag, FormatTable when the flag is not registered.
func GetFormat(cmd *cobra.Command) Format {
	fl := cmd.Flags().Lookup("output")
	if fl == nil {
		return FormatTable
	}
	if f, ok := fl.Value.(*Format); ok {
		return *f
	}

	return FormatTable
}

// StatusFilter is a transaction status flag accepting a label, a number or "all".
type StatusFilter int

var _ pflag.Value = (*StatusFilter)(nil)

func (s *StatusFilter) String() string {
	if int(*s) == multisig.StatusAll {
		return "all"
	}

	return strings.ToLower(multisig.Status(*s).String())
}

func (s *StatusFilter) Set(v string) error {
	if strings.EqualFold(v, "all") {
		*s = StatusFilter(multisig.StatusAll)
		return nil
	}
	st, err := multisig.ParseStatus(v)
	if err != nil {
		return err
	}
	*s = StatusFilter(st)

	return nil
}

func (s *StatusFilter) Type() string { return "status" }

// Status adds the --status/-s flag filtering on a transaction status (default: all).
// Retrieve the value with flags.GetStatus(cmd).
func Status(cmd *cobra.Command) {
	s := StatusFilter(multisig.StatusAll)
	cmd.Flags().VarP(&s, "status", "s", "Status filter: all, inited, ready, signed, proposed, executed, closed or the status number")
}

// GetStatus returns the value of the --status flag, multisig.StatusAll when it is not registered.
func GetStatus(cmd *cobra.Command) int {
	fl := cmd.Flags().Lookup("status")
	if fl == nil {
		return multisig.StatusAll
	}
	if s, ok := fl.Value.(*StatusFilter); ok {
		return int(*s)
	}

	return multisig.StatusAll
}
