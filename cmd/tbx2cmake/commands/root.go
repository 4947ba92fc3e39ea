// Package commands provides the command-line interface for tbx2cmake.
package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	yaml "gopkg.in/yaml.v3"

	"github.com/tbxtools/tbx2cmake/internal/convert"
	"github.com/tbxtools/tbx2cmake/internal/core"
	"github.com/tbxtools/tbx2cmake/internal/scons"
)

const (
	envPrefix    = "TBX2CMAKE"
	envLogLevel  = "TBX2CMAKE_LOG_LEVEL"
	envLogFormat = "TBX2CMAKE_LOG_FORMAT"
)

// usageError marks argument problems so Execute can map them to exit code 2.
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usageErrorf(format string, args ...interface{}) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

// IsUsageError reports whether err stems from bad command arguments.
func IsUsageError(err error) bool {
	var uerr *usageError
	return errors.As(err, &uerr)
}

// Options holds state shared across commands.
type Options struct {
	Logger       *core.Logger
	BuildOptions *scons.BuildOptions

	logLevel    string
	logFormat   string
	optionsFile string
}

// NewRootCommand builds the CLI. The root command runs the full conversion
// pipeline; read-scons and version are subcommands.
func NewRootCommand(opts *Options, info core.BuildInfo) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tbx2cmake <module_dir> <autogen.yaml> <output_dir>",
		Short: "Convert a libtbx/SCons distribution into CMake build files",
		Long: `tbx2cmake executes a distribution's SConscript build-generation scripts
against an emulation of the libtbx runtime, records every declared target and
renders the resulting build graph as a hierarchical set of CMakeLists files.`,
		Version:       info.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 3 {
				return usageErrorf("expected <module_dir> <autogen.yaml> <output_dir>, got %d arguments", len(args))
			}
			return nil
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			moduleDir, autogenPath, outputDir := args[0], args[1], args[2]
			if err := checkModuleDir(moduleDir); err != nil {
				return err
			}
			if info, err := os.Stat(outputDir); err == nil && !info.IsDir() {
				return fmt.Errorf("output path %s is a file; pass a directory or the name of one to create", outputDir)
			}
			return convert.Convert(moduleDir, autogenPath, outputDir, opts.BuildOptions, opts.Logger)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "console", "log format (json, console)")
	cmd.PersistentFlags().StringVar(&opts.optionsFile, "build-options", "", "YAML file overriding the emulated build-options table")

	cmd.AddCommand(newReadSconsCommand(opts))
	cmd.AddCommand(newVersionCommand(info))
	return cmd
}

// setup resolves flags and environment into a logger and the build-options
// table, once, before any command runs.
func (o *Options) setup(cmd *cobra.Command) error {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	flags := cmd.Root().PersistentFlags()
	if err := v.BindPFlag("log_level", flags.Lookup("log-level")); err != nil {
		return err
	}
	if err := v.BindPFlag("log_format", flags.Lookup("log-format")); err != nil {
		return err
	}

	logger, err := core.NewLogger(&core.Logger{
		Level:  v.GetString("log_level"),
		Format: v.GetString("log_format"),
	})
	if err != nil {
		return usageErrorf("invalid logging configuration: %v", err)
	}
	o.Logger = logger

	o.BuildOptions = scons.DefaultBuildOptions()
	if o.optionsFile != "" {
		data, err := os.ReadFile(o.optionsFile)
		if err != nil {
			return fmt.Errorf("reading build options: %w", err)
		}
		overrides := make(map[string]interface{})
		if err := yaml.Unmarshal(data, &overrides); err != nil {
			return fmt.Errorf("parsing build options %s: %w", o.optionsFile, err)
		}
		if err := o.BuildOptions.Override(overrides); err != nil {
			return fmt.Errorf("build options %s: %w", o.optionsFile, err)
		}
	}
	return nil
}

func checkModuleDir(moduleDir string) error {
	info, err := os.Stat(moduleDir)
	if err != nil || !info.IsDir() {
		return usageErrorf("module path %s must be a directory", moduleDir)
	}
	return nil
}

// Execute runs the CLI and maps errors onto the exit conventions: 0 success,
// 2 usage error, 1 any fatal pipeline error.
func Execute(info core.BuildInfo) int {
	opts := &Options{}
	cmd := NewRootCommand(opts, info)
	err := cmd.Execute()
	if err == nil {
		return 0
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	if IsUsageError(err) {
		fmt.Fprintln(os.Stderr, cmd.UsageString())
		return 2
	}
	return 1
}
