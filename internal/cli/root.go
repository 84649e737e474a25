package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable the CLI reads, e.g.
// MERGEPOINT_DB or MERGEPOINT_CONFIG.
const EnvPrefix = "MERGEPOINT"

// Defaults for the global settings.
const (
	DefaultDatabase = "mergepoint.db"
	DefaultConfig   = "mergepoint.yaml"
	DefaultAddr     = ":8080"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	Database   string // SQLite database holding merge records and origin tables
	ConfigPath string // merge point declarations (.yaml, .yml or .cue)

	// Logger receives structured logs. Set by the root command; commands
	// built directly (tests) fall back to slog.Default().
	Logger *slog.Logger

	settings *viper.Viper
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the mergepoint CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{settings: newSettings()}

	cmd := &cobra.Command{
		Use:   "mergepoint",
		Short: "mergepoint - one identity space over mutually exclusive sources",
		Long: `Declare merge points over origin tables, admit keys as merge records
with content-derived identities and read the union of every source.

Settings resolve from flags, then MERGEPOINT_* environment variables
(a .env file in the working directory is loaded first), then defaults.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve(cmd.ErrOrStderr())
		},
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVar(&opts.Database, "db", DefaultDatabase, "path to SQLite database")
	flags.StringVarP(&opts.ConfigPath, "config", "c", DefaultConfig, "merge point declarations (.yaml or .cue)")
	for _, name := range []string{"verbose", "format", "db", "config"} {
		_ = opts.settings.BindPFlag(name, flags.Lookup(name))
	}

	// Add subcommands
	cmd.AddCommand(NewDeriveCommand(opts))
	cmd.AddCommand(NewInsertCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewUnionCommand(opts))
	cmd.AddCommand(NewReconcileCommand(opts))
	cmd.AddCommand(NewPurgeCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

func newSettings() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	v.SetDefault("addr", DefaultAddr)
	return v
}

// resolve merges flags, environment and .env into opts and installs the
// logger.
func (o *RootOptions) resolve(stderr io.Writer) error {
	// A missing .env is not an error.
	_ = godotenv.Load()

	o.Verbose = o.settings.GetBool("verbose")
	o.Format = o.settings.GetString("format")
	o.Database = o.settings.GetString("db")
	o.ConfigPath = o.settings.GetString("config")

	if !isValidFormat(o.Format) {
		return NewExitError(ExitCommandError,
			fmt.Sprintf("invalid format %q: must be one of %v", o.Format, ValidFormats))
	}

	level := slog.LevelInfo
	if o.Verbose {
		level = slog.LevelDebug
	}
	o.Logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(o.Logger)
	return nil
}

// logger returns the configured logger or slog.Default().
func (o *RootOptions) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// setting returns a resolved non-global setting such as the listen address.
// Commands built without a root command have no settings and get fallback.
func (o *RootOptions) setting(key, fallback string) string {
	if o.settings == nil {
		return fallback
	}
	if v := o.settings.GetString(key); v != "" {
		return v
	}
	return fallback
}

// formatter builds the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
