// Package cli implements the margem-admin command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"margem/internal/apierror"
	"margem/internal/platform/config"
	"margem/internal/platform/logger"
	"margem/internal/platform/metrics"
)

// Output formats.
const (
	OutputTable = "table"
	OutputJSON  = "json"
)

var ValidOutputs = []string{OutputTable, OutputJSON}

// RootOptions holds global flags and the lazily built client stack.
type RootOptions struct {
	APIURL      string
	Debug       bool
	MetricsFile string
	Output      string

	Config config.Client
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	newApp func(context.Context, config.Client, *slog.Logger) (*App, error)
	app    *App
}

// App builds the client stack on first use. Flags override the environment.
func (o *RootOptions) App(ctx context.Context) (*App, error) {
	if o.app != nil {
		return o.app, nil
	}
	cfg := o.Config
	if o.APIURL != "" {
		cfg.APIURL = o.APIURL
	}
	level := cfg.LogLevel
	if o.Debug {
		cfg.Debug = true
		level = slog.LevelDebug
	}
	app, err := o.newApp(ctx, cfg, logger.NewCLI(o.Stderr, level))
	if err != nil {
		return nil, &ExitError{Code: ExitCommandError, Reason: "SETUP", Message: "falha ao inicializar o cliente", Err: err}
	}
	o.app = app
	return app, nil
}

func (o *RootOptions) formatter() *OutputFormatter {
	return &OutputFormatter{Format: o.Output, Writer: o.Stdout, ErrWriter: o.Stderr}
}

// finish exports metrics and releases the stack. It runs whether the command
// succeeded or not.
func (o *RootOptions) finish() error {
	if o.app == nil {
		return nil
	}
	var errs []error
	if err := metrics.WriteTextfile(o.MetricsFile, o.app.Registry); err != nil {
		errs = append(errs, fmt.Errorf("write metrics file: %w", err))
	}
	if err := o.app.Close(); err != nil {
		errs = append(errs, err)
	}
	o.app = nil
	return errors.Join(errs...)
}

// NewRootCommand creates the margem-admin root command.
func NewRootCommand(opts *RootOptions) *cobra.Command {
	if opts.newApp == nil {
		opts.newApp = NewApp
	}

	cmd := &cobra.Command{
		Use:           "margem-admin",
		Short:         "MARGEM admin panel client",
		Long:          "Operate the MARGEM admin API: sign in once, then query stores, users, partners, reference data, dashboard and reports.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidOutputs, opts.Output) {
				return NewExitError(ExitCommandError, "INVALID_FLAG",
					fmt.Sprintf("invalid output %q: must be one of %v", opts.Output, ValidOutputs))
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.APIURL, "api-url", "", "admin API base URL (overrides VITE_API_URL)")
	cmd.PersistentFlags().BoolVar(&opts.Debug, "debug", false, "log every request and response")
	cmd.PersistentFlags().StringVar(&opts.MetricsFile, "metrics-file", "", "write client metrics in Prometheus text format to this file")
	cmd.PersistentFlags().StringVarP(&opts.Output, "output", "o", OutputTable, "output format (table|json)")

	cmd.AddCommand(NewLoginCommand(opts))
	cmd.AddCommand(NewLogoutCommand(opts))
	cmd.AddCommand(NewWhoamiCommand(opts))
	cmd.AddCommand(NewStoresCommand(opts))
	cmd.AddCommand(NewMobileCommand(opts))
	cmd.AddCommand(NewSupportCommand(opts))
	cmd.AddCommand(NewPartnersCommand(opts))
	cmd.AddCommand(NewReferenceCommand(opts))
	cmd.AddCommand(NewDashboardCommand(opts))
	cmd.AddCommand(NewReportsCommand(opts))

	return cmd
}

// Run executes the command line and returns the process exit code.
func Run(ctx context.Context, cfg config.Client, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	return run(ctx, &RootOptions{Config: cfg, Stdin: stdin, Stdout: stdout, Stderr: stderr}, args)
}

func run(ctx context.Context, opts *RootOptions, args []string) int {
	cmd := NewRootCommand(opts)
	cmd.SetArgs(args)
	cmd.SetIn(opts.Stdin)
	cmd.SetOut(opts.Stdout)
	cmd.SetErr(opts.Stderr)

	executed, err := cmd.ExecuteContextC(ctx)
	var apiErr *apierror.Error
	if err != nil && opts.app != nil && errors.As(err, &apiErr) {
		apierror.Log(ctx, opts.app.Logger, err, executed.CommandPath())
	}
	if ferr := opts.finish(); ferr != nil {
		fmt.Fprintf(opts.Stderr, "warning: %v\n", ferr)
	}
	if err == nil {
		return ExitSuccess
	}

	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		// cobra argument and flag errors
		exitErr = &ExitError{Code: ExitCommandError, Reason: "USAGE", Message: err.Error(), Err: err}
	}
	if ferr := opts.formatter().Error(exitErr.Reason, exitErr.Message); ferr != nil {
		fmt.Fprintln(opts.Stderr, exitErr.Message)
	}
	return exitErr.Code
}
