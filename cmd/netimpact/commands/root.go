// Package commands implements the netimpact command line.
package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/dd0wney/cluso-netimpact/pkg/config"
	"github.com/dd0wney/cluso-netimpact/pkg/logging"
)

// Version is stamped at build time with -ldflags "-X ...commands.Version=".
var Version = "dev"

// app carries the state shared by every subcommand of one invocation.
type app struct {
	v      *viper.Viper
	cfg    *config.Config
	logger logging.Logger
	closer func() error
	out    io.Writer
	errOut io.Writer
}

// NewRootCmd builds the command tree. Output goes to out, logs to errOut.
func NewRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{v: viper.New(), out: out, errOut: errOut, closer: func() error { return nil }}

	root := &cobra.Command{
		Use:   "netimpact",
		Short: "Link-state network analysis",
		Long: `netimpact - OSPF-style network analysis

Shortest paths, ECMP, failure points and change impact for weighted
directed topologies.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.closer()
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.String("config", "", "YAML config file")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("log-format", "", "log format: console or json")
	pf.String("log-file", "", "also write JSON logs to this file")
	pf.StringP("output", "o", "text", "output format: text or json")
	_ = a.v.BindPFlags(pf)
	a.v.SetEnvPrefix(strings.TrimSuffix(config.EnvPrefix, "_"))
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	root.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		renderHelp(cmd)
	})

	root.AddCommand(
		a.pathCmd(),
		a.ecmpCmd(),
		a.sampleCmd(),
		a.connectivityCmd(),
		a.spofCmd(),
		a.impactCmd(),
		a.utilizationCmd(),
		a.optimizeCmd(),
		a.serveCmd(),
		a.scenarioCmd(),
		a.eventsCmd(),
	)
	return root
}

// Execute runs the command line against the process streams.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

// init loads the config file and applies flag overrides before any
// subcommand runs.
func (a *app) init() error {
	cfg, err := config.Load(a.v.GetString("config"))
	if err != nil {
		return err
	}
	if lvl := a.v.GetString("log-level"); lvl != "" {
		cfg.Logging.Level = lvl
	}
	if f := a.v.GetString("log-format"); f != "" {
		cfg.Logging.Format = f
	}
	if f := a.v.GetString("log-file"); f != "" {
		cfg.Logging.File = f
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	switch a.output() {
	case "text", "json":
	default:
		return fmt.Errorf("unknown output format %q", a.output())
	}

	logger, closer, err := newLogger(cfg.Logging, a.errOut)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	a.closer = closer
	return nil
}

func (a *app) output() string {
	return a.v.GetString("output")
}

func renderHelp(cmd *cobra.Command) {
	w := cmd.OutOrStdout()
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#00FFFF")).
		MarginBottom(1)
	flagStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA"))

	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("NETIMPACT %s", Version)))
	if cmd.Long != "" {
		fmt.Fprintln(w, cmd.Long)
	} else {
		fmt.Fprintln(w, cmd.Short)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, titleStyle.Render("USAGE"))
	fmt.Fprintf(w, "  %s\n\n", cmd.UseLine())

	if cmd.HasAvailableSubCommands() {
		fmt.Fprintln(w, titleStyle.Render("COMMANDS"))
		for _, c := range cmd.Commands() {
			if c.IsAvailableCommand() {
				fmt.Fprintf(w, "  %-14s %s\n", c.Name(), c.Short)
			}
		}
		fmt.Fprintln(w)
	}

	if cmd.Example != "" {
		fmt.Fprintln(w, titleStyle.Render("EXAMPLES"))
		fmt.Fprintln(w, cmd.Example)
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, titleStyle.Render("FLAGS"))
	cmd.LocalFlags().VisitAll(func(f *pflag.Flag) {
		if f.Hidden {
			return
		}
		line := fmt.Sprintf("  --%-16s %s", f.Name, f.Usage)
		if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "0" && f.DefValue != "[]" {
			line += fmt.Sprintf(" (default %s)", f.DefValue)
		}
		fmt.Fprintln(w, flagStyle.Render(line))
	})
	cmd.InheritedFlags().VisitAll(func(f *pflag.Flag) {
		if f.Hidden {
			return
		}
		fmt.Fprintln(w, flagStyle.Render(fmt.Sprintf("  --%-16s %s", f.Name, f.Usage)))
	})
	fmt.Fprintln(w)
}
