// Package cli implements the mdnsamp command line.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/R167/mdnsamp/checkers/common"
	"github.com/R167/mdnsamp/checkers/ratetest"
	"github.com/R167/mdnsamp/internal/logger"
	"github.com/R167/mdnsamp/internal/runner"
	"github.com/R167/mdnsamp/internal/security"
	"github.com/R167/mdnsamp/internal/sink"
)

type app struct {
	flags   *Flags
	version string
	log     zerolog.Logger
}

// Run executes the command line until it finishes or the process is
// interrupted.
func Run(version string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return NewRootCommand(version).ExecuteContext(ctx)
}

// NewRootCommand builds the mdnsamp command tree.
func NewRootCommand(version string) *cobra.Command {
	a := &app{flags: defaultFlags(), version: version, log: zerolog.Nop()}

	root := &cobra.Command{
		Use:           "mdnsamp",
		Short:         "Measure mDNS/DNS-SD amplification of unicast responders",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	a.flags.persistent(root.PersistentFlags())

	root.AddCommand(
		a.scanCommand(),
		a.rateCommand(),
		a.speedCommand(),
		a.sweepCommand(),
		a.serveCommand(),
		a.mcpCommand(),
	)

	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	if a.flags.Config != "" {
		cfg, err := LoadFileConfig(a.flags.Config)
		if err != nil {
			return err
		}
		a.flags.merge(cmd.Flags(), cfg)
	}

	err := logger.Init(logger.Config{
		Level:  a.flags.LogLevel,
		Debug:  a.flags.Debug,
		Output: a.flags.LogOut,
	})
	if err != nil {
		return errors.Wrap(err, "invalid logging configuration")
	}

	a.log = logger.WithComponent("cli")
	return nil
}

// openSink builds the result sink from the flags. The log sink is always
// present; files, database and NATS are added when configured.
func (a *app) openSink() (sink.Sink, error) {
	sinks := sink.Multi{sink.NewLog(logger.WithComponent("results"))}

	fail := func(err error) (sink.Sink, error) {
		if cerr := sinks.Close(); cerr != nil {
			a.log.Warn().Err(cerr).Msg("failed to close sinks")
		}
		return nil, err
	}

	if a.flags.CSVDir != "" {
		s, err := sink.NewCSV(a.flags.CSVDir)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, s)
	}

	if a.flags.Database != "" {
		s, err := sink.OpenDatabase(a.flags.Database)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, s)
	}

	if a.flags.NATSURL != "" {
		s, err := sink.DialNATS(a.flags.NATSURL, a.flags.NATSSubject)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, s)
	}

	return sinks, nil
}

func (a *app) runContext(cmd *cobra.Command, s sink.Sink) *runner.RunContext {
	return runner.NewRunContext(cmd.Context()).
		WithTimeout(a.flags.Timeout).
		WithPolicy(security.Policy{
			AllowPublic:   a.flags.AllowPublic,
			AllowLoopback: a.flags.AllowLoopback,
		}).
		WithConcurrency(a.flags.Concurrency).
		WithRatePerSecond(a.flags.RatePerSecond).
		WithRateTest(ratetest.Config{
			ScansPerWorker: a.flags.ScansPerWorker,
			CoolDown:       a.flags.CoolDown,
		}).
		WithSink(s).
		WithLogger(logger.GetLogger()).
		WithWriter(cmd.OutOrStdout())
}

// target resolves the optional positional target, falling back to the
// gateway, and applies the target policy.
func (a *app) target(rc *runner.RunContext, args []string) (common.Target, error) {
	var (
		t   common.Target
		err error
	)
	if len(args) == 0 {
		t, err = runner.DefaultTarget(a.flags.Port)
	} else {
		t, err = common.ParseTarget(args[0], a.flags.Port)
	}
	if err != nil {
		return common.Target{}, err
	}

	if err := rc.ValidateTarget(t); err != nil {
		return common.Target{}, err
	}
	return t, nil
}

// withRun opens the sink, builds the run context and closes the sink after fn.
func (a *app) withRun(cmd *cobra.Command, fn func(rc *runner.RunContext) error) (err error) {
	s, err := a.openSink()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "failed to close result sinks")
		}
	}()

	return fn(a.runContext(cmd, s))
}
