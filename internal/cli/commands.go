package cli

import (
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/R167/mdnsamp/checkers/common"
	"github.com/R167/mdnsamp/checkers/mdns"
	"github.com/R167/mdnsamp/checkers/ratetest"
	"github.com/R167/mdnsamp/internal/checkers"
	"github.com/R167/mdnsamp/internal/logger"
	"github.com/R167/mdnsamp/internal/mcp"
	"github.com/R167/mdnsamp/internal/output"
	"github.com/R167/mdnsamp/internal/responder"
	"github.com/R167/mdnsamp/internal/runner"
)

func parseModes(s string) ([]mdns.Mode, error) {
	if s == "" || strings.EqualFold(s, "both") {
		return mdns.Modes, nil
	}
	m, err := mdns.ParseMode(s)
	if err != nil {
		return nil, err
	}
	return []mdns.Mode{m}, nil
}

func (a *app) scanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [target[:port]]",
		Short: "Scan one responder and report its amplification",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			modes, err := parseModes(a.flags.Mode)
			if err != nil {
				return err
			}

			return a.withRun(cmd, func(rc *runner.RunContext) error {
				target, err := a.target(rc, args)
				if err != nil {
					return err
				}

				out := rc.Output()
				out.Header("🔍 mDNS Amplification Scan")
				out.Info("Target: %s", target)

				scanner := rc.Scanner()
				var issues []common.SecurityIssue
				best := 0.0
				for _, mode := range modes {
					out.Section("📡", mode.String()+" mode")
					o := scanner.Scan(cmd.Context(), target, mode)
					output.ReportOutcome(out, target, o)
					if o.Result != nil && o.Result.OverallMagnification >= best {
						best = o.Result.OverallMagnification
						issues = mdns.Assess(*o.Result)
					}
				}
				output.ReportIssues(out, issues)

				return nil
			})
		},
	}

	cmd.Flags().StringVar(&a.flags.Mode, "mode", "both", "Stage 2 mode: aggregated, separate or both")
	return cmd
}

func (a *app) rateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rate [target[:port]]",
		Short: "Measure loss rate and send speed for 1..N concurrent workers",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRun(cmd, func(rc *runner.RunContext) error {
				target, err := a.target(rc, args)
				if err != nil {
					return err
				}

				out := rc.Output()
				out.Header("⏱️ Concurrency Test")
				out.Info("Target: %s, up to %d workers, %d scans each, %s cool-down",
					target, a.flags.MaxWorkers, rc.Rate.ScansPerWorker, rc.Rate.CoolDown)
				out.Println("")
				output.TrialHeader(out)

				rc.Rate.OnTrial = func(t ratetest.Trial) { output.ReportTrial(out, t) }

				_, err = rc.Tester().TestConcurrency(cmd.Context(), target, a.flags.MaxWorkers)
				return err
			})
		},
	}

	cmd.Flags().IntVar(&a.flags.MaxWorkers, "max-workers", 10, "Highest worker count to test")
	cmd.Flags().IntVar(&a.flags.ScansPerWorker, "scans-per-worker", common.DefaultScansPerWorker, "Sequential scans per worker")
	cmd.Flags().DurationVar(&a.flags.CoolDown, "cool-down", common.DefaultCoolDown, "Pause between trials")
	return cmd
}

func (a *app) speedCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "speed [target[:port]]",
		Short: "Repeat scans for a fixed duration and report the rate",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRun(cmd, func(rc *runner.RunContext) error {
				target, err := a.target(rc, args)
				if err != nil {
					return err
				}

				out := rc.Output()
				out.Header("🚀 Speed Test")
				report := rc.Tester().Sustain(cmd.Context(), target, a.flags.Duration)
				output.ReportSpeed(out, target, report)
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&a.flags.Duration, "duration", 10*time.Second, "How long to keep scanning")
	return cmd
}

func (a *app) sweepCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep <targets-file>",
		Short: "Scan every target in a list (\"-\" for stdin) and report the maxima",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			modes, err := parseModes(a.flags.Mode)
			if err != nil {
				return err
			}

			targets, err := runner.LoadTargets(args[0], a.flags.Port)
			if err != nil {
				return err
			}

			return a.withRun(cmd, func(rc *runner.RunContext) error {
				rc.WithModes(modes...)

				out := rc.Output()
				out.Header("🌐 mDNS Amplification Sweep")
				out.Info("%d targets, %d in flight", len(targets), rc.Concurrency)

				report, err := runner.Sweep(rc, targets)
				runner.ReportSweep(out, report)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&a.flags.Mode, "mode", "both", "Stage 2 mode: aggregated, separate or both")
	cmd.Flags().IntVar(&a.flags.Concurrency, "concurrency", runner.DefaultConcurrency, "Targets scanned at once")
	cmd.Flags().IntVar(&a.flags.RatePerSecond, "rate", 0, "Targets started per second (0 = unlimited)")
	return cmd
}

// parseService reads "instance,service,port[,txt...]", for example
// "printer,_ipp._tcp,631,rp=ipp/print".
func parseService(s string) (responder.Service, error) {
	parts := strings.Split(s, ",")
	if len(parts) < 3 {
		return responder.Service{}, errors.Errorf("service %q: want instance,service,port[,txt...]", s)
	}

	port, err := strconv.Atoi(parts[2])
	if err != nil {
		return responder.Service{}, errors.Wrapf(err, "service %q: invalid port", s)
	}

	return responder.Service{
		Instance: parts[0],
		Service:  parts[1],
		Port:     port,
		TXT:      parts[3:],
	}, nil
}

func (a *app) serveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a unicast DNS-SD responder to calibrate scans against",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := responder.Options{HostName: a.flags.ServeHost, AdditionalPTR: a.flags.ExtraPTR}
			for _, s := range a.flags.Services {
				svc, err := parseService(s)
				if err != nil {
					return err
				}
				opts.Services = append(opts.Services, svc)
			}
			if host, _, err := net.SplitHostPort(a.flags.Listen); err == nil {
				if ip := net.ParseIP(host); ip != nil && !ip.IsUnspecified() {
					opts.IPs = []net.IP{ip}
				}
			}

			r, err := responder.New(opts, logger.WithComponent("responder"))
			if err != nil {
				return err
			}
			if err := r.Listen(a.flags.Listen); err != nil {
				return err
			}
			defer r.Close()

			out := output.NewStreamingOutput(cmd.OutOrStdout())
			out.Success("Responder listening on %s with %d services", r.Target(), len(opts.Services))

			<-cmd.Context().Done()
			out.Info("Answered %d queries", r.Queries())
			return nil
		},
	}

	cmd.Flags().StringVar(&a.flags.Listen, "listen", "127.0.0.1:5353", "Address to answer on")
	cmd.Flags().StringVar(&a.flags.ServeHost, "hostname", "lab.local.", "Host name used in SRV targets")
	cmd.Flags().StringArrayVar(&a.flags.Services, "service", nil, "Advertised service as instance,service,port[,txt...] (repeatable)")
	cmd.Flags().StringArrayVar(&a.flags.ExtraPTR, "extra-ptr", nil, "Service type added to the additional section of enumeration replies (repeatable)")
	return cmd
}

func (a *app) mcpCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve scans and rate tests as MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRun(cmd, func(rc *runner.RunContext) error {
				reg := mcp.NewCheckerRegistry()
				checkers.NewTools(rc).Register(reg)

				return mcp.RunServer(cmd.Context(), reg, a.version, logger.WithComponent("mcp"))
			})
		},
	}
}
