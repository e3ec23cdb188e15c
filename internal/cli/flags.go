package cli

import (
	"time"

	"github.com/spf13/pflag"

	"github.com/R167/mdnsamp/checkers/common"
	"github.com/R167/mdnsamp/internal/runner"
)

// Flags holds every command line setting after the config file is merged in.
type Flags struct {
	Config   string
	Debug    bool
	LogLevel string
	LogOut   string

	Timeout       time.Duration
	Port          uint16
	AllowPublic   bool
	AllowLoopback bool

	CSVDir      string
	Database    string
	NATSURL     string
	NATSSubject string

	Mode string

	MaxWorkers     int
	ScansPerWorker int
	CoolDown       time.Duration
	Duration       time.Duration

	Concurrency   int
	RatePerSecond int

	Listen    string
	Services  []string
	ExtraPTR  []string
	ServeHost string
}

func (f *Flags) persistent(fl *pflag.FlagSet) {
	cfgFlags := pflag.NewFlagSet("Configuration", pflag.ExitOnError)
	cfgFlags.StringVar(&f.Config, "config", "", "Path to JSON configuration file")
	cfgFlags.BoolVar(&f.Debug, "debug", false, "Enable debug output and debug logging")
	cfgFlags.StringVar(&f.LogLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	cfgFlags.StringVar(&f.LogOut, "log-output", "", "Log destination: stderr (default), stdout or console")
	fl.AddFlagSet(cfgFlags)

	scanFlags := pflag.NewFlagSet("Scanning", pflag.ExitOnError)
	scanFlags.DurationVar(&f.Timeout, "timeout", common.ExchangeTimeout, "Receive timeout per exchange (e.g. 500ms, 2s)")
	scanFlags.Uint16Var(&f.Port, "port", common.MDNSPort, "Default target port")
	scanFlags.BoolVar(&f.AllowPublic, "allow-public", false, "Allow targets outside private address ranges")
	scanFlags.BoolVar(&f.AllowLoopback, "allow-loopback", false, "Allow loopback targets (lab responder)")
	fl.AddFlagSet(scanFlags)

	sinkFlags := pflag.NewFlagSet("Results", pflag.ExitOnError)
	sinkFlags.StringVar(&f.CSVDir, "csv-dir", "", "Append records, magnifications and summaries as CSV files in this directory")
	sinkFlags.StringVar(&f.Database, "db", "", "Store results in this SQLite database")
	sinkFlags.StringVar(&f.NATSURL, "nats-url", "", "Publish results to this NATS server")
	sinkFlags.StringVar(&f.NATSSubject, "nats-subject", "", "NATS subject prefix (default \"mdnsamp\")")
	fl.AddFlagSet(sinkFlags)
}

// merge fills every flag not set on the command line from cfg.
func (f *Flags) merge(fl *pflag.FlagSet, cfg *FileConfig) {
	unset := func(name string) bool {
		flag := fl.Lookup(name)
		return flag != nil && !flag.Changed
	}

	if unset("debug") && cfg.Logging.Debug {
		f.Debug = true
	}
	if unset("log-level") && cfg.Logging.Level != "" {
		f.LogLevel = cfg.Logging.Level
	}
	if unset("log-output") && cfg.Logging.Output != "" {
		f.LogOut = cfg.Logging.Output
	}
	if unset("timeout") && cfg.Timeout > 0 {
		f.Timeout = time.Duration(cfg.Timeout)
	}
	if unset("port") && cfg.Port != 0 {
		f.Port = cfg.Port
	}
	if unset("allow-public") && cfg.AllowPublic {
		f.AllowPublic = true
	}
	if unset("allow-loopback") && cfg.AllowLoopback {
		f.AllowLoopback = true
	}
	if unset("csv-dir") && cfg.CSVDir != "" {
		f.CSVDir = cfg.CSVDir
	}
	if unset("db") && cfg.Database != "" {
		f.Database = cfg.Database
	}
	if unset("nats-url") && cfg.NATSURL != "" {
		f.NATSURL = cfg.NATSURL
	}
	if unset("nats-subject") && cfg.NATSSubject != "" {
		f.NATSSubject = cfg.NATSSubject
	}
	if unset("concurrency") && cfg.Sweep.Concurrency > 0 {
		f.Concurrency = cfg.Sweep.Concurrency
	}
	if unset("rate") && cfg.Sweep.RatePerSecond > 0 {
		f.RatePerSecond = cfg.Sweep.RatePerSecond
	}
	if unset("scans-per-worker") && cfg.Rate.ScansPerWorker > 0 {
		f.ScansPerWorker = cfg.Rate.ScansPerWorker
	}
	if unset("cool-down") && cfg.Rate.CoolDown > 0 {
		f.CoolDown = time.Duration(cfg.Rate.CoolDown)
	}
}

func defaultFlags() *Flags {
	return &Flags{
		Timeout:        common.ExchangeTimeout,
		Port:           common.MDNSPort,
		ScansPerWorker: common.DefaultScansPerWorker,
		CoolDown:       common.DefaultCoolDown,
		Concurrency:    runner.DefaultConcurrency,
	}
}
