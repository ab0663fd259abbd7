package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/always-cache/textfetch"
)

var (
	// CLI flags
	configFilenameFlag string
	dbFilenameFlag     string
	levelDBFlag        bool
	userAgentFlag      string
	maxRedirectsFlag   int
	verbosityDebugFlag bool
	verbosityTraceFlag bool
	logFilenameFlag    string
	statsFlag          bool
	listFlag           bool
	sweepFlag          bool

	// this is set by goreleaser
	version string
)

func init() {
	flag.StringVar(&configFilenameFlag, "config", "", "Path to config file (.yml or .toml)")
	flag.StringVar(&dbFilenameFlag, "db", "", "Cache DB file name (use 'memory' for in-memory cache, overrides config)")
	flag.BoolVar(&levelDBFlag, "leveldb", false, "Treat -db as a LevelDB directory instead of a SQLite file")
	flag.StringVar(&userAgentFlag, "user-agent", "", "User-Agent to send (overrides config)")
	flag.IntVar(&maxRedirectsFlag, "max-redirects", 0, "Longest redirect chain to follow (overrides config)")
	flag.BoolVar(&verbosityDebugFlag, "v", false, "Verbosity: debug logging")
	flag.BoolVar(&verbosityTraceFlag, "vv", false, "Verbosity: trace logging")
	flag.StringVar(&logFilenameFlag, "log-file", "", "Log file to use (in addition to stderr)")
	flag.BoolVar(&statsFlag, "stats", false, "Log fetch statistics before exiting")
	flag.BoolVar(&listFlag, "list", false, "List cached URLs")
	flag.BoolVar(&sweepFlag, "sweep", false, "Remove expired cache entries before fetching")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] URL...\n", os.Args[0])
		flag.PrintDefaults()
	}

	if version == "" {
		version = "DEV"
	}
}

func main() {
	flag.Parse()
	textfetch.Version = version

	// set log level
	logLevel := zerolog.InfoLevel
	if verbosityDebugFlag {
		logLevel = zerolog.DebugLevel
	}
	if verbosityTraceFlag {
		logLevel = zerolog.TraceLevel
	}

	// log to stderr, the page text goes to stdout
	// also output to logfile if specified
	logOutputs := make([]io.Writer, 0)
	logOutputs = append(logOutputs, zerolog.ConsoleWriter{Out: os.Stderr})
	if logFilenameFlag != "" {
		if logFileOutput, err := os.OpenFile(logFilenameFlag, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644); err != nil {
			log.Fatal().Err(err).Msg("Cannot open log file")
		} else {
			logOutputs = append(logOutputs, logFileOutput)
		}
	}
	multiWriter := zerolog.MultiLevelWriter(logOutputs...)
	log.Logger = log.Level(logLevel).Output(multiWriter).
		With().Str("version", version).Logger()

	if flag.NArg() == 0 && !listFlag && !sweepFlag {
		flag.Usage()
		os.Exit(2)
	}

	config := textfetch.DefaultFileConfig()
	if configFilenameFlag != "" {
		var err error
		if config, err = textfetch.LoadConfig(configFilenameFlag); err != nil {
			log.Fatal().Err(err).Msg("Could not load config")
		}
	}
	applyFlags(&config)
	if err := config.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	store, err := config.OpenStore()
	if err != nil {
		log.Fatal().Err(err).Msg("Could not open cache")
	}
	sessionConfig := config.SessionConfig(store)
	sessionConfig.Logger = &log.Logger
	session := textfetch.NewSession(sessionConfig)

	code := run(session, flag.Args())
	if err := session.Close(); err != nil {
		log.Error().Err(err).Msg("Could not close session")
	}
	if statsFlag {
		logStats()
	}
	os.Exit(code)
}

func applyFlags(config *textfetch.FileConfig) {
	switch {
	case dbFilenameFlag == "memory":
		config.Cache = textfetch.CacheConfig{Provider: textfetch.ProviderMemory}
	case dbFilenameFlag != "" && levelDBFlag:
		config.Cache = textfetch.CacheConfig{Provider: textfetch.ProviderLevelDB, Path: dbFilenameFlag}
	case dbFilenameFlag != "":
		config.Cache = textfetch.CacheConfig{Provider: textfetch.ProviderSQLite, Path: dbFilenameFlag}
	}
	if userAgentFlag != "" {
		config.UserAgent = userAgentFlag
	}
	if maxRedirectsFlag > 0 {
		config.MaxRedirects = maxRedirectsFlag
	}
}

// run fetches every URL in turn and prints its text. It returns the exit code.
func run(session *textfetch.Session, urls []string) int {
	if sweepFlag {
		removed, err := session.Sweep()
		if err != nil {
			log.Error().Err(err).Msg("Could not sweep cache")
			return 1
		}
		log.Info().Msgf("Removed %d expired cache entries", removed)
	}
	if listFlag {
		for _, u := range session.CachedURLs("") {
			fmt.Println(u.String())
		}
	}

	code := 0
	for _, raw := range urls {
		if err := session.Load(context.Background(), raw, os.Stdout); err != nil {
			log.Error().Err(err).Str("url", raw).Msg("Could not load")
			code = 1
			continue
		}
		fmt.Println()
	}
	return code
}

// logStats logs the counters collected during this run.
func logStats() {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		log.Error().Err(err).Msg("Could not gather statistics")
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			event := log.Info().Str("metric", mf.GetName())
			for _, label := range m.GetLabel() {
				event = event.Str(label.GetName(), label.GetValue())
			}
			switch {
			case m.GetCounter() != nil:
				event.Float64("value", m.GetCounter().GetValue()).Msg("Stats")
			case m.GetHistogram() != nil:
				event.
					Uint64("count", m.GetHistogram().GetSampleCount()).
					Float64("sum", m.GetHistogram().GetSampleSum()).
					Msg("Stats")
			case m.GetGauge() != nil:
				event.Float64("value", m.GetGauge().GetValue()).Msg("Stats")
			}
		}
	}
}
