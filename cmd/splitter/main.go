package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"github.com/ehdc-splitter/internal/config"
	"github.com/ehdc-splitter/internal/db"
	"github.com/ehdc-splitter/internal/dedupe"
	"github.com/ehdc-splitter/internal/export"
	"github.com/ehdc-splitter/internal/logger"
	"github.com/ehdc-splitter/internal/normalize"
	"github.com/ehdc-splitter/internal/pipeline"
	"github.com/ehdc-splitter/internal/postal"
	"github.com/ehdc-splitter/internal/store"
	"github.com/ehdc-splitter/internal/web"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// app carries the state shared by the commands of one invocation
type app struct {
	cfg      config.Config
	log      *zap.Logger
	exitCode int
}

func main() {
	os.Exit(execute(os.Args[1:]))
}

func execute(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// .env values only fill variables that are not already set
	if path := os.Getenv("SPLITTER_ENV_FILE"); path != "" {
		if err := config.LoadEnvFile(path); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitUsage
		}
	} else {
		_ = config.LoadEnv()
	}

	a := &app{cfg: config.FromEnv()}
	rootCmd := a.rootCmd()
	rootCmd.SetArgs(args)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsage
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
	return a.exitCode
}

func (a *app) rootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "splitter [input.csv]",
		Short: "Merge records sharing an address and split them into groups",
		Long: `Reads a delimited file with a header row, merges records with identical
STREET, CITY, ZIP and COUNTRY into the record with the lowest SEQUENCE_ID,
then writes final.json with every merged record and one <GROUP>_<COUNTRY>.json
per group to the output directory.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			log, err := logger.New(logger.Options{Level: a.cfg.LogLevel, Format: a.cfg.LogFormat})
			if err != nil {
				return err
			}
			a.log = log
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			var inputPath string
			if len(args) == 1 {
				inputPath = args[0]
			}
			a.exitCode = a.split(cmd.Context(), inputPath)
		},
	}

	flags := rootCmd.Flags()
	flags.StringVar(&a.cfg.Delimiter, "delimiter", a.cfg.Delimiter, `input field delimiter (a single character, or \t)`)
	flags.StringVar(&a.cfg.KeyMode, "key-mode", a.cfg.KeyMode, "address key: concat (values joined with no separator) or tuple")
	flags.StringVar(&a.cfg.Normalize, "normalize", a.cfg.Normalize, "address normalization before keying: none, canonical or libpostal")
	flags.BoolVar(&a.cfg.ExitZeroOnFailure, "exit-zero-on-failure", a.cfg.ExitZeroOnFailure, "log failures but exit 0")
	flags.StringVar(&a.cfg.DBDriver, "db-driver", a.cfg.DBDriver, "also store outputs in a database: postgres or sqlite")
	flags.StringVar(&a.cfg.DBDSN, "db-dsn", a.cfg.DBDSN, "database connection string for --db-driver")

	persistent := rootCmd.PersistentFlags()
	persistent.StringVar(&a.cfg.OutputDir, "output", a.cfg.OutputDir, "output directory")
	persistent.StringVar(&a.cfg.LogLevel, "log-level", a.cfg.LogLevel, "log level: debug, info, warn or error")
	persistent.StringVar(&a.cfg.LogFormat, "log-format", a.cfg.LogFormat, "log format: console or json")

	rootCmd.AddCommand(a.serveCmd())
	return rootCmd
}

func (a *app) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Browse the outputs of a run over HTTP",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			a.exitCode = a.serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&a.cfg.WebAddr, "addr", a.cfg.WebAddr, "listen address")
	return cmd
}

// serve runs the web browser until ctx is cancelled; errors returned from
// the command itself are reserved for usage problems
func (a *app) serve(ctx context.Context) int {
	server := web.NewServer(web.Config{Addr: a.cfg.WebAddr}, a.cfg.OutputDir, a.log)
	if err := server.Start(ctx); err != nil {
		a.log.Error("Server failed", zap.String("addr", a.cfg.WebAddr), zap.Error(err))
		return exitFailure
	}
	return exitOK
}

// split runs the pipeline once and maps its outcome to an exit code
func (a *app) split(ctx context.Context, inputPath string) int {
	host, _ := os.Hostname()
	a.log.Info("Starting splitter", zap.String("host", host))

	if err := a.runPipeline(ctx, inputPath); err != nil {
		a.log.Error("Exception occurred while processing",
			zap.String("path", inputPath),
			zap.Error(err),
			zap.String("detail", fmt.Sprintf("%+v", err)))
		if a.cfg.ExitZeroOnFailure {
			return exitOK
		}
		return exitFailure
	}

	a.log.Info("splitter ended successfully")
	return exitOK
}

func (a *app) runPipeline(ctx context.Context, inputPath string) error {
	if err := a.cfg.Validate(); err != nil {
		return err
	}
	delimiter, _ := a.cfg.DelimiterRune()
	keyMode, err := dedupe.ParseKeyMode(a.cfg.KeyMode)
	if err != nil {
		return err
	}
	normalizer, err := newNormalizer(a.cfg.Normalize)
	if err != nil {
		return err
	}

	sinks := export.MultiSink{export.NewFileSink(a.cfg.OutputDir)}
	if a.cfg.DBDriver != "" {
		conn, err := db.NewConnection(ctx, a.cfg.DBDriver, a.cfg.DBDSN)
		if err != nil {
			return err
		}
		defer conn.Close()
		sinks = append(sinks, store.NewSQLSink(conn, a.log))
	}

	runner := pipeline.New(pipeline.Options{
		Delimiter:  delimiter,
		KeyMode:    keyMode,
		Normalizer: normalizer,
	}, sinks, a.log)

	result, err := runner.Run(ctx, inputPath)
	if err != nil {
		return err
	}
	a.log.Info("Wrote outputs", zap.String("dir", a.cfg.OutputDir), zap.Strings("outputs", result.Outputs))
	return nil
}

func newNormalizer(name string) (dedupe.Normalizer, error) {
	switch name {
	case "", "none":
		return nil, nil
	case "canonical":
		return normalize.NewCanonical("STREET"), nil
	case "libpostal":
		n, err := postal.New()
		if err != nil {
			return nil, err
		}
		return n, nil
	}
	return nil, xerrors.Errorf("unknown normalizer %q (want none, canonical or libpostal)", name)
}
