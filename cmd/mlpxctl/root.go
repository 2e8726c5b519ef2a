package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"mlpx/internal/logging"
	"mlpx/internal/storage"
	"mlpx/pkg/mlpx"
)

// newStore opens the archive backend; tests replace it.
var newStore = storage.NewStore

type app struct {
	ctx    context.Context
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	configPath string
	store      string
	dbPath     string
	logLevel   string
	logFormat  string
	seed       string

	cfg    Config
	logger *slog.Logger
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "mlpxctl",
		Short:         "Inspect and edit MLPX neural network snapshot documents",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		RunE: func(*cobra.Command, []string) error {
			return usageError("missing command")
		},
	}
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "path to a YAML config file")
	flags.StringVar(&a.store, "store", "", "archive backend: memory or sqlite")
	flags.StringVar(&a.dbPath, "db-path", "", "sqlite archive path")
	flags.StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error")
	flags.StringVar(&a.logFormat, "log-format", "", "auto, text or json")
	flags.StringVarP(&a.seed, "seed", "S", "-", "random seed as an integer, or '-' for the current time")

	root.AddCommand(
		newNewCommand(a),
		newValidateCommand(a),
		newDiffCommand(a),
		newInfoCommand(a),
		newCloneCommand(a),
		newInitializerCommand(a),
		newGetCommand(a),
		newSetCommand(a),
		newStatsCommand(a),
		newArchiveCommand(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := loadConfig(a.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("store") {
		cfg.Store = a.store
	}
	if flags.Changed("db-path") {
		cfg.DBPath = a.dbPath
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = a.logFormat
	}
	if err := cfg.validate(); err != nil {
		return err
	}
	a.cfg = cfg

	logger, err := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Writer: a.stderr})
	if err != nil {
		return err
	}
	a.logger = logger
	return nil
}

func (a *app) rng() (*rand.Rand, error) {
	if a.seed == "-" || a.seed == "" {
		return rand.New(rand.NewSource(time.Now().UTC().UnixNano())), nil
	}
	seed, err := strconv.ParseInt(a.seed, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid random seed %q: %w", a.seed, err)
	}
	return rand.New(rand.NewSource(seed)), nil
}

// open reads a document from path, or from stdin when path is "-".
func (a *app) open(path string) (*mlpx.Document, error) {
	if path != "-" {
		return mlpx.Open(path, mlpx.WithLogger(a.logger))
	}
	if f, ok := a.stdin.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		return nil, fmt.Errorf("refusing to read a document from a terminal; pipe one in or name a file")
	}
	data, err := io.ReadAll(a.stdin)
	if err != nil {
		return nil, fmt.Errorf("%w: read stdin: %w", mlpx.ErrIO, err)
	}
	return mlpx.Decode(data, mlpx.WithLogger(a.logger))
}

// write saves doc to path, or prints it when path is "-".
func (a *app) write(doc *mlpx.Document, path string) error {
	if path != "-" {
		return doc.Save(path)
	}
	data, err := doc.Encode()
	if err != nil {
		return err
	}
	_, err = a.stdout.Write(data)
	return err
}

func (a *app) openStore() (storage.Store, func(), error) {
	store, err := newStore(a.cfg.Store, a.cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	if err := store.Init(a.ctx); err != nil {
		_ = storage.CloseIfSupported(store)
		return nil, nil, fmt.Errorf("init %s store: %w", a.cfg.Store, err)
	}
	closeStore := func() {
		if err := storage.CloseIfSupported(store); err != nil {
			a.logger.Warn("close store", "error", err)
		}
	}
	return store, closeStore, nil
}
