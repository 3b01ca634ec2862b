package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

type globalOptions struct {
	root     string
	logLevel string
	envFiles []string
}

func (o *globalOptions) paths() (Paths, error) {
	root := o.root
	if root == "" {
		root = StringEnv("EXPERIMENTS_DIR_PATH", ".")
	}
	return InitPaths(root)
}

func NewRootCommand(stdout io.Writer) *cobra.Command {
	options := &globalOptions{}
	rc := &cobra.Command{
		Use:           "duckdb-benchmark",
		Short:         "Run SQL benchmark sweeps against builds and versions of DuckDB.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := LoadEnvFiles(options.envFiles...); err != nil {
				return err
			}
			level := options.logLevel
			if level == "" {
				level = StringEnv("LOG_LEVEL", "")
			}
			if level != "" {
				if err := SetLogLevel(level); err != nil {
					return fmt.Errorf("invalid log level %v: %w", level, err)
				}
			}
			return nil
		},
	}
	rc.PersistentFlags().StringVar(&options.root, "root", "", "Directory holding data/, systems/ and output/ (default $EXPERIMENTS_DIR_PATH or current directory).")
	rc.PersistentFlags().StringVar(&options.logLevel, "log-level", "", "Log level (debug, info, warn, error).")
	rc.PersistentFlags().StringSliceVar(&options.envFiles, "env-file", nil, "Env files to load (default .env).")

	rc.AddCommand(newRunCommand(options))
	rc.AddCommand(newBuildCommand(options))
	rc.AddCommand(newReportCommand(options, stdout))
	rc.AddCommand(newSystemsCommand(stdout))
	rc.SetOut(stdout)
	return rc
}

type runOptions struct {
	resultsDb     string
	createTursoDb bool
}

var tursoNameSanitizer = regexp.MustCompile(`[^a-z0-9-]+`)

func (o *runOptions) openSink(ctx context.Context, paths Paths, config RunConfigFile) (ResultSink, func(), error) {
	sinks := Sinks{&JsonWriter{Paths: paths}}
	target := o.resultsDb
	if target == "" && o.createTursoDb {
		storage := &Storage{
			OrgName:   StringEnv("TURSO_ORG_NAME", ""),
			GroupName: StringEnv("TURSO_GROUP_NAME", "default"),
			ApiToken:  StringEnv("TURSO_API_TOKEN", ""),
			AuthToken: StringEnv("TURSO_AUTH_TOKEN", ""),
		}
		if storage.ApiToken == "" || storage.OrgName == "" {
			return nil, nil, fmt.Errorf("TURSO_API_TOKEN and TURSO_ORG_NAME are required to create a results database")
		}
		name := tursoNameSanitizer.ReplaceAllString(strings.ToLower(config.Name), "-")
		name = fmt.Sprintf("%v-%v", strings.Trim(name, "-"), time.Now().Unix())
		if err := storage.CreateDatabase(ctx, name); err != nil {
			return nil, nil, fmt.Errorf("failed to create results database %v: %w", name, err)
		}
		target = storage.DbUrl(name)
	}
	if target == "" {
		return sinks, func() {}, nil
	}

	db, err := OpenResultsDb(target)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open results database: %w", err)
	}
	meta := HostStat().Meta()
	meta["run_name"] = config.Name
	if err := InitResultsDb(db, meta); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to initialize results database: %w", err)
	}
	return append(sinks, NewDbWriter(db)), func() { db.Close() }, nil
}

func newRunCommand(global *globalOptions) *cobra.Command {
	options := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run <config.yaml>",
		Short: "Build systems, prepare datasets and run every experiment of a run config.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runSweep(ctx, global, options, args[0])
		},
	}
	cmd.Flags().StringVar(&options.resultsDb, "results-db", "", "Also store results in this database (libsql url or sqlite file).")
	cmd.Flags().BoolVar(&options.createTursoDb, "create-turso-db", false, "Create a fresh Turso database for the results (uses TURSO_* env).")
	return cmd
}

func runSweep(ctx context.Context, global *globalOptions, options *runOptions, configPath string) error {
	paths, err := global.paths()
	if err != nil {
		return err
	}
	config, err := LoadRunConfigFile(configPath)
	if err != nil {
		return err
	}
	systems, err := config.ResolveSystems(paths)
	if err != nil {
		return err
	}
	Logger.Infof("start run %v on %+v", config.Name, HostStat())

	if err := BuildSystems(ctx, paths, systems); err != nil {
		return err
	}

	runner := &ProcessRunner{Paths: paths, Env: config.Env}
	generator := &DataGenerator{Paths: paths, Runner: runner, System: systems[0], Seed: config.RunSettings.WithDefaults().Seed}
	benchmarks := make([]Benchmark, 0, len(config.Benchmarks))
	for _, spec := range config.Benchmarks {
		benchmark, err := generator.LoadBenchmark(ctx, spec)
		if err != nil {
			return fmt.Errorf("failed to prepare benchmark %v: %w", spec.Kind, err)
		}
		benchmarks = append(benchmarks, benchmark)
	}

	experiments, settings, err := ExpandExperiments(RunConfig{
		Name:           config.Name,
		RunSettings:    config.RunSettings,
		SystemSettings: config.SystemSettings,
		Systems:        systems,
		Benchmarks:     benchmarks,
	}, time.Now())
	if err != nil {
		return err
	}

	sink, closeSink, err := options.openSink(ctx, paths, config)
	if err != nil {
		return err
	}
	defer closeSink()

	scheduler := &Scheduler{
		Executor: &Executor{Runner: runner},
		Sink:     sink,
		Parallel: settings.Parallel,
	}
	if err := scheduler.Run(ctx, experiments); err != nil {
		return fmt.Errorf("run %v failed: %w", config.Name, err)
	}
	Logger.Infof("finished run %v, results in %v", config.Name, paths.Runs)
	return nil
}

func newBuildCommand(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "build <config.yaml>",
		Short: "Fetch and build the systems of a run config.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := global.paths()
			if err != nil {
				return err
			}
			config, err := LoadRunConfigFile(args[0])
			if err != nil {
				return err
			}
			systems, err := config.ResolveSystems(paths)
			if err != nil {
				return err
			}
			return BuildSystems(cmd.Context(), paths, systems)
		},
	}
}

func newReportCommand(global *globalOptions, stdout io.Writer) *cobra.Command {
	var date string
	var csv bool
	cmd := &cobra.Command{
		Use:   "report <run-name>",
		Short: "Summarize the persisted results of a run.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := global.paths()
			if err != nil {
				return err
			}
			rows, err := LoadReport(paths, args[0], date)
			if err != nil {
				return err
			}
			RenderReport(stdout, rows, csv)
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Only report this run date.")
	cmd.Flags().BoolVar(&csv, "csv", false, "Print CSV instead of a table.")
	return cmd
}

func newSystemsCommand(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "systems",
		Short: "List the registered systems.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range RegisteredSystems() {
				fmt.Fprintln(stdout, name)
			}
		},
	}
}

func main() {
	defer Logger.Sync()
	if err := NewRootCommand(os.Stdout).ExecuteContext(context.Background()); err != nil {
		Logger.Errorf("%v", err)
		Logger.Sync()
		os.Exit(1)
	}
}
