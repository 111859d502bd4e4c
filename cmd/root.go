package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/TFMV/fsjson/internal/emit"
	"github.com/TFMV/fsjson/internal/logging"
	"github.com/TFMV/fsjson/watch"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
	version = "0.1.0"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "fsjson [path]",
	Short: "Stream filesystem changes as JSON",
	Long: `fsjson watches a directory tree and writes one JSON object per change
to standard output:

  {"eventType":"moved","srcPath":"a.txt","destPath":"b.txt"}

Event types are created, modified, deleted and moved; destPath is empty
except for moves. Objects are written back to back and flushed immediately.
Logs go to stderr.

Examples:
  fsjson
  fsjson /path/to/watch
  fsjson --newline --ignore='*.swp' /path/to/watch
  fsjson --journal=events.db --redis-url=redis://localhost:6379/0 /path/to/watch
  fsjson /path/to/watch | fsjson decode`,
	Version:      version,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		root := "."
		if len(args) > 0 {
			root = args[0]
		}
		return runWatch(cmd.Context(), root)
	},
}

// Execute adds all child commands to the root command and runs it until it
// finishes or the process receives SIGINT or SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default is $HOME/.fsjson.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Only log errors")
	rootCmd.PersistentFlags().String("log-file", "", "Write logs to this file instead of stderr")

	rootCmd.Flags().Bool("recursive", true, "Watch subdirectories recursively")
	rootCmd.Flags().Bool("include-hidden", true, "Include hidden files and directories")
	rootCmd.Flags().StringSlice("ignore", []string{}, "Glob patterns for base names to ignore (repeatable)")
	rootCmd.Flags().Bool("skip-chmod", false, "Do not report attribute-only changes")
	rootCmd.Flags().Duration("move-window", watch.DefaultMoveWindow, "How long a rename waits for its destination")
	rootCmd.Flags().Int("buffer", watch.DefaultBufferSize, "Number of records queued before the watcher blocks")
	rootCmd.Flags().Bool("absolute", false, "Report absolute paths")
	rootCmd.Flags().Bool("newline", false, "Terminate every record with a newline")
	rootCmd.Flags().String("journal", "", "Also record events in this SQLite database")
	rootCmd.Flags().String("redis-url", "", "Also publish events to Redis (redis://host:port/db)")
	rootCmd.Flags().String("redis-stream", emit.DefaultRedisStream, "Redis stream key")
	rootCmd.Flags().Int64("redis-maxlen", 0, "Approximate maximum length of the Redis stream (0 for unlimited)")

	// Bind flags to viper
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	viper.BindPFlag("log-file", rootCmd.PersistentFlags().Lookup("log-file"))
	viper.BindPFlag("recursive", rootCmd.Flags().Lookup("recursive"))
	viper.BindPFlag("include-hidden", rootCmd.Flags().Lookup("include-hidden"))
	viper.BindPFlag("ignore", rootCmd.Flags().Lookup("ignore"))
	viper.BindPFlag("skip-chmod", rootCmd.Flags().Lookup("skip-chmod"))
	viper.BindPFlag("move-window", rootCmd.Flags().Lookup("move-window"))
	viper.BindPFlag("buffer", rootCmd.Flags().Lookup("buffer"))
	viper.BindPFlag("absolute", rootCmd.Flags().Lookup("absolute"))
	viper.BindPFlag("newline", rootCmd.Flags().Lookup("newline"))
	viper.BindPFlag("journal", rootCmd.Flags().Lookup("journal"))
	viper.BindPFlag("redis-url", rootCmd.Flags().Lookup("redis-url"))
	viper.BindPFlag("redis-stream", rootCmd.Flags().Lookup("redis-stream"))
	viper.BindPFlag("redis-maxlen", rootCmd.Flags().Lookup("redis-maxlen"))
}

// initConfig reads in config file and ENV variables if set.
// Nothing here may write to stdout: it carries the record stream.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		// Search config in home directory with name ".fsjson" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".fsjson")
	}

	viper.SetEnvPrefix("fsjson")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	} else if cfgFile != "" {
		fmt.Fprintf(os.Stderr, "Error reading config file %s: %v\n", cfgFile, err)
	}
}

// newLogger builds the logger selected by --verbose, --quiet and --log-file.
func newLogger() (*zap.Logger, error) {
	level := logging.LevelInfo
	if viper.GetBool("verbose") {
		level = logging.LevelDebug
	} else if viper.GetBool("quiet") {
		level = logging.LevelError
	}
	return logging.New(level, viper.GetString("log-file"))
}

func runWatch(ctx context.Context, root string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	opts := watch.Options{
		Recursive:     viper.GetBool("recursive"),
		IncludeHidden: viper.GetBool("include-hidden"),
		Ignore:        viper.GetStringSlice("ignore"),
		SkipChmod:     viper.GetBool("skip-chmod"),
		MoveWindow:    viper.GetDuration("move-window"),
		BufferSize:    viper.GetInt("buffer"),
		Absolute:      viper.GetBool("absolute"),
		Logger:        logger,
	}

	sinks, err := openSinks(ctx, logger)
	if err != nil {
		logger.Error("error opening sinks", zap.Error(err))
		return err
	}

	err = watch.Stream(ctx, root, os.Stdout, watch.Config{
		Watch:   opts,
		Newline: viper.GetBool("newline"),
		Sinks:   sinks,
	})
	if err != nil {
		logger.Error("error watching", zap.String("root", root), zap.Error(err))
		return err
	}
	return nil
}

// openSinks opens the journal and Redis sinks that are configured.
func openSinks(ctx context.Context, logger *zap.Logger) ([]watch.Sink, error) {
	var sinks []watch.Sink

	closeAll := func() {
		for _, s := range sinks {
			s.Close()
		}
	}

	if path := viper.GetString("journal"); path != "" {
		journal, err := emit.OpenJournal(ctx, path)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, journal)
		logger.Info("journal enabled", zap.String("path", path))
	}

	if url := viper.GetString("redis-url"); url != "" {
		stream, err := emit.NewRedisStream(ctx, url, viper.GetString("redis-stream"), viper.GetInt64("redis-maxlen"))
		if err != nil {
			closeAll()
			return nil, err
		}
		sinks = append(sinks, stream)
		logger.Info("redis stream enabled", zap.String("stream", stream.Stream()))
	}

	return sinks, nil
}
