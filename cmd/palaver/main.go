package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

var rootCmd = &cobra.Command{
	Use:          "palaver",
	Short:        "palaver keeps streaming chat conversations with an OpenAI compatible API",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// reinitialize the logger because we can now parse --log-level and co
		// from the command line flag
		initLogger()
	},
}

func initLogger() {
	logLevel := viper.GetString("log-level")
	verbose := viper.GetBool("verbose")
	if verbose && logLevel != "trace" {
		logLevel = "debug"
	}

	err := InitLogger(&logConfig{
		Level:      logLevel,
		LogFile:    viper.GetString("log-file"),
		LogFormat:  viper.GetString("log-format"),
		WithCaller: viper.GetBool("with-caller"),
	})
	cobra.CheckErr(err)
}

type logConfig struct {
	WithCaller bool
	Level      string
	LogFormat  string
	LogFile    string
}

func InitLogger(config *logConfig) error {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if config.WithCaller {
		logger = logger.With().Caller().Logger()
	}

	// default is text
	var logWriter io.Writer
	if config.LogFormat == "json" {
		logWriter = os.Stderr
	} else {
		logWriter = zerolog.ConsoleWriter{Out: os.Stderr}
	}

	if config.LogFile != "" {
		logWriter = io.MultiWriter(
			logWriter,
			zerolog.ConsoleWriter{
				NoColor: true,
				Out: &lumberjack.Logger{
					Filename:   config.LogFile,
					MaxSize:    10, // megabytes
					MaxBackups: 3,
					MaxAge:     28, //days
				},
			})
	}

	log.Logger = logger.Output(logWriter)

	if config.Level == "" {
		config.Level = "info"
	}
	level, err := zerolog.ParseLevel(config.Level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(level)

	return nil
}

func initConfig(rootCmd *cobra.Command, configPath string) error {
	viper.SetEnvPrefix("palaver")

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.palaver")

		xdgConfigPath, err := os.UserConfigDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(xdgConfigPath, "palaver"))
		}
	}

	err := viper.ReadInConfig()
	// if the file does not exist, continue normally
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		// Config file not found; ignore error
	} else if err != nil {
		return err
	}
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	err = viper.BindPFlags(rootCmd.PersistentFlags())
	if err != nil {
		return err
	}

	// the flags are not parsed yet, this only applies the config file
	initLogger()

	log.Debug().
		Str("config", viper.ConfigFileUsed()).
		Msg("Loaded configuration")

	return nil
}

// configFileFromArgs finds --config before cobra parses the flags.
func configFileFromArgs(args []string) string {
	for idx, arg := range args {
		if arg == "--config" && len(args) > idx+1 {
			return args[idx+1]
		}
		if v, ok := strings.CutPrefix(arg, "--config="); ok {
			return v
		}
	}
	return ""
}

func init() {
	flags := rootCmd.PersistentFlags()

	// logging flags
	flags.Bool("with-caller", false, "Log caller")
	flags.String("log-level", "info", "Log level (trace, debug, info, warn, error, fatal)")
	flags.String("log-format", "text", "Log format (json, text)")
	flags.String("log-file", "", "Log file (default: stderr)")
	flags.Bool("verbose", false, "Verbose output")
	flags.String("config", "", "Path to config file (default ~/.palaver/config.yaml)")

	// connection
	flags.String("api-key", "", "API key, stored with the state once given")
	flags.String("base-url", "", "Base URL of the OpenAI compatible API")
	flags.String("organization", "", "OpenAI organization")
	flags.Duration("timeout", 0, "Request timeout (default 60s)")

	// completion settings, applied to the stored settings when given
	flags.String("model", "", "Model")
	flags.Float64("temperature", 0, "Sampling temperature")
	flags.Float64("top-p", 0, "Nucleus sampling")
	flags.Int("max-tokens", 0, "Maximum number of tokens in a response")
	flags.StringSlice("stop", nil, "Stop sequences")

	// state
	flags.String("state-backend", "file", "Where the state is kept (file, sqlite, memory)")
	flags.String("state-path", "", "State directory or sqlite file (default: user config dir)")
	flags.Bool("no-titles", false, "Do not infer conversation titles")

	rootCmd.AddCommand(
		newChatCommand(),
		newSendCommand(),
		newRegenerateCommand(),
		newConversationsCommand(),
		newExportCommand(),
		newImportCommand(),
		newSettingsCommand(),
		newKeyCommand(),
	)
}

func main() {
	cobra.CheckErr(initConfig(rootCmd, configFileFromArgs(os.Args)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
