package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"support-rag/internal/config"
)

const configFilePath = "./configs/config.yaml"

// state is filled by the root command before any subcommand runs.
type state struct {
	configPath string
	logLevel   string
	cfg        *config.Config
}

func NewRootCmd(version string) *cobra.Command {
	st := &state{}
	rootCmd := &cobra.Command{
		Use:           "support-rag",
		Short:         "Customer support assistant backed by an FAQ corpus",
		Long:          `Answers customer questions from an FAQ corpus, scores its own confidence and flags conversations that need a human agent.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(st.configPath)
			if err != nil {
				return err
			}
			if st.logLevel != "" {
				cfg.Log.Level = st.logLevel
			}
			setupLogging(cfg.Log)
			st.cfg = cfg
			log.Debug().Str("config", st.configPath).Str("database", cfg.Database.Driver).Str("corpus", cfg.Corpus.Backend).Msg("Loaded config")
			return nil
		},
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&st.configPath, "config", configFilePath, "Path to the config file")
	rootCmd.PersistentFlags().StringVar(&st.logLevel, "log-level", "", "Override log level (debug|info|warn|error)")

	rootCmd.AddCommand(
		NewServeCmd(st),
		NewImportCmd(st),
		NewAskCmd(st),
		NewChatCmd(st),
		NewExportCmd(st),
	)
	return rootCmd
}

func setupLogging(cfg config.LogConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.Console {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Caller().Logger()
		return
	}
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Caller().Logger()
}
