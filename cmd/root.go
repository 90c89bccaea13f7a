package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Asishkarthikeya/Codebase-Agent/internal/config"
	"github.com/Asishkarthikeya/Codebase-Agent/internal/engine"
)

var (
	flagProvider   string
	flagModel      string
	flagPersistDir string
	flagLogLevel   string
)

var rootCmd = &cobra.Command{
	Use:          "codebase-agent",
	Short:        "Question answering over an indexed codebase",
	Long:         "Indexes a codebase into a vector store and knowledge graph, then answers questions about it with an agentic retrieval loop.",
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagProvider, "provider", "", "chat provider: ollama, openai, gemini or groq (default from environment)")
	rootCmd.PersistentFlags().StringVar(&flagModel, "model", "", "chat model (default: provider's primary model)")
	rootCmd.PersistentFlags().StringVar(&flagPersistDir, "persist-dir", "", "directory for the index and session artefacts")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: trace, debug, info, warn or error")
}

// loadOptions merges environment configuration with flag overrides and
// configures logging from the result.
func loadOptions() (config.Options, error) {
	opts, err := config.Load()
	if err != nil {
		return opts, err
	}
	if flagProvider != "" {
		opts.ChatProvider = flagProvider
	}
	if flagModel != "" {
		opts.Model = flagModel
	}
	if flagPersistDir != "" {
		opts.PersistDir = flagPersistDir
	}
	if flagLogLevel != "" {
		opts.LogLevel = flagLogLevel
	}
	setupLogging(opts.LogLevel)
	return opts, nil
}

func setupLogging(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

func openEngine() (*engine.Engine, error) {
	opts, err := loadOptions()
	if err != nil {
		return nil, err
	}
	return engine.New(opts, engine.Deps{})
}
