package main

import (
	"os"
	"strings"

	"github.com/smhanov/contextual/internal/config"
	"github.com/smhanov/contextual/internal/logging"
	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"
)

var (
	// Command-line flags
	configFiles []string
	logLevel    string

	// Global state
	cfg    *config.Config
	logger arbor.ILogger
)

var rootCmd = &cobra.Command{
	Use:   "contextual",
	Short: "Chat agent that finds the context a question needs",
	Long: `contextual answers chat messages. It checks whether a message brings its
own background context, searches the web when it does not or when that
context does not fit the question, and then answers.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringSliceVarP(&configFiles, "config", "c", nil, "Configuration file path (repeatable, later files override earlier ones)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")

	rootCmd.AddCommand(serveCmd, askCmd, demoCmd, mcpCmd, versionCmd)
}

// loadConfig applies defaults -> config files -> env -> flags and builds the
// logger.
func loadConfig(cmd *cobra.Command, args []string) error {
	if len(configFiles) == 0 {
		if _, err := os.Stat("contextual.toml"); err == nil {
			configFiles = append(configFiles, "contextual.toml")
		}
	}

	var err error
	cfg, err = config.LoadFromFiles(configFiles...)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Logging.Level = strings.ToLower(logLevel)
	}

	logger = logging.Setup(cfg)
	logger.Debug().
		Strs("config_files", configFiles).
		Str("llm_provider", cfg.LLM.Provider).
		Str("search_provider", cfg.Search.Provider).
		Str("relevance_order", cfg.Policy.RelevanceOrder).
		Msg("Configuration loaded")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
