package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/terraconstructs/squircle/cmd/squircle/cmd/members"
	"github.com/terraconstructs/squircle/cmd/squircle/internal/config"
	"github.com/terraconstructs/squircle/cmd/squircle/internal/logging"
)

// Version is stamped at build time with -ldflags "-X ...cmd.Version=...".
var Version = "dev"

var (
	cfg        *config.Config
	logger     *zap.Logger
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "squircle",
	Short: "Squircle ideas board with session-store backed authentication",
	Long: `Squircle serves the ideas board API and the session gateway in front of it.
Sessions, organizations and role checks are delegated to the session store;
the local database only mirrors members and stores ideas.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configFile != "" {
			viper.SetConfigFile(configFile)
			if err := viper.ReadInConfig(); err != nil {
				return fmt.Errorf("failed to read config file: %w", err)
			}
		}

		if devMode {
			viper.Set("session_store", config.SessionStoreMemory)
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		logger, err = logging.New(cfg.Debug)
		if err != nil {
			return fmt.Errorf("failed to build logger: %w", err)
		}
		zap.ReplaceGlobals(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Path to a config file (yaml, json or toml)")
	flags.String("db-url", "", "Database connection URL (env: DATABASE_URL)")
	flags.String("server-addr", "", "Server bind address (env: SERVER_ADDR)")
	flags.String("app-url", "", "Public base URL of the application (env: APP_URL)")
	flags.String("session-store", "", "Session store backend: stytch or memory (env: SESSION_STORE)")
	flags.Bool("debug", false, "Enable debug logging (env: DEBUG)")

	bindFlags(flags, map[string]string{
		"database_url":  "db-url",
		"server_addr":   "server-addr",
		"app_url":       "app-url",
		"session_store": "session-store",
		"debug":         "debug",
	})

	rootCmd.AddCommand(members.MembersCmd)
}

// bindFlags binds config keys to flag names so a set flag wins over env and file.
func bindFlags(fs *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if f := fs.Lookup(name); f != nil {
			_ = viper.BindPFlag(key, f)
		}
	}
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
