package main

import (
	"os"
	"time"

	"github.com/jrsteele09/tidal-mcp/internal/config"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// cli carries what every subcommand needs once flags are parsed.
type cli struct {
	v      *viper.Viper
	config config.Config
	logger zerolog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "tidal-mcp",
		Short: "TIDAL session manager for MCP clients",
		Long: `tidal-mcp lets MCP clients log in to TIDAL with the device flow and keeps
the resulting sessions encrypted on disk, one per session id.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := bindFlags(c.v, cmd.Flags()); err != nil {
				return err
			}
			c.config = config.New(c.v)
			c.logger = newLogger(c.config)
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String(config.KeyEnv, "", "environment name, DEV enables console logging and route logs")
	flags.String(config.KeyLogLevel, "", "log level (debug, info, warn, error)")
	flags.String(config.KeyDataFolder, "", "folder holding the session database and generated key (default ~/.tidal-mcp)")
	flags.String(config.KeyStore, "", "credential store backend (bbolt or memory)")
	flags.String(config.KeyStorageEncryptionKey, "", "storage encryption key or passphrase")
	flags.String(config.KeyClientID, "", "TIDAL client id")
	flags.String(config.KeyClientSecret, "", "TIDAL client secret")
	flags.String(config.KeyDefaultSessionID, "", "session used when a caller names none")
	flags.Duration(config.KeyCacheTTL, 0, "how long a validated session is reused (default 1h, 0 disables)")

	rootCmd.AddCommand(
		newServeCmd(c),
		newStdioCmd(c),
		newSessionsCmd(c),
		newKeygenCmd(),
	)
	return rootCmd
}

// bindFlags binds every flag to its viper key. Flags left unset fall back
// to TIDAL_* environment variables and then to the config defaults.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var bindErr error
	flags.VisitAll(func(flag *pflag.Flag) {
		if bindErr != nil || flag.Name == "help" {
			return
		}
		if err := v.BindPFlag(flag.Name, flag); err != nil {
			bindErr = errors.Wrapf(err, "[bindFlags] binding %s", flag.Name)
		}
	})
	return bindErr
}

func newLogger(c config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(c.GetLogLevel())
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	// Logs always go to stderr; stdout is reserved for the MCP stdio transport.
	var logger zerolog.Logger
	if c.GetEnv() == "DEV" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Str("app", c.GetAppName()).Logger()
}
