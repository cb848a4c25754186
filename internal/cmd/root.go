package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/tickervault/tickervault/internal/config"
	"github.com/tickervault/tickervault/internal/observability"
)

const binaryName = "tickervault"

var (
	cfgFile string
	verbose bool

	// Version info set by main package
	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

// SetVersionInfo is called by the main package to set version information.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   binaryName,
	Short: "Rate-limited EOD stock price downloader",
	Long: `tickervault downloads end-of-day stock price history into a local
store, keeping every API call within configurable per-window rate limits
(e.g. 800 requests per day, 8 per minute) that survive restarts.

Use the subcommands to perform specific operations.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. Called once by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./tickervault.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig reads the config file and environment variables if set.
func initConfig() {
	observability.InitCLILogger(binaryName, verbose)

	// a local .env may carry TICKERVAULT_API_TOKEN; absence is fine
	if err := godotenv.Load(); err == nil {
		observability.CLILogger.Debug("loaded .env file")
	}

	v := viper.GetViper()
	config.SetDefaults(v)
	config.BindEnv(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(binaryName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/" + binaryName)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			observability.CLILogger.Warn("failed to read config file", zap.Error(err))
		}
	} else {
		observability.CLILogger.Debug("using config file",
			zap.String("file", v.ConfigFileUsed()))
	}
}
