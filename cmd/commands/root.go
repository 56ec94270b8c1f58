package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version of the node binary
const Version = "v0.1.0"

const envPrefix = "SUPPLYCHAIN"

// NodeConfig is the node configuration written to config.yaml by init.
// Field names follow the viper keys.
type NodeConfig struct {
	DB              string  `yaml:"db"`
	DataDir         string  `yaml:"data-dir"`
	RPC             string  `yaml:"rpc"`
	P2P             string  `yaml:"p2p"`
	ChainID         string  `yaml:"chain-id"`
	Miner           bool    `yaml:"miner"`
	MineInterval    string  `yaml:"mine-interval"`
	ResolveInterval string  `yaml:"resolve-interval"`
	PeerTimeout     string  `yaml:"peer-timeout"`
	PeerRetries     int     `yaml:"peer-retries"`
	PowWorkers      int     `yaml:"pow-workers"`
	MDNS            bool    `yaml:"mdns"`
	LogLevel        string  `yaml:"log-level"`
	LogFormat       string  `yaml:"log-format"`
	RateLimit       float64 `yaml:"rate-limit"`
	RateBurst       int     `yaml:"rate-burst"`
	DevSigner       bool    `yaml:"dev-signer"`
}

// DefaultConfig returns the settings a fresh node starts with
func DefaultConfig() NodeConfig {
	return NodeConfig{
		DB:              "pebble",
		DataDir:         defaultDataDir(),
		RPC:             "0.0.0.0:5000",
		P2P:             "/ip4/0.0.0.0/tcp/26656",
		ChainID:         "supplychain-1",
		Miner:           true,
		MineInterval:    "10s",
		ResolveInterval: "30s",
		PeerTimeout:     "5s",
		PeerRetries:     3,
		PowWorkers:      1,
		MDNS:            false,
		LogLevel:        "info",
		LogFormat:       "text",
		RateLimit:       50,
		RateBurst:       100,
	}
}

// defaultDataDir returns the default data directory
func defaultDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./.supplychain"
	}
	return filepath.Join(homeDir, ".supplychain")
}

// NewRootCmd builds the base command with the global flags bound into viper
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "supplychain",
		Short: "Supply-chain custody ledger node",
		Long: `supplychain runs a proof-of-work ledger recording product registrations
and custody transfers between registered participants. Any party can trace
a product's history and check that its chain of custody is unbroken.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			initConfig()
			return setupLogger(viper.GetString("log-level"), viper.GetString("log-format"))
		},
	}

	def := DefaultConfig()
	flags := rootCmd.PersistentFlags()
	flags.String("db", def.DB, "Database backend (leveldb, pebble, bolt, memory)")
	flags.String("data-dir", def.DataDir, "Data directory")
	flags.String("rpc", def.RPC, "HTTP API listen address")
	flags.String("p2p", def.P2P, "libp2p listen multiaddr, empty to disable")
	flags.String("chain-id", def.ChainID, "Chain ID")
	flags.Bool("miner", def.Miner, "Mine pending transactions in the background")
	flags.Duration("mine-interval", mustDuration(def.MineInterval), "Background mining interval")
	flags.Duration("resolve-interval", mustDuration(def.ResolveInterval), "Consensus resolution interval")
	flags.Duration("peer-timeout", mustDuration(def.PeerTimeout), "Timeout for fetching a peer's chain")
	flags.Int("peer-retries", def.PeerRetries, "Retries for a failed peer fetch")
	flags.Int("pow-workers", def.PowWorkers, "Goroutines used to search for a proof")
	flags.Bool("mdns", def.MDNS, "Announce and discover nodes on the local network")
	flags.String("log-level", def.LogLevel, "Log level (debug, info, warn, error)")
	flags.String("log-format", def.LogFormat, "Log format (text, json)")
	flags.Float64("rate-limit", def.RateLimit, "Write requests per second accepted by the API, 0 to disable")
	flags.Int("rate-burst", def.RateBurst, "Burst size for the API rate limit")
	flags.Bool("dev-signer", def.DevSigner, "Serve POST /sign backed by the node wallet")

	if err := viper.BindPFlags(flags); err != nil {
		panic(err)
	}

	return rootCmd
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(viper.GetString("data-dir"))
	viper.AddConfigPath("$HOME/.supplychain")
	viper.AddConfigPath(".")

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		slog.Debug("Using config file", "path", viper.ConfigFileUsed())
	}
}

// setupLogger installs the process-wide slog handler
func setupLogger(level, format string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	case "text", "":
		handler = slog.NewTextHandler(os.Stderr, opts)
	default:
		return fmt.Errorf("invalid log format %q", format)
	}

	slog.SetDefault(slog.New(handler))
	return nil
}

func mustDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		panic(err)
	}
	return d
}

func dataDir() string {
	return viper.GetString("data-dir")
}

func genesisPath() string {
	return filepath.Join(dataDir(), "genesis.json")
}

func walletPath() string {
	return filepath.Join(dataDir(), "wallet.dat")
}

// walletPassword reads the key file password from the environment
func walletPassword() string {
	return os.Getenv(envPrefix + "_PASSWORD")
}

var (
	success = color.New(color.FgGreen).SprintFunc()
	warning = color.New(color.FgYellow).SprintFunc()
	failure = color.New(color.FgRed).SprintFunc()
	bold    = color.New(color.Bold).SprintFunc()
)

// PrintError reports a command failure on stderr
func PrintError(err error) {
	fmt.Fprintln(os.Stderr, failure("Error:"), err)
}

// VersionCmd returns the version command
func VersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "supplychain %s\n", Version)
		},
	}
}
