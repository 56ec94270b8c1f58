package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/basic-kali-box/Blockchain-Project/pkg/account"
	"github.com/basic-kali-box/Blockchain-Project/pkg/core"
	"github.com/basic-kali-box/Blockchain-Project/pkg/types"
)

// demoParticipants are the accounts created by init --demo
var demoParticipants = []struct {
	name string
	role types.ActorType
	org  string
}{
	{"farmer1", types.ActorProducer, "Green Valley Farm"},
	{"processor1", types.ActorProcessor, "Fresh Foods Processing"},
	{"distributor1", types.ActorDistributor, "Quick Logistics"},
	{"retailer1", types.ActorRetailer, "City Market"},
}

// InitCmd returns the init command
func InitCmd() *cobra.Command {
	var (
		network string
		force   bool
		demo    bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a node data directory",
		Long: `Initialize writes config.yaml and genesis.json into the data directory.
With --demo it also creates wallet accounts for a producer, processor,
distributor and retailer and lists them as genesis participants.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, network, force, demo)
		},
	}

	cmd.Flags().StringVar(&network, "network", "mainnet", "Network type (mainnet, testnet, devnet)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing genesis.json")
	cmd.Flags().BoolVar(&demo, "demo", false, "Create demo participant accounts")
	return cmd
}

func runInit(cmd *cobra.Command, network string, force, demo bool) error {
	out := cmd.OutOrStdout()
	dir := dataDir()

	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	if _, err := os.Stat(genesisPath()); err == nil && !force {
		return errors.New("genesis.json already exists, use --force to overwrite")
	}

	genesis, err := core.GenesisForNetwork(network)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("chain-id") {
		genesis.ChainID = viper.GetString("chain-id")
	}

	if demo {
		wallet, err := account.NewWallet(walletPath(), walletPassword())
		if err != nil {
			return fmt.Errorf("opening wallet: %w", err)
		}
		for _, p := range demoParticipants {
			acc, err := wallet.GetAccount(p.name)
			if errors.Is(err, account.ErrAccountNotFound) {
				acc, err = wallet.CreateAccount(p.name)
			}
			if err != nil {
				return fmt.Errorf("creating account %s: %w", p.name, err)
			}
			if err := genesis.AddParticipant(core.GenesisParticipant{
				Username:     p.name,
				PublicKey:    acc.PublicKeyHex(),
				Role:         p.role,
				Organization: p.org,
			}); err != nil {
				return err
			}
			fmt.Fprintf(out, "Created participant %s (%s): %s\n", bold(p.name), p.role, acc.Address)
		}
	}

	if err := genesis.ToJSON(genesisPath()); err != nil {
		return fmt.Errorf("saving genesis configuration: %w", err)
	}

	configPath := filepath.Join(dir, "config.yaml")
	if err := writeConfig(configPath, currentConfig(genesis.ChainID)); err != nil {
		return err
	}

	fmt.Fprintf(out, "Genesis configuration saved to: %s\n", genesisPath())
	fmt.Fprintf(out, "Node configuration saved to: %s\n", configPath)
	fmt.Fprintln(out, success("Node initialized successfully!"))
	fmt.Fprintln(out, "To start the node, run: supplychain start")
	return nil
}

// currentConfig snapshots the effective settings
func currentConfig(chainID string) NodeConfig {
	return NodeConfig{
		DB:              viper.GetString("db"),
		DataDir:         viper.GetString("data-dir"),
		RPC:             viper.GetString("rpc"),
		P2P:             viper.GetString("p2p"),
		ChainID:         chainID,
		Miner:           viper.GetBool("miner"),
		MineInterval:    viper.GetDuration("mine-interval").String(),
		ResolveInterval: viper.GetDuration("resolve-interval").String(),
		PeerTimeout:     viper.GetDuration("peer-timeout").String(),
		PeerRetries:     viper.GetInt("peer-retries"),
		PowWorkers:      viper.GetInt("pow-workers"),
		MDNS:            viper.GetBool("mdns"),
		LogLevel:        viper.GetString("log-level"),
		LogFormat:       viper.GetString("log-format"),
		RateLimit:       viper.GetFloat64("rate-limit"),
		RateBurst:       viper.GetInt("rate-burst"),
		DevSigner:       viper.GetBool("dev-signer"),
	}
}

// writeConfig saves cfg as YAML
func writeConfig(path string, cfg NodeConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
