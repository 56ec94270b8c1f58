package commands

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/basic-kali-box/Blockchain-Project/pkg/consensus"
	"github.com/basic-kali-box/Blockchain-Project/pkg/core"
	"github.com/basic-kali-box/Blockchain-Project/pkg/types"
)

// GenesisCmd returns the genesis command
func GenesisCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "genesis",
		Short: "Manage genesis configuration",
		Long:  `Edit the participants and bootnodes listed in genesis.json.`,
	}
	cmd.PersistentFlags().StringVar(&file, "genesis", "", "Genesis configuration file (default <data-dir>/genesis.json)")

	path := func() string {
		if file != "" {
			return file
		}
		return genesisPath()
	}

	cmd.AddCommand(genesisAddParticipantCmd(path))
	cmd.AddCommand(genesisRemoveParticipantCmd(path))
	cmd.AddCommand(genesisAddBootnodeCmd(path))
	cmd.AddCommand(genesisShowCmd(path))
	return cmd
}

// editGenesis loads the genesis file, applies fn and saves the result
func editGenesis(path string, fn func(*core.Genesis) error) error {
	genesis, err := core.FromJSON(path)
	if err != nil {
		return fmt.Errorf("loading genesis configuration: %w", err)
	}
	if err := fn(genesis); err != nil {
		return err
	}
	if err := genesis.ToJSON(path); err != nil {
		return fmt.Errorf("saving genesis configuration: %w", err)
	}
	return nil
}

func genesisAddParticipantCmd(path func() string) *cobra.Command {
	var (
		role       string
		org        string
		publicKey  string
		fromWallet bool
	)

	cmd := &cobra.Command{
		Use:   "add-participant <username>",
		Short: "Add a participant to the genesis configuration",
		Long: `Add a participant registered when the node starts. The public key is
taken from --pubkey, or from the wallet account of the same name with
--from-wallet.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			username := args[0]

			key := publicKey
			if fromWallet {
				wallet, err := openWallet()
				if err != nil {
					return err
				}
				acc, err := wallet.GetAccount(username)
				if err != nil {
					return err
				}
				key = acc.PublicKeyHex()
			}
			if key == "" {
				return errors.New("a public key is required, pass --pubkey or --from-wallet")
			}

			err := editGenesis(path(), func(g *core.Genesis) error {
				return g.AddParticipant(core.GenesisParticipant{
					Username:     username,
					PublicKey:    key,
					Role:         types.ActorType(role),
					Organization: org,
				})
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Participant %s (%s) added to genesis configuration.\n", bold(username), role)
			return nil
		},
	}

	cmd.Flags().StringVar(&role, "role", string(types.ActorProducer), "Participant role (producer, processor, distributor, retailer, certifier, consumer)")
	cmd.Flags().StringVar(&org, "org", "", "Organization")
	cmd.Flags().StringVar(&publicKey, "pubkey", "", "Hex encoded public key")
	cmd.Flags().BoolVar(&fromWallet, "from-wallet", false, "Use the public key of the wallet account named <username>")
	return cmd
}

func genesisRemoveParticipantCmd(path func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "remove-participant <username>",
		Short: "Remove a participant from the genesis configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := editGenesis(path(), func(g *core.Genesis) error {
				return g.RemoveParticipant(args[0])
			}); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Participant %s removed from genesis configuration.\n", args[0])
			return nil
		},
	}
}

func genesisAddBootnodeCmd(path func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "add-bootnode <address>",
		Short: "Add a peer contacted at startup",
		Long:  `Add an HTTP URL, host:port or libp2p multiaddr contacted when the node starts.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := consensus.NormalizePeer(args[0])
			if err != nil {
				return err
			}

			if err := editGenesis(path(), func(g *core.Genesis) error {
				g.AddBootnode(addr)
				return nil
			}); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Bootnode %s added to genesis configuration.\n", addr)
			return nil
		},
	}
}

func genesisShowCmd(path func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the genesis configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			genesis, err := core.FromJSON(path())
			if err != nil {
				return fmt.Errorf("loading genesis configuration: %w", err)
			}

			data, err := json.MarshalIndent(genesis, "", "  ")
			if err != nil {
				return err
			}

			block := genesis.Block()
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			fmt.Fprintf(cmd.OutOrStdout(), "Genesis block hash: %s\n", bold(block.Hash()))
			return nil
		},
	}
}
