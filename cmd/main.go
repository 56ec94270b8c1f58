package main

import (
	"os"

	"github.com/basic-kali-box/Blockchain-Project/cmd/commands"
)

func main() {
	rootCmd := commands.NewRootCmd()

	rootCmd.AddCommand(commands.StartCmd())
	rootCmd.AddCommand(commands.VersionCmd())
	rootCmd.AddCommand(commands.InitCmd())
	rootCmd.AddCommand(commands.AccountCmd())
	rootCmd.AddCommand(commands.GenesisCmd())

	if err := rootCmd.Execute(); err != nil {
		commands.PrintError(err)
		os.Exit(1)
	}
}
