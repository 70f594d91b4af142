package main

import (
	"fmt"
	"os"

	"github.com/PolarWolf314/kaitiaki/cmd"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "kaitiaki",
	Short: "Kaitiaki - an end-to-end encrypted file drive.",
	Long: `Kaitiaki keeps files encrypted with a key that only you and the server hold.
Files are encrypted on your machine, optionally signed, and checked by the
server before they are stored.

Usage:
  kaitiaki <command> [flags]

Available Commands:
  config     Point the CLI at a server and store your token
  keys       Generate and register your key material
  files      Upload, list, download and verify files
  server     Run and administer a kaitiaki server

Run 'kaitiaki help <command>' for more details on a specific command.
`,
	Run: func(c *cobra.Command, args []string) {
		cmd.PrintBanner()
		fmt.Println("Welcome to Kaitiaki! Run 'kaitiaki --help' to see available commands.")
	},
}

func init() {
	rootCmd.AddCommand(cmd.ConfigCmd)
	rootCmd.AddCommand(cmd.KeysCmd)
	rootCmd.AddCommand(cmd.FilesCmd)
	rootCmd.AddCommand(cmd.ServerCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
