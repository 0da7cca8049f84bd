// Package commands holds the usftpd CLI's cobra command tree.
package commands

import (
	"github.com/spf13/cobra"
)

// Build-time variables, set by main from ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "usftpd",
	Short: "usftpd - a standalone SFTP v3 server",
	Long: `usftpd serves a directory tree over SFTP protocol version 3.

Configuration is read entirely from the environment:

  USFTPD_DATA_DIR    root of the served tree (default "./data")
  USFTPD_CONFIG_DIR  where the host key is stored (default "./config")
  USFTPD_PORT        listen address (default ":2022")
  USFTPD_USER        username to accept
  USFTPD_PASSWORD    password to accept
                     (both unset: accept any credentials;
                     otherwise both must match)`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.Printf("usftpd %s (commit: %s, built: %s)\n", Version, Commit, Date)
		return nil
	},
}
