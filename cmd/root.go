package cmd

import (
	"fmt"
	"os"

	"github.com/agentic-research/twbgraph/api"
	"github.com/agentic-research/twbgraph/internal/config"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"
)

var (
	configPath string
	prefsPath  string

	// cfg is loaded before any subcommand runs.
	cfg = config.Default()
	// hostFS is where workbooks, preference files and config are read from.
	hostFS billy.Filesystem = osfs.Default
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "twbgraph.hcl", "Path to HCL config")
	rootCmd.PersistentFlags().StringVarP(&prefsPath, "prefs", "p", "", "Preference file holding color palettes (overrides config)")
}

var rootCmd = &cobra.Command{
	Use:           "twbgraph",
	Short:         "twbgraph: inspect and restyle analytics workbooks",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(hostFS, configPath, cmd.Flags().Changed("config"))
		if err != nil {
			return err
		}
		cfg = loaded
		if prefsPath != "" {
			cfg.Preferences = prefsPath
		}
		return nil
	},
}

// preferences returns the preference file path in effect.
func preferences(c *api.Config) string {
	if c.Preferences == "" {
		return config.DefaultPreferences
	}
	return c.Preferences
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
