package cli

import (
	"github.com/spf13/cobra"

	"github.com/getmockd/hellotel/pkg/cli/internal/output"
	"github.com/getmockd/hellotel/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Print the configuration after applying defaults, the --config file and
HELLOTEL_* environment variables.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if jsonOutput {
			return output.JSON(cmd.OutOrStdout(), cfg)
		}
		data, err := config.ToYAML(cfg)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
