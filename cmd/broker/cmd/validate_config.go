package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/enginemcp/broker/internal/config"
)

var validateConfigCmd = &cobra.Command{
	Use:   "validate-config",
	Short: "Validate a broker configuration document without starting the server",
	RunE:  runValidateConfig,
}

func init() {
	validateConfigCmd.Flags().String("file", "", "path to the configuration document (default: config-file / DH_MCP_CONFIG_FILE)")
	_ = viper.BindPFlag("validate_file", validateConfigCmd.Flags().Lookup("file"))
}

func runValidateConfig(cmd *cobra.Command, args []string) error {
	path := viper.GetString("validate_file")
	if path == "" {
		path = viper.GetString("config_file")
	}
	if path == "" {
		return fmt.Errorf("no config file given: pass --file or set DH_MCP_CONFIG_FILE")
	}

	if err := config.Validate(path); err != nil {
		return fmt.Errorf("config invalid: %w", err)
	}
	cmd.Println("config valid:", path)
	return nil
}
