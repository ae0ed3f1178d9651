package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Ask a running broker to reload its configuration",
	Long:  "A thin client calling the running server's reload tool over HTTP, for operators who do not want to use the tool protocol directly.",
	RunE:  runReload,
}

func init() {
	reloadCmd.Flags().String("addr", "http://localhost:8080", "broker base URL")
	reloadCmd.Flags().String("api-key", "", "API key to present, if the broker requires auth")
	_ = viper.BindPFlag("reload_addr", reloadCmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("reload_api_key", reloadCmd.Flags().Lookup("api-key"))
}

func runReload(cmd *cobra.Command, args []string) error {
	url := viper.GetString("reload_addr") + "/tools/reload"

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader([]byte("{}")))
	if err != nil {
		return fmt.Errorf("building reload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if key := viper.GetString("reload_api_key"); key != "" {
		req.Header.Set("X-API-Key", key)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("calling reload endpoint: %w", err)
	}
	defer resp.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decoding reload response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("reload failed (status %d): %v", resp.StatusCode, body)
	}
	cmd.Println("reload ok")
	return nil
}
