package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func TestRunValidateConfigAcceptsWellFormedDocument(t *testing.T) {
	viper.Reset()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{}`), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	viper.Set("validate_file", path)

	if err := runValidateConfig(validateConfigCmd, nil); err != nil {
		t.Errorf("runValidateConfig: %v", err)
	}
}

func TestRunValidateConfigRejectsMissingFile(t *testing.T) {
	viper.Reset()
	viper.Set("validate_file", filepath.Join(t.TempDir(), "missing.json"))

	if err := runValidateConfig(validateConfigCmd, nil); err == nil {
		t.Error("expected an error for a missing config file")
	}
}

func TestRunValidateConfigFallsBackToConfigFile(t *testing.T) {
	viper.Reset()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{}`), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	viper.Set("config_file", path)

	if err := runValidateConfig(validateConfigCmd, nil); err != nil {
		t.Errorf("runValidateConfig (via config_file fallback): %v", err)
	}
}

func TestRunValidateConfigRequiresSomePath(t *testing.T) {
	viper.Reset()

	if err := runValidateConfig(validateConfigCmd, nil); err == nil {
		t.Error("expected an error when neither --file nor config_file is set")
	}
}
