package control

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadDriverConfig reads a DriverConfig from a JSON file on disk. Zero
// values in the file are filled by NewDriver's documented defaults
// (withDefaults), so a minimal file only needs robot_ip and
// script_file_path; headless_mode is false when absent.
func LoadDriverConfig(path string) (DriverConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DriverConfig{}, fmt.Errorf("control: read config %q: %w", path, err)
	}
	var cfg DriverConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return DriverConfig{}, fmt.Errorf("control: parse config %q: %w", path, err)
	}
	if cfg.RobotIP == "" {
		return DriverConfig{}, fmt.Errorf("control: config %q missing robot_ip", path)
	}
	if cfg.ScriptFilePath == "" {
		return DriverConfig{}, fmt.Errorf("control: config %q missing script_file_path", path)
	}
	return cfg, nil
}
