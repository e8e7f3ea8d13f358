package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Basket        Basket        `yaml:"basket"`
	Bundles       Bundles       `yaml:"bundles"`
	News          News          `yaml:"news"`
	Rates         Rates         `yaml:"rates"`
	Shopping      Shopping      `yaml:"shopping"`
	Summarization Summarization `yaml:"summarization"`
	Output        Output        `yaml:"output"`
	Server        Server        `yaml:"server"`
	Logging       Logging       `yaml:"logging"`
}

type Basket struct {
	// CSVPath seeds the basket on init and is the default import source.
	CSVPath string `yaml:"csv_path"`
}

type Bundles struct {
	// Dir is scanned for *.zip page bundles when an ingest names none.
	Dir string `yaml:"dir"`
}

type News struct {
	Feeds        []Feed `yaml:"feeds"`
	DaysBack     int    `yaml:"days_back"`
	MaxHeadlines int    `yaml:"max_headlines"`
}

type Feed struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

type Rates struct {
	TCMBURL string `yaml:"tcmb_url"`
	GoldURL string `yaml:"gold_url"`
}

type Shopping struct {
	BaseURL string `yaml:"base_url"`
}

type Summarization struct {
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	OllamaURL   string `yaml:"ollama_url"`
	OpenAIModel string `yaml:"openai_model"`
	APIKeyEnv   string `yaml:"api_key_env"`
	MaxTokens   int    `yaml:"max_tokens"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for enfmon.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "enfmon")
}

// DataDir returns the XDG data directory for enfmon.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "enfmon")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/enfmon/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'enfmon init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		News: News{
			DaysBack:     2,
			MaxHeadlines: 15,
		},
		Rates: Rates{
			TCMBURL: "https://www.tcmb.gov.tr/kurlar/today.xml",
			GoldURL: "https://altin.doviz.com/gram-altin",
		},
		Shopping: Shopping{
			BaseURL: "https://www.cimri.com",
		},
		Summarization: Summarization{
			Provider:    "ollama",
			Model:       "qwen2.5:7b",
			OllamaURL:   "http://localhost:11434",
			OpenAIModel: "gpt-4o-mini",
			APIKeyEnv:   "OPENAI_API_KEY",
			MaxTokens:   1024,
		},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// GetBundlesDir returns the configured bundle drop directory, defaulting to
// "bundles" under the data directory.
func (c *Config) GetBundlesDir() string {
	if c.Bundles.Dir != "" {
		return c.Bundles.Dir
	}
	return filepath.Join(c.GetDataDir(), "bundles")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
