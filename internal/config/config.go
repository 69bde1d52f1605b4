package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// SourceAuth holds the optional credentials for one source, keyed by
// source name in the config file.
type SourceAuth struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	APIKey   string `yaml:"api_key"`
}

type Config struct {
	Output    string `yaml:"output"`
	Template  string `yaml:"template"`
	Format    string `yaml:"format"`
	Overwrite bool   `yaml:"overwrite"`

	IssueWorkers int `yaml:"issue_workers"`
	PageWorkers  int `yaml:"page_workers"`
	Attempts     int `yaml:"attempts"`

	UpdateFile string `yaml:"update_file"`
	Debug      bool   `yaml:"debug"`

	Cookie     string `yaml:"cookie"`
	CookieFile string `yaml:"cookie_file"`
	UserAgent  string `yaml:"user_agent"`

	Sources map[string]SourceAuth `yaml:"sources"`
}

type Options struct {
	IgnoreConfig bool
	Debug        bool
	Output       string
	Template     string
	Format       string
	Overwrite    bool
	IssueWorkers int
	PageWorkers  int
	Attempts     int
	UpdateFile   string
	Cookie       string
	CookieFile   string
	UserAgent    string
}

func DefaultConfig() *Config {
	return &Config{
		Output:       ".",
		Template:     "{publisher}/{series}/{title}",
		Format:       "cbz",
		IssueWorkers: 2,
		PageWorkers:  5,
		Attempts:     3,
		UpdateFile:   defaultUpdatePath(),
	}
}

// Path returns the location of the config file.
func Path() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "comicfetch", "config.yaml"), nil
}

func defaultUpdatePath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return "comicfetch-update.json"
	}
	return filepath.Join(base, "comicfetch", "update.json")
}

func SaveYAML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func loadYAML(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	return &c, nil
}

// LoadMerged loads the config file (when present) and overlays explicit
// CLI options on top of it.
func LoadMerged(opts Options) (*Config, string, error) {
	if opts.IgnoreConfig {
		cfg := DefaultConfig()
		mergeConfig(cfg, opts)
		normalizeDefaults(cfg)
		return cfg, "(ignored config)", nil
	}

	path, err := Path()
	if err != nil {
		return nil, "", err
	}

	if _, statErr := os.Stat(path); statErr != nil {
		cfg := DefaultConfig()
		mergeConfig(cfg, opts)
		normalizeDefaults(cfg)
		return cfg, "(default config in memory)\nRun `comicfetch config init` to create an actual config\n", nil
	}

	cfg, err := loadYAML(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config %s: %w", path, err)
	}

	mergeConfig(cfg, opts)
	normalizeDefaults(cfg)

	return cfg, path, nil
}

func mergeConfig(c *Config, o Options) {
	if o.Output != "" {
		c.Output = o.Output
	}
	if o.Template != "" {
		c.Template = o.Template
	}
	if o.Format != "" {
		c.Format = o.Format
	}
	if o.Overwrite {
		c.Overwrite = true
	}
	if o.IssueWorkers != 0 {
		c.IssueWorkers = o.IssueWorkers
	}
	if o.PageWorkers != 0 {
		c.PageWorkers = o.PageWorkers
	}
	if o.Attempts != 0 {
		c.Attempts = o.Attempts
	}
	if o.UpdateFile != "" {
		c.UpdateFile = o.UpdateFile
	}
	if o.Debug {
		c.Debug = true
	}
	if o.Cookie != "" {
		c.Cookie = o.Cookie
	}
	if o.CookieFile != "" {
		c.CookieFile = o.CookieFile
	}
	if o.UserAgent != "" {
		c.UserAgent = o.UserAgent
	}
}

func normalizeDefaults(c *Config) {
	if c.Output == "" {
		c.Output = "."
	}
	if c.Template == "" {
		c.Template = "{publisher}/{series}/{title}"
	}
	if c.Format == "" {
		c.Format = "cbz"
	}
	if c.IssueWorkers == 0 {
		c.IssueWorkers = 2
	}
	if c.PageWorkers == 0 {
		c.PageWorkers = 5
	}
	if c.Attempts == 0 {
		c.Attempts = 3
	}
	if c.UpdateFile == "" {
		c.UpdateFile = defaultUpdatePath()
	}
}

func (c *Config) Print() {
	fmt.Printf(" -output: %s\n", c.Output)
	fmt.Printf(" -template: %s\n", c.Template)
	fmt.Printf(" -format: %s\n", c.Format)
	fmt.Printf(" -issue_workers: %d\n", c.IssueWorkers)
	fmt.Printf(" -page_workers: %d\n", c.PageWorkers)
	fmt.Printf(" -attempts: %d\n", c.Attempts)
	fmt.Printf(" -update_file: %s\n", c.UpdateFile)
	if c.Overwrite {
		fmt.Printf(" -overwrite: %t\n", c.Overwrite)
	}
	if c.Debug {
		fmt.Printf(" -debug: %t\n", c.Debug)
	}
	if c.CookieFile != "" {
		fmt.Printf(" -cookie_file: %s\n", c.CookieFile)
	}
	if c.UserAgent != "" {
		fmt.Printf(" -user_agent: %s\n", c.UserAgent)
	}
	for name := range c.Sources {
		fmt.Printf(" -credentials for: %s\n", name)
	}
}
