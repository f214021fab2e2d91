package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "HOMELABCTL"

// Load reads configuration from a file, env vars, and defaults.
func Load(path string) (*Config, error) {
	vp := viper.New()
	vp.SetEnvPrefix(envPrefix)
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()

	setDefaults(vp)

	resolved, err := resolveConfigPath(path)
	if err != nil {
		return nil, err
	}
	if resolved != "" {
		vp.SetConfigFile(resolved)
		if err := vp.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := vp.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	applyPostLoadDefaults(&cfg)
	return &cfg, nil
}

func resolveConfigPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	if envPath := os.Getenv("HOMELABCTL_CONFIG"); envPath != "" {
		return envPath, nil
	}

	candidates := []string{
		"homelabctl.yaml",
		"homelabctl.yml",
		"homelabctl.toml",
		"homelabctl.json",
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}

	configDir, err := os.UserConfigDir()
	if err == nil {
		base := filepath.Join(configDir, "homelabctl")
		for _, c := range candidates {
			p := filepath.Join(base, c)
			if _, err := os.Stat(p); err == nil {
				return p, nil
			}
		}
	}

	return "", nil
}

func setDefaults(vp *viper.Viper) {
	vp.SetDefault("global.log_level", "info")
	vp.SetDefault("global.log_format", "console")

	vp.SetDefault("gravity.db_path", "/etc/pihole/gravity.db")
	vp.SetDefault("gravity.default_group_id", 0)

	vp.SetDefault("patch.latest_pointer", "LATEST")
	vp.SetDefault("patch.containers", []string{"pihole", "caddy", "homepage"})
	vp.SetDefault("patch.must_include", []string{"/etc/pihole", "/etc/dnsmasq.d"})

	vp.SetDefault("inspect.image_repository", "homelab-backup")
	vp.SetDefault("inspect.bundle_path", "/bundle")
	vp.SetDefault("inspect.cert_file", "caddy-rootCA.crt")
}

// applyPostLoadDefaults fills in values that depend on the invoking
// user's home directory and the curated built-in lists.
func applyPostLoadDefaults(cfg *Config) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "/root"
	}

	if len(cfg.Gravity.Adlists) == 0 {
		cfg.Gravity.Adlists = []Adlist{
			{URL: "https://big.oisd.nl/", Comment: "OISD Big"},
			{URL: "https://v.firebog.net/hosts/Easyprivacy.txt", Comment: "EasyPrivacy (Firebog)"},
			{URL: "https://v.firebog.net/hosts/AdguardDNS.txt", Comment: "AdGuard DNS (Firebog)"},
		}
	}

	if cfg.Patch.BackupsRoot == "" {
		cfg.Patch.BackupsRoot = filepath.Join(home, "homelab-backups")
	}
	if len(cfg.Patch.Prefixes) == 0 {
		cfg.Patch.Prefixes = []string{
			home,
			"/etc/pihole",
			"/etc/dnsmasq.d",
			"/etc/caddy",
			"/etc/caddy_config",
		}
	}
	if cfg.Patch.RebuildScript == "" {
		cfg.Patch.RebuildScript = filepath.Join(home, "make-backup-image.sh")
	}

	if len(cfg.Inspect.Expect) == 0 {
		cfg.Inspect.Expect = append([]string{}, cfg.Patch.Containers...)
	}
}
