package config

// Config is the root configuration schema.
type Config struct {
	Global  GlobalConfig  `mapstructure:"global"`
	Gravity GravityConfig `mapstructure:"gravity"`
	Patch   PatchConfig   `mapstructure:"patch"`
	Inspect InspectConfig `mapstructure:"inspect"`
}

type GlobalConfig struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"` // json or console
	LockFile  string `mapstructure:"lock_file"`
}

// Adlist is one managed blocklist entry: the URL plus the comment
// written alongside it in the gravity database.
type Adlist struct {
	URL     string `mapstructure:"url"`
	Comment string `mapstructure:"comment"`
}

type GravityConfig struct {
	// Container overrides auto-detection of the Pi-hole container.
	Container      string   `mapstructure:"container"`
	DBPath         string   `mapstructure:"db_path"` // inside the container
	DefaultGroupID int64    `mapstructure:"default_group_id"`
	Adlists        []Adlist `mapstructure:"adlists"`
}

type PatchConfig struct {
	// BackupsRoot holds timestamp-named snapshot directories plus the
	// LATEST pointer file.
	BackupsRoot   string   `mapstructure:"backups_root"`
	LatestPointer string   `mapstructure:"latest_pointer"`
	Containers    []string `mapstructure:"containers"`
	Prefixes      []string `mapstructure:"prefixes"`
	// MustInclude paths are archived even when no container reports
	// them as bind mounts, provided they exist and pass the allow-list.
	MustInclude   []string `mapstructure:"must_include"`
	RebuildScript string   `mapstructure:"rebuild_script"`
}

type InspectConfig struct {
	ImageRepository string   `mapstructure:"image_repository"`
	BundlePath      string   `mapstructure:"bundle_path"`
	Expect          []string `mapstructure:"expect"`
	CertFile        string   `mapstructure:"cert_file"`
}
