package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/forgevtt/forgesync/internal/dataserver"
	"github.com/forgevtt/forgesync/internal/utils"
)

var (
	home, _           = os.UserHomeDir()
	DefaultConfigPath = filepath.Join(home, ".forgesync", "config.json")
	DefaultLogFile    = filepath.Join(home, ".forgesync", "logs", "forgesync.log")
	DefaultServerURL  = "https://forge-vtt.com"
	DefaultAssetsURL  = "https://assets.forge-vtt.com"
)

// Config is the operator-facing configuration of the tool. Loaded from
// a JSON file, overridable via flags and FORGESYNC_* env vars.
type Config struct {
	// ServerURL is the asset API endpoint.
	ServerURL string `json:"server_url" mapstructure:"server_url"`

	// APIKey authenticates against the asset library.
	APIKey string `json:"api_key" mapstructure:"api_key"`

	// DataDir is the host data directory; the asset mirror lives in
	// its assets/ subdirectory and installed packages in
	// modules/, systems/ and worlds/.
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	// UserID is the asset library account id, used to recognize
	// personal library URLs during world migration.
	UserID string `json:"user_id" mapstructure:"user_id"`

	// World is the directory name of the world to migrate. Empty
	// disables the migration phase.
	World string `json:"world" mapstructure:"world"`

	Server dataserver.Config `json:"server" mapstructure:"server"`

	Path string `json:"-" mapstructure:"-"`
}

func (c *Config) Validate() error {
	if c.ServerURL == "" {
		c.ServerURL = DefaultServerURL
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	dataDir, err := utils.ResolvePath(c.DataDir)
	if err != nil {
		return fmt.Errorf("invalid data_dir %q: %w", c.DataDir, err)
	}
	c.DataDir = dataDir

	if err := utils.EnsureDir(c.MirrorDir()); err != nil {
		return fmt.Errorf("cannot create mirror directory: %w", err)
	}
	if !utils.IsWritable(c.MirrorDir()) {
		return fmt.Errorf("mirror directory %q is not writable", c.MirrorDir())
	}
	return nil
}

// MirrorDir is where the synchronized asset library lives.
func (c *Config) MirrorDir() string {
	return filepath.Join(c.DataDir, "assets")
}

// WorldDir is the directory of the world selected for migration.
func (c *Config) WorldDir() string {
	if c.World == "" {
		return ""
	}
	return filepath.Join(c.DataDir, "worlds", c.World)
}

// AssetsBaseURL is the personal library URL prefix of this account.
func (c *Config) AssetsBaseURL() string {
	if c.UserID == "" {
		return ""
	}
	return strings.TrimSuffix(DefaultAssetsURL, "/") + "/" + c.UserID + "/"
}

// BazaarBaseURL is the package bundle URL prefix.
func (c *Config) BazaarBaseURL() string {
	return strings.TrimSuffix(DefaultAssetsURL, "/") + "/bazaar/"
}

func (c *Config) Save(path string) error {
	if err := utils.EnsureParent(path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Path = path
	return &cfg, nil
}
