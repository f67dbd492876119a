package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable that parameterizes a conversion run. It is
// built once (defaults, then optional file, then env, then flags) and
// treated as immutable afterwards so concurrent runs with different
// settings never observe each other.
type Config struct {
	Quality          int      `yaml:"quality" json:"quality"`
	DefaultPreset    string   `yaml:"default_preset" json:"default_preset"`
	EnableSharpen    bool     `yaml:"enable_sharpen" json:"enable_sharpen"`
	SharpenRadius    float64  `yaml:"sharpen_radius" json:"sharpen_radius"`
	SharpenAmount    float64  `yaml:"sharpen_amount" json:"sharpen_amount"`
	SharpenThreshold float64  `yaml:"sharpen_threshold" json:"sharpen_threshold"`
	AutoBright       string   `yaml:"auto_bright" json:"auto_bright"`
	SkipExisting     bool     `yaml:"skip_existing" json:"skip_existing"`
	PreserveMetadata bool     `yaml:"preserve_metadata" json:"preserve_metadata"`
	OutputSubdir     string   `yaml:"output_subdir" json:"output_subdir"`
	OutputExtension  string   `yaml:"output_extension" json:"output_extension"`
	RawExtensions    []string `yaml:"raw_extensions" json:"raw_extensions"`
	ChromaMode       string   `yaml:"chroma_mode" json:"chroma_mode"`
	VolumesDrive     string   `yaml:"volumes_drive" json:"volumes_drive"`
	Jobs             int      `yaml:"jobs" json:"jobs"`
	LogFile          string   `yaml:"log_file" json:"log_file"`
	LogJSON          bool     `yaml:"log_json" json:"log_json"`
}

func DefaultConfig() *Config {
	jobs := runtime.NumCPU() / 2
	if jobs < 1 {
		jobs = 1
	}
	if jobs > 4 {
		// RAW decodes are memory heavy; cap the default pool.
		jobs = 4
	}

	homeDir, _ := os.UserHomeDir()
	stateDir := filepath.Join(homeDir, ".spectrum")

	return &Config{
		Quality:          95,
		DefaultPreset:    "standard",
		EnableSharpen:    true,
		SharpenRadius:    1.0,
		SharpenAmount:    0.8,
		SharpenThreshold: 0.02,
		SkipExisting:     true,
		PreserveMetadata: true,
		OutputSubdir:     "converted",
		OutputExtension:  ".jpg",
		RawExtensions:    []string{"arw", "cr2", "cr3", "nef", "dng", "raf", "orf", "rw2"},
		ChromaMode:       "4:2:0",
		Jobs:             jobs,
		LogFile:          filepath.Join(stateDir, "spectrum.log"),
		LogJSON:          false,
	}
}

func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// FromEnv applies SPECTRUM_* environment overrides on top of the
// receiver and returns it for chaining.
func (c *Config) FromEnv() *Config {
	if v := envString("SPECTRUM_JPEG_QUALITY"); v != "" {
		if q, err := strconv.Atoi(v); err == nil {
			c.Quality = q
		}
	}
	if v := envString("SPECTRUM_DEFAULT_PRESET"); v != "" {
		c.DefaultPreset = v
	}
	if v, ok := envBool("SPECTRUM_ENABLE_SHARPEN"); ok {
		c.EnableSharpen = v
	}
	if v, ok := envFloat("SPECTRUM_SHARPEN_RADIUS"); ok {
		c.SharpenRadius = v
	}
	if v, ok := envFloat("SPECTRUM_SHARPEN_AMOUNT"); ok {
		c.SharpenAmount = v
	}
	if v, ok := envFloat("SPECTRUM_SHARPEN_THRESHOLD"); ok {
		c.SharpenThreshold = v
	}
	if v, ok := envBool("SPECTRUM_AUTO_BRIGHT"); ok {
		if v {
			c.AutoBright = "on"
		} else {
			c.AutoBright = "off"
		}
	}
	if v, ok := envBool("SPECTRUM_SKIP_EXISTING"); ok {
		c.SkipExisting = v
	}
	if v := envString("SPECTRUM_OUTPUT_SUBDIR"); v != "" {
		c.OutputSubdir = v
	}
	if v := envString("SPECTRUM_CHROMA"); v != "" {
		c.ChromaMode = v
	}
	if v := envString("SPECTRUM_VOLUMES_DRIVE"); v != "" {
		c.VolumesDrive = v
	}
	if v := envString("SPECTRUM_JOBS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Jobs = n
		}
	}
	return c
}

// VolumesDriveLetter returns the configured alternate-volumes drive
// letter, lowercased, or "" when unset or not alphabetic.
func (c *Config) VolumesDriveLetter() string {
	v := strings.TrimSpace(c.VolumesDrive)
	if v == "" {
		return ""
	}
	letter := strings.ToLower(v[:1])
	if letter[0] < 'a' || letter[0] > 'z' {
		return ""
	}
	return letter
}

func (c *Config) Validate() error {
	if c.Quality < 1 {
		c.Quality = 1
	}
	if c.Quality > 100 {
		c.Quality = 100
	}
	if c.Jobs < 1 {
		c.Jobs = 1
	}
	if c.DefaultPreset == "" {
		c.DefaultPreset = "standard"
	}
	if c.OutputSubdir == "" {
		c.OutputSubdir = "converted"
	}
	if c.OutputExtension == "" {
		c.OutputExtension = ".jpg"
	}
	if !strings.HasPrefix(c.OutputExtension, ".") {
		return &ValidationError{Field: "output_extension", Message: "must start with a dot"}
	}
	switch c.AutoBright {
	case "", "on", "off":
	default:
		return &ValidationError{Field: "auto_bright", Message: `must be "on", "off" or empty`}
	}
	if len(c.RawExtensions) == 0 {
		c.RawExtensions = DefaultConfig().RawExtensions
	}

	if c.LogFile == "" {
		homeDir, _ := os.UserHomeDir()
		c.LogFile = filepath.Join(homeDir, ".spectrum", "spectrum.log")
	}

	return nil
}

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func envString(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func envBool(key string) (bool, bool) {
	v := envString(key)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

func envFloat(key string) (float64, bool) {
	v := envString(key)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
