package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Database    DatabaseConfig
	Camera      CameraConfig      `yaml:"camera"`
	Storage     StorageConfig     `yaml:"storage"`
	Models      ModelsConfig      `yaml:"models"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Web         WebConfig
	LogLevel    string
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type CameraConfig struct {
	Enabled     bool
	DeviceIndex int `yaml:"device_index"`
	FPS         int `yaml:"fps"`
	Width       int `yaml:"width"`
	Height      int `yaml:"height"`
}

// Gallery backends
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

type StorageConfig struct {
	ImageDir    string `yaml:"image_dir"`    // thumbnails
	EncodingDir string `yaml:"encoding_dir"` // embedding files
	Backend     string `yaml:"backend"`      // "file" or "postgres"
}

type ModelsConfig struct {
	Detector      string  `yaml:"detector"` // YuNet ONNX model, empty disables
	DetectorScore float64 `yaml:"detector_score"`
	Cascade       string  `yaml:"cascade"`  // Haar cascade XML
	Embedder      string  `yaml:"embedder"` // SFace ONNX model, empty disables
}

type RecognitionConfig struct {
	// Tolerance overrides every per-generator tolerance when positive.
	Tolerance  float64
	Tolerances map[string]float64 `yaml:"tolerances"`
	Quality    QualityConfig      `yaml:"quality"`
	Guide      GuideConfig        `yaml:"guide"`
	Guidance   GuidanceConfig     `yaml:"guidance"`
}

type QualityConfig struct {
	Frame QualityFloor `yaml:"frame"`
	Crop  QualityFloor `yaml:"crop"`
}

// QualityFloor is the minimum grayscale mean and standard deviation.
type QualityFloor struct {
	Mean float64 `yaml:"mean"`
	Std  float64 `yaml:"std"`
}

// GuideConfig holds the admission ellipse size as fractions of the frame.
type GuideConfig struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

type GuidanceConfig struct {
	MinFaceRatio float64 `yaml:"min_face_ratio"`
	MaxFaceRatio float64 `yaml:"max_face_ratio"`
}

type WebConfig struct {
	Host string
	Port int
	// AllowedOrigins are browser origins, besides localhost and the
	// server's own host, that may call the API and open the guide socket.
	AllowedOrigins []string
}

// ToleranceFor returns the accept threshold for embeddings produced by generator.
func (c *RecognitionConfig) ToleranceFor(generator string, fallback float64) float64 {
	if c.Tolerance > 0 {
		return c.Tolerance
	}
	if t, ok := c.Tolerances[generator]; ok && t > 0 {
		return t
	}
	return fallback
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envIndex is like envInt but also accepts zero.
func envIndex(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envList splits a comma-separated variable, dropping empty items.
func envList(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return defaultVal
	}
	return b
}

// Defaults returns the built-in configuration without environment overrides.
func Defaults() *Config {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	cfg.Camera.Enabled = true
	cfg.Database.MaxOpenConns = 25
	cfg.Database.MaxIdleConns = 5
	cfg.Web = WebConfig{Host: "0.0.0.0", Port: 8000}
	cfg.LogLevel = "info"
	return cfg
}

func Load() *Config {
	cfg := Defaults()

	cfg.Database = DatabaseConfig{
		URL:          os.Getenv("DATABASE_URL"),
		MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", cfg.Database.MaxOpenConns),
		MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", cfg.Database.MaxIdleConns),
	}

	cfg.Camera.Enabled = envBool("CAMERA_ENABLED", cfg.Camera.Enabled)
	cfg.Camera.DeviceIndex = envIndex("CAMERA_DEVICE_INDEX", cfg.Camera.DeviceIndex)
	cfg.Camera.FPS = envInt("STREAM_FPS", cfg.Camera.FPS)
	cfg.Camera.Width = envInt("CAMERA_WIDTH", cfg.Camera.Width)
	cfg.Camera.Height = envInt("CAMERA_HEIGHT", cfg.Camera.Height)

	cfg.Storage.ImageDir = envString("IMAGE_DIR", cfg.Storage.ImageDir)
	cfg.Storage.EncodingDir = envString("ENCODING_DIR", cfg.Storage.EncodingDir)
	cfg.Storage.Backend = strings.ToLower(envString("GALLERY_BACKEND", cfg.Storage.Backend))

	cfg.Models.Detector = envString("DETECTOR_MODEL", cfg.Models.Detector)
	cfg.Models.Cascade = envString("CASCADE_PATH", cfg.Models.Cascade)
	cfg.Models.Embedder = envString("EMBEDDER_MODEL", cfg.Models.Embedder)

	cfg.Recognition.Tolerance = envFloat("TOLERANCE", 0)

	cfg.Web.Host = envString("WEB_HOST", cfg.Web.Host)
	cfg.Web.Port = envInt("WEB_PORT", cfg.Web.Port)
	cfg.Web.AllowedOrigins = envList("WEB_ALLOWED_ORIGINS")
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)

	return cfg
}
