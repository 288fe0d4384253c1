package config

import (
	"runtime"

	"github.com/digimosa/hawk-scan/internal/extractor"
)

// Config is built once at startup and handed to every component.
type Config struct {
	ConnectionPath  string
	FingerprintPath string
	// FingerprintSavePath receives the downloaded default fingerprint file.
	FingerprintSavePath string
	AllowlistPath       string
	DBPath              string
	// CacheDir holds remote objects fetched by s3, gcs and firebase.
	CacheDir string
	JSONPath string
	Workers  int
	Debug    bool
	Quiet    bool
	LogFile  string

	Extractor extractor.Config

	Connection *Connection
}

func DefaultConfig() *Config {
	return &Config{
		ConnectionPath:      "connection.yml",
		FingerprintSavePath: "fingerprint.yml",
		AllowlistPath:       "allowlist.txt",
		DBPath:              "hawk.db",
		CacheDir:            "data",
		Workers:             runtime.NumCPU() * 2, // Aggressive concurrency for I/O bound tasks
		Extractor:           extractor.DefaultConfig(),
	}
}
