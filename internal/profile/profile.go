package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Profile is the configuration to start the main server.
type Profile struct {
	// Mode can be "prod" or "dev"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory
	Data string
	// DSN points to where the chatbot stores its own data
	DSN string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// Secret signs access tokens
	Secret string
	// Version is the current version of server
	Version string

	// AI configuration
	GeminiAPIKey  string // GEMINI_CHATBOT_GEMINI_API_KEY
	OpenAIAPIKey  string // GEMINI_CHATBOT_OPENAI_API_KEY
	OpenAIBaseURL string // GEMINI_CHATBOT_OPENAI_BASE_URL (default: https://api.openai.com/v1)

	// Attachment cleanup configuration
	// BlobDomain restricts attachment deletion to URLs under this host.
	// Empty means any host is eligible.
	BlobDomain string // GEMINI_CHATBOT_BLOB_DOMAIN
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FromEnv loads AI and attachment configuration from environment variables.
func (p *Profile) FromEnv() {
	p.GeminiAPIKey = os.Getenv("GEMINI_CHATBOT_GEMINI_API_KEY")
	p.OpenAIAPIKey = os.Getenv("GEMINI_CHATBOT_OPENAI_API_KEY")
	p.OpenAIBaseURL = getEnvOrDefault("GEMINI_CHATBOT_OPENAI_BASE_URL", "https://api.openai.com/v1")
	p.BlobDomain = os.Getenv("GEMINI_CHATBOT_BLOB_DOMAIN")
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "dev"
	}

	if p.Driver == "" {
		p.Driver = "sqlite"
	}

	if p.Secret == "" {
		return errors.New("secret is required to sign access tokens")
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		return err
	}

	p.Data = dataDir
	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("chatbot_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}

	return nil
}
