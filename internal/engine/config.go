package engine

import (
	"net/http"
	"time"

	stealth "github.com/anatolykoptev/go-stealth"
)

// Operation timeouts shared across the crawler. Navigation covers a full
// page load in headless Chrome; element wait covers selector polling after
// load; image timeout covers a single avatar or banner download.
const (
	NavTimeout   = 60 * time.Second
	ElementWait  = 15 * time.Second
	ImageTimeout = 10 * time.Second
	NavAttempts  = 3
	RelatedLimit = 50
	APIBatchSize = 50
)

// Config holds all crawler configuration, injected from main.
type Config struct {
	DataDir     string // root for the filesystem blob store
	DBPath      string // sqlite document store path ("" = <DataDir>/botgraph.db)
	DatabaseURL string // postgres document store ("" = use sqlite)

	YouTubeAPIKey         string
	YouTubeAPIKeyFallback string
	APIQPS                float64 // YouTube Data API request budget per second

	ChromePath  string // Chrome binary ("" = auto-detect)
	Headless    bool
	Concurrency int // bounded pool size for batch registration

	LikeThreshold int // minimum comment likes for commenter registration

	HTTPClient    *http.Client
	BrowserClient *stealth.BrowserClient // nil = image downloads disabled
}

var cfg Config

// Cfg exposes the crawler configuration for sub-packages.
// Always points to the current cfg value.
var Cfg = &cfg

// Init initializes the engine with the given configuration.
func Init(c Config) {
	cfg = c
	Cfg = &cfg
}
