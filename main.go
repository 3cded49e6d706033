// botgraph is a bot-channel graph crawler.
//
// Crawls the YouTube channel graph breadth-first from confirmed bot
// channels, records evidence (page scrapes, API metadata, screenshots,
// avatars), propagates provisional labels, and serves a label-review
// surface over MCP.
package main

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	stealth "github.com/anatolykoptev/go-stealth"

	"github.com/anatolykoptev/go_botgraph/internal/cli"
	"github.com/anatolykoptev/go_botgraph/internal/engine"
)

var version = "dev"

func main() {
	initEngine()
	cli.Version = version
	cli.Execute()
}

func initEngine() {
	c := engine.Config{
		DataDir:               env.Str("DATA_DIR", "./data"),
		DBPath:                env.Str("BOTGRAPH_DB", ""),
		DatabaseURL:           env.Str("DATABASE_URL", ""),
		YouTubeAPIKey:         env.Str("YOUTUBE_API_KEY", ""),
		YouTubeAPIKeyFallback: env.Str("YOUTUBE_API_KEY_FALLBACK", ""),
		APIQPS:                env.Float("API_QPS", 2.0),
		ChromePath:            env.Str("CHROME_PATH", ""),
		Headless:              env.Bool("HEADLESS", true),
		Concurrency:           env.Int("CONCURRENCY", 8),
		LikeThreshold:         env.Int("LIKE_THRESHOLD", 5),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     60 * time.Second,
			},
		},
	}

	bc, err := stealth.NewClient(stealth.WithTimeout(15))
	if err != nil {
		slog.Warn("stealth client init failed, image downloads disabled", slog.Any("error", err))
	} else {
		c.BrowserClient = bc
	}

	engine.Init(c)
}
