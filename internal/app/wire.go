package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"ytscribe/internal/config"
	httpclient "ytscribe/internal/http"
	"ytscribe/internal/storage"
	"ytscribe/youtube"
)

// Build wires a Runner from cfg: compiled patterns, the caption transport
// over the rate-limited HTTP client, and the Data API client when an API key
// is configured. Call Close on the result when done.
func Build(ctx context.Context, cfg *config.Config, logger zerolog.Logger, progress func(label string, total int) Progress) (*Runner, error) {
	patterns, err := cfg.Compile()
	if err != nil {
		return nil, err
	}

	writer, err := storage.NewWriter(cfg.OutputDir, cfg.OutputFormat, cfg.Overwrite)
	if err != nil {
		return nil, err
	}

	httpCfg := httpclient.DefaultConfig()
	httpCfg.Timeout = time.Duration(cfg.HTTP.Timeout)
	httpCfg.Retry = cfg.Retry()
	httpCfg.RateLimiter.RequestsPerSecond = cfg.HTTP.RequestsPerSecond
	httpCfg.Breaker = httpclient.BreakerConfig{
		FailureThreshold: cfg.HTTP.BreakerThreshold,
		Cooldown:         time.Duration(cfg.HTTP.BreakerCooldown),
	}
	if cfg.HTTP.UserAgent != "" {
		httpCfg.UserAgent = cfg.HTTP.UserAgent
	}
	hc := httpclient.New(httpCfg, httpclient.WithLogger(logger))
	captions := youtube.NewCaptionClient(hc, youtube.WithCaptionLogger(logger))

	d := Deps{
		Extractor:   youtube.NewExtractor(patterns.VideoID, patterns.Channel),
		Sanitizer:   storage.NewSanitizer(cfg.FilenameMaxLength, patterns.SanitizeFilename),
		Durations:   youtube.NewDurationParser(patterns.ISODuration),
		Writer:      writer,
		Transcripts: captions,
		Titles:      captions,
		Languages:   cfg.Languages,
		Logger:      logger,
		Progress:    progress,
	}

	if cfg.APIKey != "" {
		api, err := youtube.NewAPIClient(ctx, cfg.APIKey,
			youtube.WithAPIRetry(cfg.Retry()),
			youtube.WithAPILogger(logger),
			youtube.WithCacheSize(cfg.CacheSize),
		)
		if err != nil {
			hc.Close()
			return nil, fmt.Errorf("data api client: %w", err)
		}
		d.Metadata = api
	} else {
		logger.Warn().Msg("no API key configured; titles come from watch pages and channel listing is unavailable")
	}

	r := New(d)
	r.closer = hc
	return r, nil
}
