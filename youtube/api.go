package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"ytscribe/internal/retry"
)

// Estimated quota cost of each Data API call, in units.
const (
	quotaCostList   = 1
	quotaCostSearch = 100
)

// APIClient reads channel and video metadata from the YouTube Data API v3.
// Channel resolutions and video metadata are cached, so a channel listing
// followed by a transcript pass over the same videos costs no extra quota.
type APIClient struct {
	service  *youtube.Service
	retry    retry.Config
	logger   zerolog.Logger
	channels *lru.Cache[string, ChannelInfo]
	videos   *lru.Cache[string, VideoMetadata]
	quota    atomic.Int64
}

type apiOptions struct {
	endpoint   string
	httpClient *http.Client
	retry      retry.Config
	logger     zerolog.Logger
	cacheSize  int
}

// APIOption customises an APIClient.
type APIOption func(*apiOptions)

// WithAPIEndpoint overrides the Data API base URL.
func WithAPIEndpoint(endpoint string) APIOption {
	return func(o *apiOptions) { o.endpoint = endpoint }
}

// WithAPIHTTPClient sets the HTTP client. The API key is then not attached
// by the library, so this is meant for tests against a local server.
func WithAPIHTTPClient(c *http.Client) APIOption {
	return func(o *apiOptions) { o.httpClient = c }
}

// WithAPIRetry sets the retry policy for every call.
func WithAPIRetry(cfg retry.Config) APIOption {
	return func(o *apiOptions) { o.retry = cfg }
}

// WithAPILogger sets the logger.
func WithAPILogger(l zerolog.Logger) APIOption {
	return func(o *apiOptions) { o.logger = l }
}

// WithCacheSize sets the number of entries of each response cache.
func WithCacheSize(n int) APIOption {
	return func(o *apiOptions) { o.cacheSize = n }
}

// NewAPIClient creates a Data API client authenticated with apiKey.
func NewAPIClient(ctx context.Context, apiKey string, opts ...APIOption) (*APIClient, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}

	o := apiOptions{
		retry:     retry.DefaultConfig(),
		logger:    zerolog.Nop(),
		cacheSize: 512,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.cacheSize <= 0 {
		o.cacheSize = 512
	}

	clientOpts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if o.endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(o.endpoint))
	}
	if o.httpClient != nil {
		clientOpts = append(clientOpts, option.WithHTTPClient(o.httpClient))
	}

	service, err := youtube.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}

	channels, err := lru.New[string, ChannelInfo](o.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create channel cache: %w", err)
	}
	videos, err := lru.New[string, VideoMetadata](o.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create video cache: %w", err)
	}

	return &APIClient{
		service:  service,
		retry:    o.retry,
		logger:   o.logger,
		channels: channels,
		videos:   videos,
	}, nil
}

// QuotaUsed returns the estimated quota units spent by this client.
func (a *APIClient) QuotaUsed() int64 {
	return a.quota.Load()
}

func (a *APIClient) spend(units int64, call string) {
	total := a.quota.Add(units)
	a.logger.Debug().Str("call", call).Int64("quota_used", total).Msg("data api call")
}

// ResolveChannel turns a ChannelRef into the channel's ID, title and uploads
// playlist. Custom URL names have no direct lookup and go through search.
func (a *APIClient) ResolveChannel(ctx context.Context, ref ChannelRef) (ChannelInfo, error) {
	key := string(ref.Kind) + ":" + ref.Value
	if info, ok := a.channels.Get(key); ok {
		return info, nil
	}

	channelID := ""
	if ref.Kind == ChannelKindCustom {
		id, err := a.searchChannel(ctx, ref.Value)
		if err != nil {
			return ChannelInfo{}, err
		}
		channelID = id
	}

	var info ChannelInfo
	err := a.do(ctx, "channels.list", quotaCostList, func(ctx context.Context) error {
		call := a.service.Channels.List([]string{"snippet", "contentDetails"}).Context(ctx)
		switch {
		case channelID != "":
			call = call.Id(channelID)
		case ref.Kind == ChannelKindID:
			call = call.Id(ref.Value)
		case ref.Kind == ChannelKindHandle:
			call = call.ForHandle("@" + ref.Value)
		case ref.Kind == ChannelKindUser:
			call = call.ForUsername(ref.Value)
		default:
			return retry.Permanent(fmt.Errorf("%w: unsupported reference %s", ErrChannelNotFound, ref))
		}

		resp, err := call.Do()
		if err != nil {
			return err
		}
		if len(resp.Items) == 0 {
			return retry.Permanent(fmt.Errorf("%w: %s", ErrChannelNotFound, ref))
		}

		ch := resp.Items[0]
		info.ID = ch.Id
		if ch.Snippet != nil {
			info.Title = ch.Snippet.Title
		}
		if ch.ContentDetails != nil && ch.ContentDetails.RelatedPlaylists != nil {
			info.UploadsPlaylistID = ch.ContentDetails.RelatedPlaylists.Uploads
		}
		return nil
	})
	if err != nil {
		return ChannelInfo{}, err
	}
	if info.UploadsPlaylistID == "" {
		return ChannelInfo{}, fmt.Errorf("%w: %s has no uploads playlist", ErrChannelNotFound, ref)
	}

	a.channels.Add(key, info)
	a.logger.Info().Str("channel", ref.String()).Str("channel_id", info.ID).Msg("channel resolved")
	return info, nil
}

func (a *APIClient) searchChannel(ctx context.Context, query string) (string, error) {
	var channelID string
	err := a.do(ctx, "search.list", quotaCostSearch, func(ctx context.Context) error {
		resp, err := a.service.Search.List([]string{"snippet"}).
			Q(query).
			Type("channel").
			MaxResults(1).
			Context(ctx).
			Do()
		if err != nil {
			return err
		}
		if len(resp.Items) == 0 || resp.Items[0].Id == nil || resp.Items[0].Id.ChannelId == "" {
			return retry.Permanent(fmt.Errorf("%w: %q", ErrChannelNotFound, query))
		}
		channelID = resp.Items[0].Id.ChannelId
		return nil
	})
	return channelID, err
}

// FetchPage is a PageFetchFunc over the channel's uploads playlist: 50
// playlist entries per page, enriched with videos.list for title, publish
// time and duration. Entries the API no longer describes (private or deleted
// videos) come back with only their ID.
func (a *APIClient) FetchPage(ctx context.Context, ref ChannelRef, cursor string) (*Page, error) {
	info, err := a.ResolveChannel(ctx, ref)
	if err != nil {
		return nil, err
	}

	var ids []string
	var next string
	err = a.do(ctx, "playlistItems.list", quotaCostList, func(ctx context.Context) error {
		call := a.service.PlaylistItems.List([]string{"contentDetails"}).
			PlaylistId(info.UploadsPlaylistID).
			MaxResults(50).
			Context(ctx)
		if cursor != "" {
			call = call.PageToken(cursor)
		}
		resp, err := call.Do()
		if err != nil {
			return err
		}
		ids = ids[:0]
		for _, item := range resp.Items {
			if item.ContentDetails != nil && item.ContentDetails.VideoId != "" {
				ids = append(ids, item.ContentDetails.VideoId)
			}
		}
		next = resp.NextPageToken
		return nil
	})
	if err != nil {
		return nil, err
	}

	details, err := a.videoDetails(ctx, ids)
	if err != nil {
		return nil, err
	}

	page := &Page{Items: make([]PageItem, 0, len(ids)), NextCursor: next}
	for _, id := range ids {
		md, ok := details[id]
		if !ok {
			page.Items = append(page.Items, PageItem{ID: id})
			continue
		}
		page.Items = append(page.Items, PageItem{
			ID:          id,
			Title:       md.Title,
			PublishedAt: md.PublishedAt.Format(time.RFC3339),
			ISODuration: normalizeDuration(md.Duration),
		})
	}
	return page, nil
}

// VideoMetadata returns one video's metadata.
func (a *APIClient) VideoMetadata(ctx context.Context, video VideoRef) (VideoMetadata, error) {
	if md, ok := a.videos.Get(video.ID); ok {
		return md, nil
	}
	details, err := a.videoDetails(ctx, []string{video.ID})
	if err != nil {
		return VideoMetadata{}, err
	}
	md, ok := details[video.ID]
	if !ok {
		return VideoMetadata{}, fmt.Errorf("%w: %s", ErrVideoNotFound, video.ID)
	}
	return md, nil
}

// videoDetails calls videos.list for ids not already cached.
func (a *APIClient) videoDetails(ctx context.Context, ids []string) (map[string]VideoMetadata, error) {
	out := make(map[string]VideoMetadata, len(ids))
	var missing []string
	for _, id := range ids {
		if md, ok := a.videos.Get(id); ok {
			out[id] = md
		} else {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return out, nil
	}

	err := a.do(ctx, "videos.list", quotaCostList, func(ctx context.Context) error {
		resp, err := a.service.Videos.List([]string{"snippet", "contentDetails"}).
			Id(missing...).
			Context(ctx).
			Do()
		if err != nil {
			return err
		}
		for _, v := range resp.Items {
			md := VideoMetadata{ID: VideoRef{ID: v.Id}}
			if v.Snippet != nil {
				md.Title = v.Snippet.Title
				md.ChannelID = v.Snippet.ChannelId
				md.ChannelTitle = v.Snippet.ChannelTitle
				md.Tags = v.Snippet.Tags
				if t, err := time.Parse(time.RFC3339, v.Snippet.PublishedAt); err == nil {
					md.PublishedAt = t
				}
			}
			if v.ContentDetails != nil {
				md.Duration = v.ContentDetails.Duration
			}
			out[v.Id] = md
			a.videos.Add(v.Id, md)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// do runs one API call under the retry policy, classifying its errors.
func (a *APIClient) do(ctx context.Context, call string, cost int64, fn func(context.Context) error) error {
	err := retry.Do(ctx, a.retry, apiErrorClassifier, func(ctx context.Context) error {
		a.spend(cost, call)
		return classifyAPIError(fn(ctx))
	})
	if err != nil {
		a.logger.Error().Err(err).Str("call", call).Msg("data api call failed")
		return fmt.Errorf("%s: %w", call, err)
	}
	return nil
}

// classifyAPIError maps Data API failures onto our sentinels and marks the
// ones a retry cannot fix as permanent.
func classifyAPIError(err error) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return err
	}

	for _, item := range gerr.Errors {
		switch item.Reason {
		case "quotaExceeded", "dailyLimitExceeded":
			return retry.Permanent(fmt.Errorf("%w: %w", ErrQuotaExceeded, err))
		case "keyInvalid", "keyExpired", "accessNotConfigured", "ipRefererBlocked":
			return retry.Permanent(fmt.Errorf("%w: %w", ErrUnauthorized, err))
		case "rateLimitExceeded", "userRateLimitExceeded":
			return err
		}
	}

	switch {
	case gerr.Code == http.StatusUnauthorized:
		return retry.Permanent(fmt.Errorf("%w: %w", ErrUnauthorized, err))
	case gerr.Code == http.StatusBadRequest && strings.Contains(gerr.Message, "API key"):
		return retry.Permanent(fmt.Errorf("%w: %w", ErrUnauthorized, err))
	case gerr.Code >= 500:
		return err
	default:
		return retry.Permanent(err)
	}
}

// apiErrorClassifier determines if an API error is retryable.
func apiErrorClassifier(err error) bool {
	if IsFatal(err) {
		return false
	}
	return retry.IsRetryable(err)
}

// normalizeDuration rewrites the Data API's zero duration "P0D" (live and
// upcoming broadcasts) as "PT0S".
func normalizeDuration(d string) string {
	if d == "P0D" {
		return "PT0S"
	}
	return d
}
