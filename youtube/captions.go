package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	httpclient "ytscribe/internal/http"
)

const defaultWatchBaseURL = "https://www.youtube.com"

const playerResponseMarker = "ytInitialPlayerResponse = "

// ErrPoTokenRequired is returned when every caption track needs a browser
// proof-of-origin token and cannot be fetched from here.
var ErrPoTokenRequired = errors.New("youtube: caption tracks require a PO token")

var markupTag = regexp.MustCompile(`</?[A-Za-z][^<>]*>`)

// CaptionClient fetches captions the way a browser does: it loads the watch
// page, reads the caption track list from the embedded player response and
// downloads the chosen track from the timedtext endpoint.
type CaptionClient struct {
	http    *httpclient.Client
	baseURL *url.URL
	logger  zerolog.Logger
}

// CaptionOption customises a CaptionClient.
type CaptionOption func(*CaptionClient)

// WithWatchBaseURL points the client at another host, for tests.
func WithWatchBaseURL(raw string) CaptionOption {
	return func(c *CaptionClient) {
		if u, err := url.Parse(raw); err == nil {
			c.baseURL = u
		}
	}
}

// WithCaptionLogger sets the logger.
func WithCaptionLogger(l zerolog.Logger) CaptionOption {
	return func(c *CaptionClient) { c.logger = l }
}

// NewCaptionClient returns a CaptionClient using client for every request.
func NewCaptionClient(client *httpclient.Client, opts ...CaptionOption) *CaptionClient {
	base, _ := url.Parse(defaultWatchBaseURL)
	c := &CaptionClient{http: client, baseURL: base, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ TranscriptTransport = (*CaptionClient)(nil)

// Captions implements TranscriptTransport.
func (c *CaptionClient) Captions(ctx context.Context, video VideoRef, langs []string) ([]TranscriptSegment, error) {
	page, err := c.watchPage(ctx, video)
	if err != nil {
		return nil, err
	}
	if err := page.playable(video); err != nil {
		return nil, err
	}

	tracks := page.tracks()
	if len(tracks) == 0 {
		return nil, &FetchError{Video: video, Kind: FetchTranscriptsDisabled}
	}

	track, err := pickTrack(tracks, langs)
	if err != nil {
		return nil, &FetchError{Video: video, Kind: FetchNoTranscript, Err: err}
	}
	c.logger.Debug().Str("video_id", video.ID).Str("lang", track.LanguageCode).Str("kind", track.Kind).Msg("caption track selected")

	trackURL, err := c.trackURL(track.BaseURL)
	if err != nil {
		return nil, &FetchError{Video: video, Kind: FetchTransport, Err: err}
	}

	resp, err := c.http.Get(ctx, trackURL)
	if err != nil {
		return nil, c.classify(video, err)
	}
	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil, &FetchError{Video: video, Kind: FetchTransport, Err: errors.New("empty caption response")}
	}

	segments, err := parseTimedText(resp.Body)
	if err != nil {
		return nil, &FetchError{Video: video, Kind: FetchTransport, Err: err}
	}
	return segments, nil
}

// VideoTitle returns the title shown on the watch page. It is the fallback
// when no Data API key is configured.
func (c *CaptionClient) VideoTitle(ctx context.Context, video VideoRef) (string, error) {
	page, err := c.watchPage(ctx, video)
	if err != nil {
		return "", err
	}
	if err := page.playable(video); err != nil {
		return "", err
	}
	return page.title, nil
}

// watchPage is the part of a watch page we care about.
type watchPage struct {
	title  string
	player *playerResponse
}

type playerResponse struct {
	PlayabilityStatus *struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
	VideoDetails *struct {
		VideoID string `json:"videoId"`
		Title   string `json:"title"`
		Author  string `json:"author"`
	} `json:"videoDetails"`
	Captions *struct {
		PlayerCaptionsTracklistRenderer struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"` // "asr" = auto-generated
}

func (c *CaptionClient) watchPage(ctx context.Context, video VideoRef) (*watchPage, error) {
	watchURL := strings.TrimRight(c.baseURL.String(), "/") + "/watch?v=" + url.QueryEscape(video.ID)

	doc, err := c.fetchDocument(ctx, video, watchURL)
	if err != nil {
		return nil, err
	}

	// EU visitors get a consent interstitial first.
	if v, ok := doc.Find(`form[action^="https://consent.youtube.com/s"] input[name="v"]`).Attr("value"); ok && !c.http.HasConsent(watchURL) {
		c.logger.Debug().Str("video_id", video.ID).Msg("accepting consent interstitial")
		if err := c.http.AcceptConsent(watchURL, v); err != nil {
			return nil, &FetchError{Video: video, Kind: FetchTransport, Err: err}
		}
		if doc, err = c.fetchDocument(ctx, video, watchURL); err != nil {
			return nil, err
		}
	}

	if doc.Find(".g-recaptcha").Length() > 0 {
		return nil, &FetchError{
			Video: video,
			Kind:  FetchTransport,
			Err:   &httpclient.RateLimitError{StatusCode: 429, Captcha: true},
		}
	}

	page := &watchPage{}
	var decodeErr error
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		idx := strings.Index(text, playerResponseMarker)
		if idx < 0 {
			return true
		}
		raw := balancedJSON(text[idx+len(playerResponseMarker):])
		if raw == "" {
			decodeErr = errors.New("unterminated player response")
			return false
		}
		var pr playerResponse
		if err := json.Unmarshal([]byte(raw), &pr); err != nil {
			decodeErr = fmt.Errorf("decode player response: %w", err)
			return false
		}
		page.player = &pr
		return false
	})
	if decodeErr != nil {
		return nil, &FetchError{Video: video, Kind: FetchTransport, Err: decodeErr}
	}

	switch {
	case page.player != nil && page.player.VideoDetails != nil && page.player.VideoDetails.Title != "":
		page.title = page.player.VideoDetails.Title
	default:
		page.title = doc.Find(`meta[name="title"]`).AttrOr("content", "")
		if page.title == "" {
			page.title = strings.TrimSuffix(strings.TrimSpace(doc.Find("title").First().Text()), " - YouTube")
		}
	}
	return page, nil
}

func (c *CaptionClient) fetchDocument(ctx context.Context, video VideoRef, pageURL string) (*goquery.Document, error) {
	resp, err := c.http.Get(ctx, pageURL)
	if err != nil {
		return nil, c.classify(video, err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, &FetchError{Video: video, Kind: FetchTransport, Err: fmt.Errorf("parse watch page: %w", err)}
	}
	return doc, nil
}

func (c *CaptionClient) classify(video VideoRef, err error) error {
	if httpclient.IsNotFound(err) {
		return &FetchError{Video: video, Kind: FetchNotFound, Err: err}
	}
	return &FetchError{Video: video, Kind: FetchTransport, Err: err}
}

// trackURL resolves a caption baseUrl against the watch host and drops any
// fmt parameter so the endpoint answers with its default XML.
func (c *CaptionClient) trackURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("caption url: %w", err)
	}
	u = c.baseURL.ResolveReference(u)
	q := u.Query()
	q.Del("fmt")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// playable maps the player's playability status onto a FetchError.
func (p *watchPage) playable(video VideoRef) error {
	if p.player == nil {
		return &FetchError{Video: video, Kind: FetchNotFound, Err: errors.New("no player response on watch page")}
	}
	ps := p.player.PlayabilityStatus
	if ps == nil {
		return &FetchError{Video: video, Kind: FetchNotFound, Err: errors.New("missing playability status")}
	}
	switch ps.Status {
	case "OK", "":
		return nil
	case "ERROR", "UNPLAYABLE", "LOGIN_REQUIRED":
		if strings.Contains(strings.ToLower(ps.Reason), "bot") {
			return &FetchError{Video: video, Kind: FetchTransport, Err: fmt.Errorf("blocked: %s", ps.Reason)}
		}
		return &FetchError{Video: video, Kind: FetchNotFound, Err: fmt.Errorf("%s: %s", strings.ToLower(ps.Status), ps.Reason)}
	default:
		// LIVE_STREAM_OFFLINE and friends still carry caption data when present.
		return nil
	}
}

func (p *watchPage) tracks() []captionTrack {
	if p.player == nil || p.player.Captions == nil {
		return nil
	}
	return p.player.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks
}

// pickTrack chooses a manual track in the first available preferred
// language, then a generated one. Tracks that need a PO token are skipped.
func pickTrack(tracks []captionTrack, langs []string) (captionTrack, error) {
	usable := make([]captionTrack, 0, len(tracks))
	for _, t := range tracks {
		if !strings.Contains(t.BaseURL, "&exp=xpe") {
			usable = append(usable, t)
		}
	}
	if len(usable) == 0 {
		return captionTrack{}, ErrPoTokenRequired
	}

	for _, generated := range []bool{false, true} {
		for _, lang := range langs {
			for _, t := range usable {
				if (t.Kind == "asr") == generated && t.LanguageCode == lang {
					return t, nil
				}
			}
		}
	}

	available := make([]string, 0, len(usable))
	for _, t := range usable {
		code := t.LanguageCode
		if t.Kind == "asr" {
			code += " (auto)"
		}
		available = append(available, code)
	}
	sort.Strings(available)
	return captionTrack{}, fmt.Errorf("requested %s, available: %s", strings.Join(langs, ","), strings.Join(available, ", "))
}

// balancedJSON returns the JSON object at the start of s, or "".
func balancedJSON(s string) string {
	if s == "" || s[0] != '{' {
		return ""
	}
	depth := 0
	inStr, escaped := false, false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inStr {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inStr = false
			}
			continue
		}
		switch ch {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return ""
}

// classicTimedText is the default timedtext format.
type classicTimedText struct {
	Texts []struct {
		Start string `xml:"start,attr"`
		Dur   string `xml:"dur,attr"`
		Text  string `xml:",innerxml"`
	} `xml:"text"`
}

// srv3TimedText is the format=3 variant, with millisecond attributes.
type srv3TimedText struct {
	Paragraphs []struct {
		T    string `xml:"t,attr"`
		D    string `xml:"d,attr"`
		Text string `xml:",innerxml"`
	} `xml:"body>p"`
}

// parseTimedText decodes either timedtext XML format, in document order.
func parseTimedText(data []byte) ([]TranscriptSegment, error) {
	var root struct {
		XMLName xml.Name
	}
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse timedtext XML: %w", err)
	}

	var segments []TranscriptSegment
	switch root.XMLName.Local {
	case "transcript":
		var tt classicTimedText
		if err := xml.Unmarshal(data, &tt); err != nil {
			return nil, fmt.Errorf("parse timedtext XML: %w", err)
		}
		segments = make([]TranscriptSegment, 0, len(tt.Texts))
		for _, t := range tt.Texts {
			segments = append(segments, TranscriptSegment{
				Text:     cleanCaption(t.Text),
				Start:    parseSeconds(t.Start, 1),
				Duration: parseSeconds(t.Dur, 1),
			})
		}
	case "timedtext":
		var tt srv3TimedText
		if err := xml.Unmarshal(data, &tt); err != nil {
			return nil, fmt.Errorf("parse timedtext XML: %w", err)
		}
		segments = make([]TranscriptSegment, 0, len(tt.Paragraphs))
		for _, p := range tt.Paragraphs {
			text := cleanCaption(p.Text)
			if text == "" {
				continue
			}
			segments = append(segments, TranscriptSegment{
				Text:     text,
				Start:    parseSeconds(p.T, 1000),
				Duration: parseSeconds(p.D, 1000),
			})
		}
	default:
		return nil, fmt.Errorf("unexpected timedtext root <%s>", root.XMLName.Local)
	}
	return segments, nil
}

// cleanCaption removes markup and decodes entities. innerxml keeps both
// real elements and the XML escaping; formatting tags may also arrive
// escaped once. Only tag-shaped text is removed, so a bare "<" or ">"
// survives.
func cleanCaption(s string) string {
	s = markupTag.ReplaceAllString(s, "")
	s = markupTag.ReplaceAllString(html.UnescapeString(s), "")
	s = html.UnescapeString(s)
	return strings.TrimSpace(s)
}

func parseSeconds(s string, divisor float64) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0
	}
	return f / divisor
}
