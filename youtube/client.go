package youtube

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"playsync/storage"
)

// DefaultRPS is a conservative request pace for the Data API; the daily
// budget is policed separately by the quota ledger.
const DefaultRPS = 4.0

// Client is the Data API implementation of Gateway.
type Client struct {
	service *youtube.Service
	limiter *rate.Limiter
	costs   Costs
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithRPS overrides the request pace. 0 disables pacing.
func WithRPS(rps float64) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithCosts overrides per-operation quota prices.
func WithCosts(costs Costs) ClientOption {
	return func(c *Client) { c.costs = costs }
}

// NewClient builds a gateway authenticated by the given token source,
// typically the auth.Manager.
func NewClient(ctx context.Context, ts oauth2.TokenSource, opts ...ClientOption) (*Client, error) {
	service, err := youtube.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}

	c := &Client{
		service: service,
		limiter: rate.NewLimiter(rate.Limit(DefaultRPS), 1),
		costs:   DefaultCosts(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Costs returns the per-operation quota prices.
func (c *Client) Costs() Costs { return c.costs }

// FetchCollectionMeta fetches playlist metadata.
func (c *Client) FetchCollectionMeta(ctx context.Context, id string) (*CollectionMeta, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	resp, err := c.service.Playlists.
		List([]string{"snippet", "contentDetails"}).
		Id(id).
		Context(ctx).
		Do()
	if err != nil {
		return nil, mapError(err)
	}
	if len(resp.Items) == 0 {
		return nil, fmt.Errorf("%w: playlist %s", ErrNotFound, id)
	}

	pl := resp.Items[0]
	meta := &CollectionMeta{ID: id}
	if pl.Snippet != nil {
		meta.Title = pl.Snippet.Title
		meta.ChannelID = pl.Snippet.ChannelId
	}
	if pl.ContentDetails != nil {
		meta.ItemCount = pl.ContentDetails.ItemCount
	}
	return meta, nil
}

// FetchCollectionItems fetches one page of playlist membership.
func (c *Client) FetchCollectionItems(ctx context.Context, id, pageToken string) (*ItemPage, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	resp, err := c.service.PlaylistItems.
		List([]string{"contentDetails"}).
		PlaylistId(id).
		MaxResults(MaxBatchSize).
		PageToken(pageToken).
		Context(ctx).
		Do()
	if err != nil {
		return nil, mapError(err)
	}

	page := &ItemPage{NextPageToken: resp.NextPageToken}
	for _, item := range resp.Items {
		if item.ContentDetails != nil && item.ContentDetails.VideoId != "" {
			page.VideoIDs = append(page.VideoIDs, item.ContentDetails.VideoId)
		}
	}
	return page, nil
}

// FetchVideosBatch fetches metadata for up to MaxBatchSize video ids in
// one call. Unknown ids are silently absent from the result, matching
// the API's behavior (a deleted video simply drops out).
func (c *Client) FetchVideosBatch(ctx context.Context, ids []string) ([]storage.Video, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > MaxBatchSize {
		return nil, fmt.Errorf("batch of %d exceeds maximum %d", len(ids), MaxBatchSize)
	}
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	resp, err := c.service.Videos.
		List([]string{"snippet", "contentDetails", "statistics"}).
		Id(ids...).
		Context(ctx).
		Do()
	if err != nil {
		return nil, mapError(err)
	}

	videos := make([]storage.Video, 0, len(resp.Items))
	for _, item := range resp.Items {
		videos = append(videos, convertVideo(item))
	}
	return videos, nil
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func convertVideo(item *youtube.Video) storage.Video {
	v := storage.Video{ID: item.Id, UpdatedAt: time.Now().UTC()}

	if sn := item.Snippet; sn != nil {
		v.Title = sn.Title
		v.ChannelID = sn.ChannelId
		v.ChannelTitle = sn.ChannelTitle
		if t, err := time.Parse(time.RFC3339, sn.PublishedAt); err == nil {
			v.PublishedAt = t
		}
		if sn.Thumbnails != nil {
			switch {
			case sn.Thumbnails.High != nil:
				v.ThumbnailURL = sn.Thumbnails.High.Url
			case sn.Thumbnails.Medium != nil:
				v.ThumbnailURL = sn.Thumbnails.Medium.Url
			case sn.Thumbnails.Default != nil:
				v.ThumbnailURL = sn.Thumbnails.Default.Url
			}
		}
	}
	if cd := item.ContentDetails; cd != nil {
		v.Duration = parseISODuration(cd.Duration)
	}
	if st := item.Statistics; st != nil {
		v.ViewCount = int64(st.ViewCount)
		v.LikeCount = int64(st.LikeCount)
		v.CommentCount = int64(st.CommentCount)
	}
	return v
}

// parseISODuration converts the API's ISO-8601 duration (e.g. PT1H2M3S)
// to seconds. Malformed input yields 0.
func parseISODuration(s string) int64 {
	s = strings.TrimPrefix(s, "P")
	var days, total int64
	if i := strings.Index(s, "D"); i >= 0 {
		d, err := strconv.ParseInt(s[:i], 10, 64)
		if err != nil {
			return 0
		}
		days = d
		s = s[i+1:]
	}
	s = strings.TrimPrefix(s, "T")

	num := ""
	for _, r := range s {
		if r >= '0' && r <= '9' {
			num += string(r)
			continue
		}
		n, err := strconv.ParseInt(num, 10, 64)
		if err != nil {
			return 0
		}
		switch r {
		case 'H':
			total += n * 3600
		case 'M':
			total += n * 60
		case 'S':
			total += n
		default:
			return 0
		}
		num = ""
	}
	return days*86400 + total
}

// mapError folds googleapi errors into the gateway's failure classes.
func mapError(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return err
	}

	switch gerr.Code {
	case 401:
		return fmt.Errorf("%w: %s", ErrAuthExpired, gerr.Message)
	case 404:
		return fmt.Errorf("%w: %s", ErrNotFound, gerr.Message)
	case 403:
		for _, item := range gerr.Errors {
			switch item.Reason {
			case "quotaExceeded", "dailyLimitExceeded":
				return fmt.Errorf("%w: %s", ErrQuotaExceeded, gerr.Message)
			case "rateLimitExceeded", "userRateLimitExceeded":
				return fmt.Errorf("%w: %s", ErrRateLimited, gerr.Message)
			case "playlistNotFound", "videoNotFound":
				return fmt.Errorf("%w: %s", ErrNotFound, gerr.Message)
			}
		}
		// Fallback for reason-less bodies.
		if strings.Contains(gerr.Message, "quota") {
			return fmt.Errorf("%w: %s", ErrQuotaExceeded, gerr.Message)
		}
	}
	return err
}
