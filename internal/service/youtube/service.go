// Package youtube reads public channel statistics from the YouTube Data API v3.
package youtube

import (
	"context"
	"sync"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	apperrors "github.com/Taichi-iskw/yt-rank/internal/errors"
	"github.com/Taichi-iskw/yt-rank/internal/model"
)

const (
	// MaxBatchSize is the most channel IDs channels.list accepts per request
	MaxBatchSize = 50

	// Quota units per list request
	listCost = 1
)

// ChannelSource is the external source of channel statistics
type ChannelSource interface {
	// FetchBatch returns stats for the given channel IDs; IDs the API does not know are omitted
	FetchBatch(ctx context.Context, ids []string, cred model.Credential) ([]*model.ChannelStats, error)

	// ResolveHandle maps an @handle to its channel ID
	ResolveHandle(ctx context.Context, handle string, cred model.Credential) (string, error)

	// Cost is the worst-case quota a FetchBatch of batchSize IDs consumes
	Cost(batchSize int) int
}

// Options configures the API client
type Options struct {
	// Endpoint overrides the API base URL (tests)
	Endpoint string
	// Timeout bounds every API call
	Timeout time.Duration
	// EngagementSampleSize is how many recent uploads are sampled per channel; 0 disables sampling
	EngagementSampleSize int
}

// youTubeService implements ChannelSource
type youTubeService struct {
	opts Options

	mu       sync.Mutex
	services map[string]*youtube.Service // keyed by API key
}

// NewChannelSource creates a new ChannelSource
func NewChannelSource(opts Options) ChannelSource {
	if opts.EngagementSampleSize > MaxBatchSize {
		opts.EngagementSampleSize = MaxBatchSize
	}
	return &youTubeService{
		opts:     opts,
		services: make(map[string]*youtube.Service),
	}
}

// Cost counts one channels.list call plus, when sampling, a playlistItems.list
// and a videos.list call per channel
func (s *youTubeService) Cost(batchSize int) int {
	if s.opts.EngagementSampleSize <= 0 {
		return listCost
	}
	return listCost + 2*listCost*batchSize
}

// service returns the API client bound to cred, creating it on first use
func (s *youTubeService) service(ctx context.Context, cred model.Credential) (*youtube.Service, error) {
	if cred.APIKey == "" {
		return nil, apperrors.New(apperrors.CodeInvalidCredential, "credential "+cred.Name+" has no API key")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if svc, ok := s.services[cred.APIKey]; ok {
		return svc, nil
	}

	opts := []option.ClientOption{option.WithAPIKey(cred.APIKey)}
	if s.opts.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(s.opts.Endpoint))
	}

	svc, err := youtube.NewService(context.WithoutCancel(ctx), opts...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to create YouTube service")
	}
	s.services[cred.APIKey] = svc
	return svc, nil
}

// callContext applies the per-call timeout
func (s *youTubeService) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opts.Timeout)
}
