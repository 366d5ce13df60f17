package ranking

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	apperrors "github.com/Taichi-iskw/yt-rank/internal/errors"
	"github.com/Taichi-iskw/yt-rank/internal/logger"
	"github.com/Taichi-iskw/yt-rank/internal/model"
	"github.com/Taichi-iskw/yt-rank/internal/service/youtube"
)

const (
	minQueryLength     = 2
	DefaultSearchLimit = 20
	MaxSearchLimit     = 50
)

var (
	channelIDPattern  = regexp.MustCompile(`^UC[A-Za-z0-9_-]{22}$`)
	channelURLPattern = regexp.MustCompile(`/channel/(UC[A-Za-z0-9_-]{22})`)
	handlePattern     = regexp.MustCompile(`^@([A-Za-z0-9._-]{3,30})$`)
	handleURLPattern  = regexp.MustCompile(`/(@[A-Za-z0-9._-]{3,30})`)
)

// HandleResolver maps an @handle to an external channel ID
type HandleResolver interface {
	ResolveHandle(ctx context.Context, handle string) (string, error)
}

// Search matches channels by name or handle. Queries that look like a channel
// ID, a channel URL or a handle are looked up exactly first.
func (s *rankingService) Search(ctx context.Context, query string, limit int) (*SearchResult, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < minQueryLength {
		return &SearchResult{Channels: []*model.Channel{}}, nil
	}

	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	limit = min(limit, MaxSearchLimit)

	term := query
	if externalID, token := s.identify(ctx, query); externalID != "" {
		ch, err := s.channels.FindByExternalID(ctx, externalID)
		if err == nil {
			return &SearchResult{Channels: []*model.Channel{ch}}, nil
		}
		if !apperrors.Is(err, apperrors.CodeNotFound) {
			log := logger.With("ranking")
			log.Warn().Err(err).Str("external_id", externalID).Msg("exact lookup failed, falling back to search")
		}
		term = token
	} else if token != "" {
		term = token
	}

	channels, err := s.channels.Search(ctx, term, limit)
	if err != nil {
		return nil, err
	}
	return &SearchResult{Channels: nonNil(channels)}, nil
}

// identify extracts an external ID from query when it is recognisable. token is
// the identifying fragment, used for the substring fallback.
func (s *rankingService) identify(ctx context.Context, query string) (externalID, token string) {
	if channelIDPattern.MatchString(query) {
		return query, query
	}
	if m := channelURLPattern.FindStringSubmatch(query); m != nil {
		return m[1], m[1]
	}

	handle := ""
	if m := handlePattern.FindStringSubmatch(query); m != nil {
		handle = query
	} else if strings.Contains(query, "youtube.com") {
		if m := handleURLPattern.FindStringSubmatch(query); m != nil {
			handle = m[1]
		}
	}
	if handle == "" {
		return "", ""
	}
	if s.resolver == nil {
		return "", handle
	}

	id, err := s.resolver.ResolveHandle(ctx, handle)
	if err != nil {
		if !apperrors.Is(err, apperrors.CodeNotFound) {
			log := logger.With("ranking")
			log.Warn().Err(err).Str("handle", handle).Msg("handle resolution failed")
		}
		return "", handle
	}
	return id, handle
}

// sourceResolver resolves handles through the channel source, trying each
// credential until one is accepted
type sourceResolver struct {
	source youtube.ChannelSource
	creds  []model.Credential
}

// NewSourceResolver returns nil when there are no credentials
func NewSourceResolver(source youtube.ChannelSource, creds []model.Credential) HandleResolver {
	if source == nil || len(creds) == 0 {
		return nil
	}
	return &sourceResolver{source: source, creds: creds}
}

func (r *sourceResolver) ResolveHandle(ctx context.Context, handle string) (string, error) {
	var lastErr error
	for _, cred := range r.creds {
		id, err := r.source.ResolveHandle(ctx, handle, cred)
		if err == nil {
			return id, nil
		}
		lastErr = err
		code := apperrors.CodeOf(err)
		if code != apperrors.CodeQuotaExceeded && code != apperrors.CodeInvalidCredential {
			return "", err
		}
	}
	return "", lastErr
}
