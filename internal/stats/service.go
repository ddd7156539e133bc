// Package stats serves the dashboard home counters.
package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"backoffice/internal/auth"
)

// DefaultTTL matches the dashboard's refresh interval.
const DefaultTTL = 30 * time.Second

type Stats struct {
	OnlineChannels   int       `json:"online_channels"`
	SessionsLastHour int       `json:"sessions_last_hour"`
	FetchedAt        time.Time `json:"fetched_at"`
	Cached           bool      `json:"cached"`
}

// Source is the slice of the backend client the counters come from.
type Source interface {
	OnlineChannelsCount(ctx context.Context, token string) (int, error)
	SessionsLastHourCount(ctx context.Context, token string) (int, error)
}

type Service struct {
	src   Source
	ttl   time.Duration
	cache *cacheStore
	log   zerolog.Logger
	now   func() time.Time
}

func NewService(src Source, ttl time.Duration, log zerolog.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{src: src, ttl: ttl, cache: newCache(), log: log, now: time.Now}
}

// Get returns both counters, from cache when fresh. Entries are kept per
// identity token. Errors are not cached.
func (s *Service) Get(ctx context.Context, token string) (Stats, error) {
	now := s.now()
	key := "dashboard:" + auth.Fingerprint(token)
	if st, ok := s.cache.Get(key, now); ok {
		st.Cached = true
		return st, nil
	}
	online, err := s.src.OnlineChannelsCount(ctx, token)
	if err != nil {
		return Stats{}, fmt.Errorf("online channels: %w", err)
	}
	sessions, err := s.src.SessionsLastHourCount(ctx, token)
	if err != nil {
		return Stats{}, fmt.Errorf("sessions last hour: %w", err)
	}
	st := Stats{OnlineChannels: online, SessionsLastHour: sessions, FetchedAt: now}
	s.cache.Set(key, st, s.ttl, now)
	s.log.Debug().Int("online_channels", online).Int("sessions_last_hour", sessions).Msg("dashboard stats refreshed")
	return st, nil
}
