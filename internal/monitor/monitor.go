// Package monitor periodically plays every viewer channel headlessly and keeps
// the latest result per channel.
package monitor

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"backoffice/internal/backend"
	"backoffice/internal/player"
	"backoffice/internal/streamcheck"
	"backoffice/internal/viewer"
)

type ChannelSource interface {
	ViewerChannels(ctx context.Context, token string) (*backend.ChannelList, error)
	ViewerChannel(ctx context.Context, token, id string) (*backend.Channel, error)
}

type Prober interface {
	Check(ctx context.Context, url string) (*streamcheck.Report, error)
}

type Sink interface {
	ChannelHealth(channel string, up bool, latency time.Duration)
}

type Options struct {
	Source     ChannelSource
	Prober     Prober
	Sink       Sink
	Token      string
	APIBaseURL string
	Interval   time.Duration
	Concurrent int
	Logger     zerolog.Logger
}

type Result struct {
	Channel   string       `json:"channel"`
	Up        bool         `json:"up"`
	State     player.State `json:"state,omitempty"`
	Message   string       `json:"message,omitempty"`
	LatencyMS int64        `json:"latency_ms"`
	At        time.Time    `json:"at"`
}

type Monitor struct {
	opts Options
	log  zerolog.Logger

	mu   sync.RWMutex
	last map[string]Result
}

func New(opts Options) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.Concurrent <= 0 {
		opts.Concurrent = 4
	}
	return &Monitor{opts: opts, log: opts.Logger, last: make(map[string]Result)}
}

// Run checks all channels every interval until ctx ends.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()
	for {
		if _, err := m.RunOnce(ctx); err != nil && ctx.Err() == nil {
			m.log.Error().Err(err).Msg("load channels")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce checks every channel, at most Concurrent at a time, and returns the
// results sorted by channel id.
func (m *Monitor) RunOnce(ctx context.Context) ([]Result, error) {
	list, err := m.opts.Source.ViewerChannels(ctx, m.opts.Token)
	if err != nil {
		return nil, err
	}
	results := make([]Result, len(list.Channels))
	sem := make(chan struct{}, m.opts.Concurrent)
	var wg sync.WaitGroup
	for i, id := range list.Channels {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, id string) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = m.probe(ctx, id)
		}(i, id)
	}
	wg.Wait()

	m.mu.Lock()
	for _, r := range results {
		m.last[r.Channel] = r
	}
	m.mu.Unlock()
	sort.Slice(results, func(i, j int) bool { return results[i].Channel < results[j].Channel })
	return results, nil
}

func (m *Monitor) probe(ctx context.Context, id string) (res Result) {
	start := time.Now()
	res = Result{Channel: id, At: start.UTC()}
	defer func() {
		res.LatencyMS = time.Since(start).Milliseconds()
		if m.opts.Sink != nil {
			m.opts.Sink.ChannelHealth(id, res.Up, time.Since(start))
		}
		m.log.Debug().Str("channel", id).Bool("up", res.Up).Int64("latency_ms", res.LatencyMS).Msg("channel probed")
	}()

	ch, err := m.opts.Source.ViewerChannel(ctx, m.opts.Token, id)
	if err != nil {
		res.Message = err.Error()
		return res
	}
	src := viewer.StreamURL(*ch, viewer.Options{APIBaseURL: m.opts.APIBaseURL})
	if src == "" {
		res.Message = "channel has no stream"
		return res
	}
	rep, err := m.opts.Prober.Check(ctx, src)
	if err != nil {
		res.Message = err.Error()
		return res
	}
	res.Up = rep.OK
	res.State = rep.State
	res.Message = rep.Message
	return res
}

// Snapshot returns the latest result of every channel seen so far.
func (m *Monitor) Snapshot() []Result {
	m.mu.RLock()
	out := make([]Result, 0, len(m.last))
	for _, r := range m.last {
		out = append(out, r)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Channel < out[j].Channel })
	return out
}
