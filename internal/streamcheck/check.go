// Package streamcheck plays a stream headlessly: it drives internal/player with
// an engine that fetches the manifest and the first few fragments over HTTP and
// reports how far playback got.
package streamcheck

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"backoffice/internal/player"
)

const (
	DefaultMaxFragments = 3
	DefaultUserAgent    = "backoffice-streamcheck/1.0"
	// initial load plus one reload or decoder recovery
	loadBudget = 2
)

type Options struct {
	Client       *http.Client
	MaxFragments int
	UserAgent    string
	Logger       zerolog.Logger
	Metrics      player.Recorder
}

type Checker struct {
	client   *http.Client
	maxFrags int
	ua       string
	log      zerolog.Logger
	metrics  player.Recorder
}

type Report struct {
	URL             string          `json:"url"`
	State           player.State    `json:"state"`
	OK              bool            `json:"ok"`
	Category        player.Category `json:"category,omitempty"`
	Message         string          `json:"message,omitempty"`
	Details         string          `json:"details,omitempty"`
	Reason          string          `json:"reason,omitempty"`
	Playlist        string          `json:"playlist,omitempty"`
	Variant         string          `json:"variant,omitempty"`
	Duration        float64         `json:"duration"`
	FragmentsLoaded int             `json:"fragments_loaded"`
	Reloads         int             `json:"reloads"`
	Recoveries      int             `json:"recoveries"`
	ElapsedMS       int64           `json:"elapsed_ms"`
}

func New(opts Options) *Checker {
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.MaxFragments <= 0 {
		opts.MaxFragments = DefaultMaxFragments
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	return &Checker{
		client:   opts.Client,
		maxFrags: opts.MaxFragments,
		ua:       opts.UserAgent,
		log:      opts.Logger,
		metrics:  opts.Metrics,
	}
}

type factory struct {
	c       *Checker
	ctx     context.Context
	engines []*engine
}

func (f *factory) Supported() bool { return true }

func (f *factory) New(emit func(player.EngineEvent)) player.Engine {
	e := &engine{
		ctx:      f.ctx,
		client:   f.c.client,
		ua:       f.c.ua,
		log:      f.c.log,
		emit:     emit,
		maxFrags: f.c.maxFrags,
		budget:   loadBudget,
	}
	f.engines = append(f.engines, e)
	return e
}

// Check plays url until the fragment target is reached or the player gives up.
// The returned error is only set when ctx ends first.
func (c *Checker) Check(ctx context.Context, url string) (*Report, error) {
	start := time.Now()
	f := &factory{c: c, ctx: ctx}
	p := player.New(player.Options{Factory: f, Logger: c.log, Metrics: c.metrics})
	media := &headlessMedia{paused: true, volume: 1}
	p.Mount(media)
	p.SetSource(url, true)
	defer p.Unmount()

	var e *engine
	if len(f.engines) > 0 {
		e = f.engines[len(f.engines)-1]
	}
	for e != nil && e.step() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p.HandleMediaEvent(player.MediaEvent{Kind: player.MediaDurationChange})
		p.HandleMediaEvent(player.MediaEvent{Kind: player.MediaTimeUpdate})
	}

	s := p.Snapshot()
	r := &Report{
		URL:        url,
		State:      s.State,
		Duration:   s.Duration,
		Reloads:    s.Reloads,
		Recoveries: s.Recoveries,
		ElapsedMS:  time.Since(start).Milliseconds(),
	}
	if e != nil {
		r.Playlist = e.playlist
		r.Variant = e.variant
		r.FragmentsLoaded = e.loaded
	}
	switch {
	case s.State == player.StateError && e != nil && e.cause != nil:
		pe := player.Classify(e.cause)
		r.Category = pe.Category
		r.Message = pe.Message
		r.Details = e.cause.Details
		r.Reason = e.cause.Reason
	case s.Error != nil:
		r.Category = s.Error.Category
		r.Message = s.Error.Message
	}
	r.OK = s.State == player.StatePlaying && r.FragmentsLoaded > 0
	c.log.Info().
		Str("url", url).
		Str("state", string(r.State)).
		Int("fragments", r.FragmentsLoaded).
		Int("reloads", r.Reloads).
		Int64("elapsed_ms", r.ElapsedMS).
		Msg("stream check finished")
	return r, nil
}

// headlessMedia stands in for a video element. Playback position advances as
// fragments arrive.
type headlessMedia struct {
	mu         sync.Mutex
	paused     bool
	volume     float64
	muted      bool
	current    float64
	duration   float64
	src        string
	fullscreen bool
}

func (m *headlessMedia) Play() error {
	m.mu.Lock()
	m.paused = false
	m.mu.Unlock()
	return nil
}

func (m *headlessMedia) Pause() {
	m.mu.Lock()
	m.paused = true
	m.mu.Unlock()
}

func (m *headlessMedia) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

func (m *headlessMedia) SetVolume(v float64) {
	m.mu.Lock()
	m.volume = v
	m.mu.Unlock()
}

func (m *headlessMedia) SetMuted(muted bool) {
	m.mu.Lock()
	m.muted = muted
	m.mu.Unlock()
}

func (m *headlessMedia) SetCurrentTime(t float64) {
	m.mu.Lock()
	m.current = t
	m.mu.Unlock()
}

func (m *headlessMedia) CurrentTime() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *headlessMedia) Duration() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.duration
}

func (m *headlessMedia) CanPlayType(string) bool { return false }

func (m *headlessMedia) SetSrc(url string) {
	m.mu.Lock()
	m.src = url
	m.mu.Unlock()
}

func (m *headlessMedia) RequestFullscreen() error {
	m.mu.Lock()
	m.fullscreen = true
	m.mu.Unlock()
	return nil
}

func (m *headlessMedia) ExitFullscreen() error {
	m.mu.Lock()
	m.fullscreen = false
	m.mu.Unlock()
	return nil
}

func (m *headlessMedia) setDuration(d float64) {
	m.mu.Lock()
	m.duration = d
	m.mu.Unlock()
}

func (m *headlessMedia) advance(d float64) {
	m.mu.Lock()
	if !m.paused {
		m.current += d
	}
	m.mu.Unlock()
}
