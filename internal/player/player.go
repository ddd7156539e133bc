// Package player models the dashboard's adaptive playback client: engine
// selection, the loading/playing/error lifecycle, error recovery and transport
// controls over a media element.
package player

import (
	"math"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StatePlaying State = "playing"
	StatePaused  State = "paused"
	StateError   State = "error"
)

// Session is a snapshot of the playback session.
type Session struct {
	Source      string         `json:"source"`
	Autoplay    bool           `json:"autoplay"`
	State       State          `json:"state"`
	Loading     bool           `json:"loading"`
	Error       *PlaybackError `json:"error,omitempty"`
	Volume      float64        `json:"volume"`
	Muted       bool           `json:"muted"`
	CurrentTime float64        `json:"current_time"`
	Duration    float64        `json:"duration"`
	Fullscreen  bool           `json:"fullscreen"`
	Native      bool           `json:"native"`
	EngineID    string         `json:"engine_id,omitempty"`
	Reloads     int            `json:"reloads"`
	Recoveries  int            `json:"recoveries"`
}

// Recorder counts player lifecycle events.
type Recorder interface {
	PlayerEvent(name string)
}

type Options struct {
	Factory EngineFactory
	Logger  zerolog.Logger
	Metrics Recorder
}

type Player struct {
	mu      sync.Mutex
	factory EngineFactory
	log     zerolog.Logger
	metrics Recorder

	media  Media
	engine Engine
	gen    uint64
	parsed bool
	// last non-zero volume, restored on unmute
	audible float64
	s       Session
}

func New(opts Options) *Player {
	return &Player{
		factory: opts.Factory,
		log:     opts.Logger,
		metrics: opts.Metrics,
		audible: 1,
		s:       Session{State: StateIdle, Volume: 1},
	}
}

// Mount attaches the media element. A source assigned before mounting starts
// loading now.
func (p *Player) Mount(m Media) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.media = m
	if p.s.Source != "" {
		p.destroyEngine()
		p.gen++
		p.parsed = false
		p.load()
	}
}

// Unmount tears down the engine and detaches the media element.
func (p *Player) Unmount() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.destroyEngine()
	p.gen++
	p.media = nil
	p.parsed = false
}

// SetSource assigns a new source. The previous engine is destroyed before a
// new one is created.
func (p *Player) SetSource(url string, autoplay bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.destroyEngine()
	p.gen++
	p.parsed = false
	p.s.Source = url
	p.s.Autoplay = autoplay
	p.s.Native = false
	p.s.Error = nil
	p.s.Loading = false
	p.s.CurrentTime = 0
	p.s.Duration = 0
	if url == "" {
		p.s.State = StateIdle
		return
	}
	if p.media == nil {
		p.s.State = StateIdle
		return
	}
	p.load()
}

func (p *Player) load() {
	url := p.s.Source
	p.s.State = StateLoading
	p.s.Loading = true
	p.s.Error = nil
	p.log.Debug().Str("source", url).Msg("player loading source")

	switch {
	case p.factory != nil && p.factory.Supported():
		gen := p.gen
		p.engine = p.factory.New(func(ev EngineEvent) { p.handleEngineEvent(gen, ev) })
		p.s.EngineID = uuid.NewString()
		p.engine.LoadSource(url)
		p.engine.AttachMedia(p.media)
		p.observe("engine_created")
	case p.media.CanPlayType(MimeType):
		p.s.Native = true
		p.media.SetSrc(url)
		p.log.Debug().Msg("player using native playback")
	default:
		p.s.Loading = false
		p.s.State = StateError
		p.s.Error = &PlaybackError{Category: CategoryUnsupported, Message: MsgUnsupported, Fatal: true}
		p.log.Error().Msg("playback not supported")
		p.observe("unsupported")
	}
}

func (p *Player) destroyEngine() {
	if p.engine == nil {
		return
	}
	p.log.Debug().Str("engine_id", p.s.EngineID).Msg("destroying engine")
	p.engine.Destroy()
	p.engine = nil
	p.s.EngineID = ""
	p.observe("engine_destroyed")
}

func (p *Player) handleEngineEvent(gen uint64, ev EngineEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen || p.engine == nil {
		return
	}
	switch ev.Kind {
	case EventManifestParsed:
		p.log.Debug().Str("engine_id", p.s.EngineID).Msg("manifest parsed")
		p.observe("manifest_parsed")
		p.ready()
	case EventFragmentLoaded:
		p.observe("fragment_loaded")
		p.s.Error = nil
		if p.s.State == StateLoading && p.parsed {
			p.s.Loading = false
			p.s.State = p.playState()
		}
	case EventError:
		p.engineError(ev.Error)
	}
}

// ready leaves the loading state once the manifest (or native metadata) is in.
// Autoplay rejection is logged and leaves the session paused.
func (p *Player) ready() {
	p.parsed = true
	p.s.Loading = false
	if p.s.State == StateError {
		p.s.Error = nil
	}
	p.s.State = StatePaused
	if !p.s.Autoplay || p.media == nil {
		return
	}
	if err := p.media.Play(); err != nil {
		p.log.Warn().Err(err).Msg("autoplay failed")
		p.observe("autoplay_rejected")
		return
	}
	p.s.State = StatePlaying
}

func (p *Player) engineError(e *EngineError) {
	if e == nil {
		e = &EngineError{Type: ErrorTypeOther}
	}
	pe := Classify(e)
	p.s.Error = &pe
	p.observe("error_" + string(pe.Category))

	if !e.Fatal {
		p.log.Warn().Str("type", string(e.Type)).Str("details", e.Details).Msg("non-fatal playback error")
		return
	}
	defer func() { p.s.Loading = p.s.State == StateLoading }()
	p.log.Error().Str("type", string(e.Type)).Str("details", e.Details).Str("reason", e.Reason).Msg("fatal playback error")

	switch e.Type {
	case ErrorTypeNetwork:
		if e.Details == DetailManifestLoadError {
			p.s.State = StateError
			return
		}
		p.s.Reloads++
		p.s.State = StateLoading
		p.observe("reload")
		p.engine.StartLoad()
	case ErrorTypeMedia:
		p.s.Recoveries++
		p.s.State = StateLoading
		p.observe("recover")
		p.engine.RecoverMediaError()
	default:
		p.destroyEngine()
		p.s.State = StateError
	}
}

// HandleMediaEvent applies a native media element event.
func (p *Player) HandleMediaEvent(ev MediaEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.media == nil {
		return
	}
	switch ev.Kind {
	case MediaMetadataLoaded:
		p.s.Duration = finite(p.media.Duration())
		if p.s.Native {
			p.ready()
		}
	case MediaError:
		if !p.s.Native {
			return
		}
		p.s.Loading = false
		p.s.State = StateError
		p.s.Error = &PlaybackError{Category: CategoryMedia, Message: MsgNative, Fatal: true}
		p.log.Error().Str("source", p.s.Source).Msg("native playback error")
		p.observe("error_media")
	case MediaTimeUpdate:
		p.s.CurrentTime = finite(p.media.CurrentTime())
	case MediaDurationChange:
		p.s.Duration = finite(p.media.Duration())
	case MediaPlayStateChange:
		if p.s.State == StatePlaying || p.s.State == StatePaused {
			p.s.State = p.playState()
		}
	case MediaFullscreenChange:
		p.s.Fullscreen = ev.Fullscreen
	}
}

// TogglePlay pauses a playing element or starts a paused one.
func (p *Player) TogglePlay() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.media == nil {
		return
	}
	if !p.media.Paused() {
		p.media.Pause()
		if p.s.State == StatePlaying {
			p.s.State = StatePaused
		}
		return
	}
	if err := p.media.Play(); err != nil {
		p.log.Warn().Err(err).Msg("play failed")
		return
	}
	if p.s.State == StatePaused {
		p.s.State = StatePlaying
	}
}

// SetVolume clamps v to [0,1]. Zero mutes.
func (p *Player) SetVolume(v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.media == nil {
		return
	}
	if math.IsNaN(v) || v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	p.media.SetVolume(v)
	p.s.Volume = v
	if v > 0 {
		p.audible = v
	}
	muted := v == 0
	if muted != p.s.Muted {
		p.media.SetMuted(muted)
	}
	p.s.Muted = muted
}

// ToggleMute mutes, or unmutes restoring the last audible volume.
func (p *Player) ToggleMute() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.media == nil {
		return
	}
	if !p.s.Muted {
		p.media.SetMuted(true)
		p.s.Muted = true
		return
	}
	restore := p.s.Volume
	if restore == 0 {
		restore = p.audible
	}
	p.media.SetMuted(false)
	p.media.SetVolume(restore)
	p.s.Volume = restore
	p.s.Muted = false
}

// Seek moves to fraction (0..1) of the total duration.
func (p *Player) Seek(fraction float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.media == nil {
		return
	}
	d := finite(p.media.Duration())
	if d <= 0 || math.IsNaN(fraction) {
		return
	}
	fraction = math.Max(0, math.Min(1, fraction))
	t := fraction * d
	p.media.SetCurrentTime(t)
	p.s.CurrentTime = t
}

func (p *Player) ToggleFullscreen() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.media == nil {
		return
	}
	if p.s.Fullscreen {
		if err := p.media.ExitFullscreen(); err != nil {
			p.log.Warn().Err(err).Msg("exit fullscreen failed")
			return
		}
		p.s.Fullscreen = false
		return
	}
	if err := p.media.RequestFullscreen(); err != nil {
		p.log.Warn().Err(err).Msg("fullscreen request failed")
		return
	}
	p.s.Fullscreen = true
}

// Snapshot returns a copy of the current session.
func (p *Player) Snapshot() Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.s
	if s.Error != nil {
		e := *s.Error
		s.Error = &e
	}
	return s
}

// Progress is the current position as a fraction of the duration.
func (s Session) Progress() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return s.CurrentTime / s.Duration
}

func (p *Player) playState() State {
	if p.media == nil || p.media.Paused() {
		return StatePaused
	}
	return StatePlaying
}

func (p *Player) observe(name string) {
	if p.metrics != nil {
		p.metrics.PlayerEvent(name)
	}
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
