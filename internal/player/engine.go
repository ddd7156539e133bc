package player

// MimeType is what a media element is asked about before falling back to
// native playback.
const MimeType = "application/vnd.apple.mpegurl"

// ErrorType mirrors the adaptive engine's error type strings.
type ErrorType string

const (
	ErrorTypeNetwork   ErrorType = "networkError"
	ErrorTypeMedia     ErrorType = "mediaError"
	ErrorTypeKeySystem ErrorType = "keySystemError"
	ErrorTypeMux       ErrorType = "muxError"
	ErrorTypeOther     ErrorType = "otherError"
)

// Error details the player distinguishes. Engines may report others.
const (
	DetailManifestLoadError    = "manifestLoadError"
	DetailManifestLoadTimeOut  = "manifestLoadTimeOut"
	DetailManifestParsingError = "manifestParsingError"
	DetailLevelLoadError       = "levelLoadError"
	DetailFragLoadError        = "fragLoadError"
	DetailFragLoadTimeOut      = "fragLoadTimeOut"
	DetailFragParsingError     = "fragParsingError"
	DetailBufferStalledError   = "bufferStalledError"
	DetailInternalException    = "internalException"
)

type EngineError struct {
	Type    ErrorType
	Details string
	Fatal   bool
	Reason  string
}

func (e *EngineError) Error() string {
	if e.Reason != "" {
		return string(e.Type) + "/" + e.Details + ": " + e.Reason
	}
	return string(e.Type) + "/" + e.Details
}

type EventKind string

const (
	EventManifestParsed EventKind = "manifest_parsed"
	EventError          EventKind = "error"
	EventFragmentLoaded EventKind = "fragment_loaded"
)

type EngineEvent struct {
	Kind  EventKind
	Error *EngineError
}

// Engine is an adaptive streaming engine bound to one source. Methods are
// called with the player's lock held, so implementations must deliver events
// asynchronously (from their own loop or goroutine), never from inside a method.
type Engine interface {
	LoadSource(url string)
	AttachMedia(m Media)
	StartLoad()
	RecoverMediaError()
	Destroy()
}

// EngineFactory builds a fresh engine per source. emit delivers that engine's
// events back to the player; events from a replaced engine are dropped.
type EngineFactory interface {
	Supported() bool
	New(emit func(EngineEvent)) Engine
}

// Media is the element the player renders into.
type Media interface {
	Play() error
	Pause()
	Paused() bool
	SetVolume(v float64)
	SetMuted(muted bool)
	SetCurrentTime(t float64)
	CurrentTime() float64
	Duration() float64
	CanPlayType(mime string) bool
	SetSrc(url string)
	RequestFullscreen() error
	ExitFullscreen() error
}

type MediaEventKind string

const (
	MediaMetadataLoaded   MediaEventKind = "loadedmetadata"
	MediaError            MediaEventKind = "error"
	MediaTimeUpdate       MediaEventKind = "timeupdate"
	MediaDurationChange   MediaEventKind = "durationchange"
	MediaPlayStateChange  MediaEventKind = "playstate"
	MediaFullscreenChange MediaEventKind = "fullscreenchange"
)

// MediaEvent is a native element event. Fullscreen is only meaningful for
// MediaFullscreenChange.
type MediaEvent struct {
	Kind       MediaEventKind
	Fullscreen bool
}
