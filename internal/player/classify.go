package player

import (
	"fmt"
	"math"
)

type Category string

const (
	CategoryNetwork     Category = "network"
	CategoryMedia       Category = "media"
	CategoryUnsupported Category = "unsupported"
	CategoryUnknown     Category = "unknown"
)

const (
	MsgManifestLoad = "Failed to load video manifest. This might be a CORS issue."
	MsgFragLoad     = "Failed to load video fragment. Check network connectivity."
	MsgNetwork      = "Network error occurred while loading video"
	MsgMedia        = "Media decoding error occurred"
	MsgGeneric      = "An error occurred while loading the video"
	MsgNative       = "Failed to load video. This might be a CORS issue or unsupported format."
	MsgUnsupported  = "HLS playback is not supported in this browser"
)

// PlaybackError is what the player surfaces to the viewer.
type PlaybackError struct {
	Category Category `json:"category"`
	Message  string   `json:"message"`
	Fatal    bool     `json:"fatal"`
}

// Classify maps an engine error onto a category and a viewer message.
func Classify(e *EngineError) PlaybackError {
	if e == nil {
		return PlaybackError{Category: CategoryUnknown, Message: MsgGeneric}
	}
	out := PlaybackError{Category: CategoryUnknown, Message: MsgGeneric, Fatal: e.Fatal}
	switch e.Type {
	case ErrorTypeNetwork:
		out.Category = CategoryNetwork
		switch e.Details {
		case DetailManifestLoadError:
			out.Message = MsgManifestLoad
		case DetailFragLoadError:
			out.Message = MsgFragLoad
		default:
			out.Message = MsgNetwork
		}
	case ErrorTypeMedia:
		out.Category = CategoryMedia
		out.Message = MsgMedia
	}
	return out
}

// FormatTime renders seconds as m:ss.
func FormatTime(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
