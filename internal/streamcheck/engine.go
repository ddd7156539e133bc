package streamcheck

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/grafov/m3u8"
	"github.com/rs/zerolog"

	"backoffice/internal/mediaproxy"
	"backoffice/internal/player"
)

const (
	// MPEG-TS packets start with this sync byte.
	tsSyncByte = 0x47
	maxBody    = 32 << 20
)

type action int

const (
	actLoad action = iota
	actRecover
)

type segment struct {
	uri      string
	duration float64
}

// engine is a headless player.Engine. Methods only queue work; step runs it
// and emits events from the caller's loop.
type engine struct {
	ctx      context.Context
	client   *http.Client
	ua       string
	log      zerolog.Logger
	emit     func(player.EngineEvent)
	maxFrags int
	budget   int

	source    string
	media     player.Media
	queue     []action
	destroyed bool
	attempts  int

	playlist string
	variant  string
	segments []segment
	duration float64
	next     int
	loaded   int
	cause    *player.EngineError
}

func (e *engine) LoadSource(url string) {
	e.source = url
}

func (e *engine) AttachMedia(m player.Media) {
	e.media = m
	e.queue = append(e.queue, actLoad)
}

func (e *engine) StartLoad() {
	e.queue = append(e.queue, actLoad)
}

func (e *engine) RecoverMediaError() {
	e.queue = append(e.queue, actRecover)
}

func (e *engine) Destroy() {
	e.destroyed = true
	e.queue = nil
}

func (e *engine) pending() bool {
	return !e.destroyed && len(e.queue) > 0
}

// step runs one queued action. It reports false when there was nothing to do.
func (e *engine) step() bool {
	if !e.pending() {
		return false
	}
	act := e.queue[0]
	e.queue = e.queue[1:]
	e.attempts++
	if act == actLoad && e.segments == nil {
		if !e.loadManifest() {
			return true
		}
		e.emit(player.EngineEvent{Kind: player.EventManifestParsed})
		if e.destroyed {
			return true
		}
	}
	e.loadFragments()
	return true
}

func (e *engine) loadManifest() bool {
	body, err := e.fetch(e.source)
	if err != nil {
		e.fail(player.ErrorTypeNetwork, player.DetailManifestLoadError, err)
		return false
	}
	pl, listType, err := m3u8.DecodeFrom(strings.NewReader(string(body)), false)
	if err != nil {
		e.fail(player.ErrorTypeNetwork, player.DetailManifestParsingError, err)
		return false
	}
	mediaURL := e.source
	if listType == m3u8.MASTER {
		e.playlist = "master"
		master, _ := pl.(*m3u8.MasterPlaylist)
		if master == nil || len(master.Variants) == 0 || master.Variants[0] == nil {
			e.fail(player.ErrorTypeNetwork, player.DetailManifestParsingError, fmt.Errorf("master playlist has no variants"))
			return false
		}
		mediaURL = mediaproxy.ResolveReference(e.source, master.Variants[0].URI)
		e.variant = mediaURL
		body, err = e.fetch(mediaURL)
		if err != nil {
			e.fail(player.ErrorTypeNetwork, player.DetailLevelLoadError, err)
			return false
		}
		pl, listType, err = m3u8.DecodeFrom(strings.NewReader(string(body)), false)
		if err != nil {
			e.fail(player.ErrorTypeNetwork, player.DetailManifestParsingError, err)
			return false
		}
	} else {
		e.playlist = "media"
	}
	media, _ := pl.(*m3u8.MediaPlaylist)
	if listType != m3u8.MEDIA || media == nil {
		e.fail(player.ErrorTypeNetwork, player.DetailManifestParsingError, fmt.Errorf("no media playlist at %s", mediaURL))
		return false
	}
	var segs []segment
	var total float64
	for _, s := range media.Segments {
		if s == nil {
			break
		}
		segs = append(segs, segment{uri: mediaproxy.ResolveReference(mediaURL, s.URI), duration: s.Duration})
		total += s.Duration
	}
	if len(segs) == 0 {
		e.fail(player.ErrorTypeNetwork, player.DetailManifestParsingError, fmt.Errorf("media playlist has no segments"))
		return false
	}
	e.segments = segs
	e.duration = total
	if hm, ok := e.media.(*headlessMedia); ok {
		hm.setDuration(total)
	}
	e.log.Debug().Str("playlist", e.playlist).Int("segments", len(segs)).Float64("duration", total).Msg("stream manifest parsed")
	return true
}

func (e *engine) loadFragments() {
	for e.loaded < e.maxFrags && e.next < len(e.segments) && !e.destroyed {
		seg := e.segments[e.next]
		body, err := e.fetch(seg.uri)
		if err != nil {
			e.fail(player.ErrorTypeNetwork, player.DetailFragLoadError, err)
			return
		}
		if strings.EqualFold(path.Ext(stripQuery(seg.uri)), ".ts") && (len(body) == 0 || body[0] != tsSyncByte) {
			e.fail(player.ErrorTypeMedia, player.DetailFragParsingError, fmt.Errorf("%s is not an MPEG-TS segment", seg.uri))
			return
		}
		e.next++
		e.loaded++
		if hm, ok := e.media.(*headlessMedia); ok {
			hm.advance(seg.duration)
		}
		e.emit(player.EngineEvent{Kind: player.EventFragmentLoaded})
	}
}

// fail emits a fatal error. Once the retry budget is spent, recoverable errors
// are escalated so the player gives up instead of retrying again.
func (e *engine) fail(t player.ErrorType, details string, cause error) {
	ee := &player.EngineError{Type: t, Details: details, Fatal: true, Reason: cause.Error()}
	e.cause = ee
	recoverable := !(t == player.ErrorTypeNetwork && details == player.DetailManifestLoadError)
	if recoverable && e.attempts >= e.budget {
		ee = &player.EngineError{
			Type:    player.ErrorTypeOther,
			Details: details,
			Fatal:   true,
			Reason:  fmt.Sprintf("giving up after %d attempts: %s", e.attempts, cause),
		}
	}
	e.log.Debug().Str("type", string(ee.Type)).Str("details", details).Err(cause).Msg("stream check error")
	e.emit(player.EngineEvent{Kind: player.EventError, Error: ee})
}

func (e *engine) fetch(url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(e.ctx, 20*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if e.ua != "" {
		req.Header.Set("User-Agent", e.ua)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBody))
}

func stripQuery(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		return u[:i]
	}
	return u
}
