package streamcheck

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"backoffice/internal/player"
)

const mediaPlaylist = "#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-TARGETDURATION:4\n" +
	"#EXTINF:4.0,\nseg0.ts\n#EXTINF:4.0,\nseg1.ts\n#EXTINF:4.0,\nseg2.ts\n#EXTINF:4.0,\nseg3.ts\n#EXT-X-ENDLIST\n"

func tsPayload() []byte {
	b := make([]byte, 188)
	b[0] = 0x47
	return b
}

func newChecker() *Checker {
	return New(Options{Logger: zerolog.Nop()})
}

func TestCheck_mediaPlaylistOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/live/index.m3u8":
			w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
			w.Write([]byte(mediaPlaylist))
		default:
			w.Header().Set("Content-Type", "video/mp2t")
			w.Write(tsPayload())
		}
	}))
	defer srv.Close()

	r, err := newChecker().Check(context.Background(), srv.URL+"/live/index.m3u8")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !r.OK || r.State != player.StatePlaying {
		t.Fatalf("report = %+v", r)
	}
	if r.Playlist != "media" {
		t.Errorf("Playlist = %q", r.Playlist)
	}
	if r.FragmentsLoaded != DefaultMaxFragments {
		t.Errorf("FragmentsLoaded = %d", r.FragmentsLoaded)
	}
	if r.Duration != 16 {
		t.Errorf("Duration = %v", r.Duration)
	}
	if r.Reloads != 0 || r.Recoveries != 0 {
		t.Errorf("reloads=%d recoveries=%d", r.Reloads, r.Recoveries)
	}
}

func TestCheck_masterResolvesFirstVariant(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/master.m3u8":
			w.Write([]byte("#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=800000\nlow/index.m3u8\n#EXT-X-STREAM-INF:BANDWIDTH=2400000\nhigh/index.m3u8\n"))
		case "/low/index.m3u8":
			w.Write([]byte(mediaPlaylist))
		case "/low/seg0.ts", "/low/seg1.ts", "/low/seg2.ts":
			w.Write(tsPayload())
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	r, err := newChecker().Check(context.Background(), srv.URL+"/master.m3u8")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !r.OK {
		t.Fatalf("report = %+v", r)
	}
	if r.Playlist != "master" || r.Variant != srv.URL+"/low/index.m3u8" {
		t.Errorf("playlist=%q variant=%q", r.Playlist, r.Variant)
	}
}

func TestCheck_manifestLoadFailureDoesNotReload(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	r, err := newChecker().Check(context.Background(), srv.URL+"/index.m3u8")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if r.State != player.StateError || r.OK {
		t.Fatalf("report = %+v", r)
	}
	if r.Reloads != 0 {
		t.Errorf("Reloads = %d", r.Reloads)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Errorf("manifest fetched %d times", hits)
	}
	if r.Category != player.CategoryNetwork || r.Message != player.MsgManifestLoad {
		t.Errorf("category=%q message=%q", r.Category, r.Message)
	}
	if r.Details != player.DetailManifestLoadError {
		t.Errorf("Details = %q", r.Details)
	}
}

func TestCheck_fragmentFailureReloadsOnce(t *testing.T) {
	var fragHits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/index.m3u8" {
			w.Write([]byte(mediaPlaylist))
			return
		}
		atomic.AddInt32(&fragHits, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	r, err := newChecker().Check(context.Background(), srv.URL+"/index.m3u8")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if r.State != player.StateError {
		t.Fatalf("State = %s", r.State)
	}
	if r.Reloads != 1 {
		t.Errorf("Reloads = %d, want 1", r.Reloads)
	}
	if atomic.LoadInt32(&fragHits) != 2 {
		t.Errorf("fragment fetched %d times, want 2", fragHits)
	}
	if r.Message != player.MsgFragLoad || r.Details != player.DetailFragLoadError {
		t.Errorf("message=%q details=%q", r.Message, r.Details)
	}
}

func TestCheck_badSegmentRecoversOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/index.m3u8" {
			w.Write([]byte(mediaPlaylist))
			return
		}
		w.Write([]byte("<html>not video</html>"))
	}))
	defer srv.Close()

	r, err := newChecker().Check(context.Background(), srv.URL+"/index.m3u8")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if r.State != player.StateError {
		t.Fatalf("State = %s", r.State)
	}
	if r.Recoveries != 1 || r.Reloads != 0 {
		t.Errorf("recoveries=%d reloads=%d", r.Recoveries, r.Reloads)
	}
	if r.Category != player.CategoryMedia {
		t.Errorf("Category = %q", r.Category)
	}
}

func TestCheck_canceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(mediaPlaylist))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := newChecker().Check(ctx, srv.URL+"/index.m3u8"); err == nil {
		t.Fatal("expected context error")
	}
}
