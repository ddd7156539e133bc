package player

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeEngine struct {
	source     string
	media      Media
	emit       func(EngineEvent)
	startLoads int
	recovers   int
	destroyed  int
}

func (e *fakeEngine) LoadSource(url string)  { e.source = url }
func (e *fakeEngine) AttachMedia(m Media)    { e.media = m }
func (e *fakeEngine) StartLoad()             { e.startLoads++ }
func (e *fakeEngine) RecoverMediaError()     { e.recovers++ }
func (e *fakeEngine) Destroy()               { e.destroyed++ }
func (e *fakeEngine) send(ev EngineEvent)    { e.emit(ev) }
func (e *fakeEngine) fail(t ErrorType, d string, fatal bool) {
	e.emit(EngineEvent{Kind: EventError, Error: &EngineError{Type: t, Details: d, Fatal: fatal}})
}

type fakeFactory struct {
	supported bool
	engines   []*fakeEngine
}

func (f *fakeFactory) Supported() bool { return f.supported }

func (f *fakeFactory) New(emit func(EngineEvent)) Engine {
	e := &fakeEngine{emit: emit}
	f.engines = append(f.engines, e)
	return e
}

func (f *fakeFactory) last() *fakeEngine { return f.engines[len(f.engines)-1] }

func (f *fakeFactory) live() int {
	n := 0
	for _, e := range f.engines {
		if e.destroyed == 0 {
			n++
		}
	}
	return n
}

type fakeMedia struct {
	paused        bool
	volume        float64
	muted         bool
	current       float64
	duration      float64
	native        bool
	src           string
	playErr       error
	fullscreenErr error
}

func newFakeMedia() *fakeMedia { return &fakeMedia{paused: true, volume: 1, duration: 120} }

func (m *fakeMedia) Play() error {
	if m.playErr != nil {
		return m.playErr
	}
	m.paused = false
	return nil
}
func (m *fakeMedia) Pause()                       { m.paused = true }
func (m *fakeMedia) Paused() bool                 { return m.paused }
func (m *fakeMedia) SetVolume(v float64)          { m.volume = v }
func (m *fakeMedia) SetMuted(muted bool)          { m.muted = muted }
func (m *fakeMedia) SetCurrentTime(t float64)     { m.current = t }
func (m *fakeMedia) CurrentTime() float64         { return m.current }
func (m *fakeMedia) Duration() float64            { return m.duration }
func (m *fakeMedia) CanPlayType(mime string) bool { return m.native && mime == MimeType }
func (m *fakeMedia) SetSrc(url string)            { m.src = url }
func (m *fakeMedia) RequestFullscreen() error     { return m.fullscreenErr }
func (m *fakeMedia) ExitFullscreen() error        { return m.fullscreenErr }

func newMounted(supported bool) (*Player, *fakeFactory, *fakeMedia) {
	f := &fakeFactory{supported: supported}
	m := newFakeMedia()
	p := New(Options{Factory: f, Logger: zerolog.Nop()})
	p.Mount(m)
	return p, f, m
}

func TestEngineLifecycle(t *testing.T) {
	Convey("Given a mounted player with engine support", t, func() {
		p, f, m := newMounted(true)

		Convey("When no source is set", func() {
			Convey("Then it is idle and no engine exists", func() {
				So(p.Snapshot().State, ShouldEqual, StateIdle)
				So(f.engines, ShouldBeEmpty)
			})
		})

		Convey("When a source is assigned", func() {
			p.SetSource("https://h/a.m3u8", false)
			e := f.last()

			Convey("Then one engine loads it into the media element", func() {
				s := p.Snapshot()
				So(s.State, ShouldEqual, StateLoading)
				So(s.Loading, ShouldBeTrue)
				So(s.EngineID, ShouldNotBeEmpty)
				So(e.source, ShouldEqual, "https://h/a.m3u8")
				So(e.media == Media(m), ShouldBeTrue)
			})

			Convey("And the source changes twice", func() {
				firstID := p.Snapshot().EngineID
				p.SetSource("https://h/b.m3u8", false)
				p.SetSource("https://h/c.m3u8", false)

				Convey("Then each old engine is destroyed exactly once and one stays live", func() {
					So(len(f.engines), ShouldEqual, 3)
					So(f.engines[0].destroyed, ShouldEqual, 1)
					So(f.engines[1].destroyed, ShouldEqual, 1)
					So(f.engines[2].destroyed, ShouldEqual, 0)
					So(f.live(), ShouldEqual, 1)
					So(p.Snapshot().EngineID, ShouldNotEqual, firstID)
				})

				Convey("Then events from a replaced engine are ignored", func() {
					f.engines[0].send(EngineEvent{Kind: EventManifestParsed})
					So(p.Snapshot().State, ShouldEqual, StateLoading)
				})
			})

			Convey("And a new media element is mounted", func() {
				p.Mount(newFakeMedia())

				Convey("Then the previous engine is destroyed and exactly one stays live", func() {
					So(len(f.engines), ShouldEqual, 2)
					So(f.engines[0].destroyed, ShouldEqual, 1)
					So(f.live(), ShouldEqual, 1)
					So(p.Snapshot().EngineID, ShouldNotBeEmpty)
				})

				Convey("Then a fatal error from the replaced engine is ignored", func() {
					f.engines[0].fail(ErrorTypeOther, DetailInternalException, true)
					s := p.Snapshot()
					So(s.State, ShouldEqual, StateLoading)
					So(s.Error, ShouldBeNil)
					So(s.EngineID, ShouldNotBeEmpty)
					So(f.engines[1].destroyed, ShouldEqual, 0)
				})
			})

			Convey("And a non-fatal error arrives before the manifest", func() {
				e.fail(ErrorTypeNetwork, DetailFragLoadError, false)

				Convey("Then the session is still loading", func() {
					s := p.Snapshot()
					So(s.State, ShouldEqual, StateLoading)
					So(s.Loading, ShouldBeTrue)
					So(s.Error.Fatal, ShouldBeFalse)
				})
			})

			Convey("And the player unmounts", func() {
				p.Unmount()
				Convey("Then the engine is destroyed", func() {
					So(e.destroyed, ShouldEqual, 1)
					So(f.live(), ShouldEqual, 0)
				})
			})

			Convey("And the source is cleared", func() {
				p.SetSource("", false)
				Convey("Then the player is idle with no live engine", func() {
					So(p.Snapshot().State, ShouldEqual, StateIdle)
					So(f.live(), ShouldEqual, 0)
				})
			})
		})
	})
}

func TestManifestParsed(t *testing.T) {
	Convey("Given a loading source", t, func() {
		p, f, m := newMounted(true)

		Convey("When the manifest is parsed without autoplay", func() {
			p.SetSource("https://h/a.m3u8", false)
			f.last().send(EngineEvent{Kind: EventManifestParsed})
			Convey("Then loading ends paused", func() {
				s := p.Snapshot()
				So(s.Loading, ShouldBeFalse)
				So(s.State, ShouldEqual, StatePaused)
				So(m.paused, ShouldBeTrue)
			})
		})

		Convey("When the manifest is parsed with autoplay", func() {
			p.SetSource("https://h/a.m3u8", true)
			f.last().send(EngineEvent{Kind: EventManifestParsed})
			Convey("Then playback starts", func() {
				So(p.Snapshot().State, ShouldEqual, StatePlaying)
				So(m.paused, ShouldBeFalse)
			})
		})

		Convey("When autoplay is rejected", func() {
			m.playErr = errors.New("NotAllowedError")
			p.SetSource("https://h/a.m3u8", true)
			f.last().send(EngineEvent{Kind: EventManifestParsed})
			Convey("Then the rejection is swallowed", func() {
				s := p.Snapshot()
				So(s.State, ShouldEqual, StatePaused)
				So(s.Error, ShouldBeNil)
			})
		})
	})
}

func TestEngineErrors(t *testing.T) {
	Convey("Given a parsed source", t, func() {
		p, f, _ := newMounted(true)
		p.SetSource("https://h/a.m3u8", true)
		e := f.last()
		e.send(EngineEvent{Kind: EventManifestParsed})

		Convey("When a fatal manifest load error occurs", func() {
			e.fail(ErrorTypeNetwork, DetailManifestLoadError, true)
			Convey("Then no reload is attempted and the state is terminal", func() {
				s := p.Snapshot()
				So(e.startLoads, ShouldEqual, 0)
				So(s.Reloads, ShouldEqual, 0)
				So(s.State, ShouldEqual, StateError)
				So(s.Error.Category, ShouldEqual, CategoryNetwork)
				So(s.Error.Message, ShouldEqual, MsgManifestLoad)
			})
		})

		Convey("When a fatal fragment load error occurs", func() {
			e.fail(ErrorTypeNetwork, DetailFragLoadError, true)
			Convey("Then exactly one reload is attempted", func() {
				So(e.startLoads, ShouldEqual, 1)
				So(p.Snapshot().Reloads, ShouldEqual, 1)
				So(p.Snapshot().Error.Message, ShouldEqual, MsgFragLoad)
				So(p.Snapshot().Loading, ShouldBeTrue)
			})

			Convey("And a fragment then loads", func() {
				e.send(EngineEvent{Kind: EventFragmentLoaded})
				Convey("Then the error indication clears and playback resumes", func() {
					s := p.Snapshot()
					So(s.Error, ShouldBeNil)
					So(s.State, ShouldEqual, StatePlaying)
					So(s.Loading, ShouldBeFalse)
				})
			})
		})

		Convey("When a fatal generic network error occurs", func() {
			e.fail(ErrorTypeNetwork, DetailLevelLoadError, true)
			Convey("Then one reload is attempted", func() {
				So(e.startLoads, ShouldEqual, 1)
				So(p.Snapshot().Error.Message, ShouldEqual, MsgNetwork)
			})
		})

		Convey("When a fatal media error occurs", func() {
			e.fail(ErrorTypeMedia, DetailBufferStalledError, true)
			Convey("Then the decoder is recovered", func() {
				So(e.recovers, ShouldEqual, 1)
				So(e.destroyed, ShouldEqual, 0)
				So(p.Snapshot().Error.Category, ShouldEqual, CategoryMedia)
				So(p.Snapshot().Error.Message, ShouldEqual, MsgMedia)
			})
		})

		Convey("When any other fatal error occurs", func() {
			e.fail(ErrorTypeOther, DetailInternalException, true)
			Convey("Then the engine is torn down and the error is terminal", func() {
				s := p.Snapshot()
				So(e.destroyed, ShouldEqual, 1)
				So(s.State, ShouldEqual, StateError)
				So(s.EngineID, ShouldBeEmpty)
				So(s.Error.Category, ShouldEqual, CategoryUnknown)
			})

			Convey("And a new source is assigned", func() {
				p.SetSource("https://h/b.m3u8", false)
				Convey("Then the dead engine is not destroyed again", func() {
					So(e.destroyed, ShouldEqual, 1)
					So(p.Snapshot().State, ShouldEqual, StateLoading)
				})
			})
		})

		Convey("When a non-fatal error occurs", func() {
			e.fail(ErrorTypeNetwork, DetailFragLoadError, false)
			Convey("Then the message is shown but the state is unchanged", func() {
				s := p.Snapshot()
				So(s.State, ShouldEqual, StatePlaying)
				So(s.Error.Fatal, ShouldBeFalse)
				So(e.startLoads, ShouldEqual, 0)
			})

			Convey("And a fragment loads", func() {
				e.send(EngineEvent{Kind: EventFragmentLoaded})
				So(p.Snapshot().Error, ShouldBeNil)
			})
		})
	})
}

func TestNativeAndUnsupported(t *testing.T) {
	Convey("Given an environment without engine support", t, func() {
		p, f, m := newMounted(false)

		Convey("When the element plays HLS natively", func() {
			m.native = true
			p.SetSource("https://h/a.m3u8", true)

			Convey("Then the source is assigned to the element", func() {
				So(m.src, ShouldEqual, "https://h/a.m3u8")
				So(f.engines, ShouldBeEmpty)
				So(p.Snapshot().Native, ShouldBeTrue)
			})

			Convey("And metadata loads", func() {
				p.HandleMediaEvent(MediaEvent{Kind: MediaMetadataLoaded})
				s := p.Snapshot()
				So(s.State, ShouldEqual, StatePlaying)
				So(s.Duration, ShouldEqual, 120)
			})

			Convey("And the element errors", func() {
				p.HandleMediaEvent(MediaEvent{Kind: MediaError})
				s := p.Snapshot()
				So(s.State, ShouldEqual, StateError)
				So(s.Error.Message, ShouldEqual, MsgNative)
			})
		})

		Convey("When nothing can play HLS", func() {
			p.SetSource("https://h/a.m3u8", false)
			Convey("Then the unsupported error is raised", func() {
				s := p.Snapshot()
				So(s.State, ShouldEqual, StateError)
				So(s.Loading, ShouldBeFalse)
				So(s.Error.Category, ShouldEqual, CategoryUnsupported)
				So(s.Error.Message, ShouldEqual, MsgUnsupported)
			})
		})
	})
}

func TestTransport(t *testing.T) {
	Convey("Given a player without a media element", t, func() {
		p := New(Options{Factory: &fakeFactory{supported: true}, Logger: zerolog.Nop()})

		Convey("Then transport operations are no-ops", func() {
			p.TogglePlay()
			p.SetVolume(0.3)
			p.ToggleMute()
			p.Seek(0.5)
			p.ToggleFullscreen()
			s := p.Snapshot()
			So(s.Volume, ShouldEqual, 1)
			So(s.Muted, ShouldBeFalse)
			So(s.Fullscreen, ShouldBeFalse)
			So(s.CurrentTime, ShouldEqual, 0)
		})

		Convey("And a source assigned before mount loads on mount", func() {
			f := &fakeFactory{supported: true}
			p := New(Options{Factory: f, Logger: zerolog.Nop()})
			p.SetSource("https://h/a.m3u8", false)
			So(f.engines, ShouldBeEmpty)
			p.Mount(newFakeMedia())
			So(len(f.engines), ShouldEqual, 1)
		})
	})

	Convey("Given a mounted, playing player", t, func() {
		p, f, m := newMounted(true)
		p.SetSource("https://h/a.m3u8", true)
		f.last().send(EngineEvent{Kind: EventManifestParsed})

		Convey("TogglePlay pauses and resumes", func() {
			p.TogglePlay()
			So(m.paused, ShouldBeTrue)
			So(p.Snapshot().State, ShouldEqual, StatePaused)
			p.TogglePlay()
			So(m.paused, ShouldBeFalse)
			So(p.Snapshot().State, ShouldEqual, StatePlaying)
		})

		Convey("SetVolume clamps and zero mutes", func() {
			p.SetVolume(1.7)
			So(m.volume, ShouldEqual, 1)
			p.SetVolume(-2)
			So(m.volume, ShouldEqual, 0)
			So(p.Snapshot().Muted, ShouldBeTrue)
		})

		Convey("ToggleMute restores the prior volume", func() {
			p.SetVolume(0.4)
			p.ToggleMute()
			So(m.muted, ShouldBeTrue)
			So(p.Snapshot().Volume, ShouldEqual, 0.4)
			p.ToggleMute()
			So(m.muted, ShouldBeFalse)
			So(m.volume, ShouldEqual, 0.4)

			p.SetVolume(0)
			p.ToggleMute()
			So(p.Snapshot().Volume, ShouldEqual, 0.4)
			So(p.Snapshot().Muted, ShouldBeFalse)
		})

		Convey("Seek maps a fraction onto the duration", func() {
			p.Seek(0.25)
			So(m.current, ShouldEqual, 30)
			p.HandleMediaEvent(MediaEvent{Kind: MediaTimeUpdate})
			So(p.Snapshot().CurrentTime, ShouldEqual, 30)
		})

		Convey("ToggleFullscreen flips only on success", func() {
			p.ToggleFullscreen()
			So(p.Snapshot().Fullscreen, ShouldBeTrue)
			m.fullscreenErr = errors.New("denied")
			p.ToggleFullscreen()
			So(p.Snapshot().Fullscreen, ShouldBeTrue)
			p.HandleMediaEvent(MediaEvent{Kind: MediaFullscreenChange, Fullscreen: false})
			So(p.Snapshot().Fullscreen, ShouldBeFalse)
		})
	})
}

func TestFormatTime(t *testing.T) {
	Convey("FormatTime renders m:ss", t, func() {
		So(FormatTime(0), ShouldEqual, "0:00")
		So(FormatTime(65.9), ShouldEqual, "1:05")
		So(FormatTime(3600), ShouldEqual, "60:00")
		So(FormatTime(-1), ShouldEqual, "0:00")
	})
}
