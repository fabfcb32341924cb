// README: Navigation update pipeline. Turns location fixes into navigator
// steps, voice instructions and track points.
package navigation

import (
	"log"
	"time"

	"compass/internal/engine"
	"compass/internal/geo"
	"compass/internal/modules/session"
	"compass/internal/types"
)

const locationErrorNotice = "could not get your location"

// Enqueuer accepts voice instructions without blocking.
type Enqueuer interface {
	Enqueue(u Utterance) bool
}

// TrackAppender stores a recorded track point.
type TrackAppender interface {
	Append(sessionID string, p types.Point, at time.Time) bool
}

// Pipeline handles location updates for one session. Its methods run on the
// session loop.
type Pipeline struct {
	sessionID string
	state     *session.State
	nav       engine.Navigator
	speech    Enqueuer
	notify    *session.Notifier
	track     TrackAppender
}

func NewPipeline(sessionID string, state *session.State, nav engine.Navigator, speech Enqueuer, notify *session.Notifier, track TrackAppender) *Pipeline {
	return &Pipeline{
		sessionID: sessionID,
		state:     state,
		nav:       nav,
		speech:    speech,
		notify:    notify,
		track:     track,
	}
}

// OnLocationFix processes a batch of fixes from the provider. Only the most
// recent one is used; an empty batch is ignored. It returns the voice
// instruction produced, if any.
func (p *Pipeline) OnLocationFix(locations []Location) string {
	if len(locations) == 0 {
		return ""
	}
	loc := locations[len(locations)-1]
	nd := BuildFix(loc)

	p.state.LastFixAt = nd.Time
	if nd.Validity.Has(engine.ValidPosition) {
		pos := types.Degrees(nd.Latitude, nd.Longitude)
		p.state.LastPosition = pos
		if p.state.Tracking {
			p.appendTrack(pos, nd.Time)
		}
	}

	voice := p.nav.Navigate(&nd)
	if voice != "" && p.speech != nil {
		p.speech.Enqueue(Utterance{SessionID: p.sessionID, Text: voice, PostDelay: PostUtteranceDelay})
	}
	return voice
}

// OnLocationError reports a provider failure without touching state.
func (p *Pipeline) OnLocationError(err error) {
	log.Printf("navigation: session %s location error: %v", p.sessionID, err)
	p.notify.Notice(locationErrorNotice)
}

func (p *Pipeline) appendTrack(pos types.Point, at time.Time) {
	if !p.state.LastTrackPoint.IsZero() {
		p.state.TrackLengthM += geo.DistanceM(p.state.LastTrackPoint, pos)
	}
	p.state.LastTrackPoint = pos
	if p.track != nil {
		p.track.Append(p.sessionID, pos, at)
	}
}

// ResetTrack forgets the recorded track length.
func (p *Pipeline) ResetTrack() {
	p.state.TrackLengthM = 0
	p.state.LastTrackPoint = types.Point{}
}
