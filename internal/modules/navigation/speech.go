// README: Speech output. Utterances are queued per session and spoken one
// after another by a Speaker.
package navigation

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"firebase.google.com/go/v4/messaging"

	"compass/internal/modules/session"
)

// PostUtteranceDelay is the pause after each voice instruction.
const PostUtteranceDelay = 500 * time.Millisecond

// Utterance is one voice instruction.
type Utterance struct {
	SessionID string
	Text      string
	PostDelay time.Duration
}

// Speaker delivers an utterance to the device.
type Speaker interface {
	Speak(ctx context.Context, u Utterance) error
}

// SpeechQueue speaks utterances in order. Enqueue never blocks.
type SpeechQueue struct {
	ch      chan Utterance
	speaker Speaker
}

func NewSpeechQueue(speaker Speaker, size int) *SpeechQueue {
	if size <= 0 {
		size = 16
	}
	return &SpeechQueue{ch: make(chan Utterance, size), speaker: speaker}
}

// Enqueue adds u to the queue. It reports false and drops u when the queue
// is full.
func (q *SpeechQueue) Enqueue(u Utterance) bool {
	select {
	case q.ch <- u:
		return true
	default:
		log.Printf("navigation: speech queue full, dropped %q for session %s", u.Text, u.SessionID)
		return false
	}
}

// Run speaks queued utterances until ctx is cancelled.
func (q *SpeechQueue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-q.ch:
			if err := q.speaker.Speak(ctx, u); err != nil {
				log.Printf("navigation: speak failed for session %s: %v", u.SessionID, err)
			}
			if u.PostDelay > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(u.PostDelay):
				}
			}
		}
	}
}

// SinkSpeaker sends utterances over the session event stream.
type SinkSpeaker struct {
	Sink session.Sink
}

type speakPayload struct {
	Text        string `json:"text"`
	PostDelayMs int64  `json:"post_delay_ms"`
}

func (s SinkSpeaker) Speak(_ context.Context, u Utterance) error {
	if s.Sink == nil {
		return nil
	}
	s.Sink.Publish(u.SessionID, session.Event{
		Type:      session.EventSpeak,
		Payload:   speakPayload{Text: u.Text, PostDelayMs: u.PostDelay.Milliseconds()},
		Timestamp: time.Now(),
	})
	return nil
}

// MessageSender is the part of the FCM client used for speech.
type MessageSender interface {
	Send(ctx context.Context, msg *messaging.Message) (string, error)
}

// FCMSpeaker pushes utterances as FCM data messages so a backgrounded app
// still speaks. Sessions without a device token are skipped.
type FCMSpeaker struct {
	client MessageSender
	token  func(sessionID string) string
}

func NewFCMSpeaker(client MessageSender, token func(sessionID string) string) *FCMSpeaker {
	return &FCMSpeaker{client: client, token: token}
}

func (s *FCMSpeaker) Speak(ctx context.Context, u Utterance) error {
	token := s.token(u.SessionID)
	if token == "" {
		return nil
	}
	msg := &messaging.Message{
		Token: token,
		Data: map[string]string{
			"type":          "speak",
			"session_id":    u.SessionID,
			"text":          u.Text,
			"post_delay_ms": strconv.FormatInt(u.PostDelay.Milliseconds(), 10),
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
	}
	if _, err := s.client.Send(ctx, msg); err != nil {
		return fmt.Errorf("sending FCM speech for session %s: %w", u.SessionID, err)
	}
	return nil
}

// MultiSpeaker speaks through every speaker and returns the first error.
type MultiSpeaker []Speaker

func (m MultiSpeaker) Speak(ctx context.Context, u Utterance) error {
	var first error
	for _, s := range m {
		if err := s.Speak(ctx, u); err != nil && first == nil {
			first = err
		}
	}
	return first
}
