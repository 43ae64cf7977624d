package call

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/chadiek/shorecall/internal/audio"
	"github.com/chadiek/shorecall/internal/dialogue"
	"github.com/chadiek/shorecall/internal/events"
	"github.com/chadiek/shorecall/internal/outcome"
	"github.com/chadiek/shorecall/internal/session"
)

// ErrSessionNotFound means ProcessUtterance was called for an unknown or
// already finalized session id. This is a protocol violation by the caller;
// the webhook layer must play a safe terminal message and stop retrying.
var ErrSessionNotFound = errors.New("call: session not found")

// A live phone call must terminate no matter what the model thinks, so the
// dialogue has a hard ceiling on caller turns.
const maxTurns = 6

// CallRecord is the terminal record persisted once per session.
type CallRecord struct {
	Status          string
	Transcript      string
	Result          string
	DurationSeconds int
}

// RecordStore persists the terminal call record. Invoked exactly once at
// finalize; a failed write is logged and accepted as data loss rather than
// blocking the phone line.
type RecordStore interface {
	UpdateCallRecord(sessionID string, rec CallRecord) error
}

// Coordinator drives the call protocol: one session per phone call, one turn
// per inbound utterance, finalize exactly once.
type Coordinator struct {
	sessions   *session.Store
	classifier *outcome.Classifier
	generator  *dialogue.Generator
	audio      *audio.Cache
	bus        *events.Bus
	records    RecordStore
	log        *logrus.Logger
}

func NewCoordinator(
	sessions *session.Store,
	classifier *outcome.Classifier,
	generator *dialogue.Generator,
	cache *audio.Cache,
	bus *events.Bus,
	records RecordStore,
	log *logrus.Logger,
) *Coordinator {
	return &Coordinator{
		sessions:   sessions,
		classifier: classifier,
		generator:  generator,
		audio:      cache,
		bus:        bus,
		records:    records,
		log:        log,
	}
}

// TurnResult is what the telephony layer needs to speak one turn.
type TurnResult struct {
	Text     string
	AudioID  string
	Finished bool
	Outcome  session.Outcome
}

// StartSession registers a new call, synthesizes its greeting, and returns
// the session id, the greeting text, and its audio id.
func (c *Coordinator) StartSession(ctx context.Context, op session.Operation) (string, string, string) {
	id := uuid.NewString()
	sess := c.sessions.Create(id, op)

	greeting := greetingLine(op)
	audioID := "greeting-" + id
	c.audio.Synthesize(ctx, audioID, greeting)

	sess.Lock()
	sess.AppendLine(session.RoleAgent, greeting)
	sess.Unlock()

	c.bus.Publish(id, events.Event{Type: events.TypeStatus, Payload: map[string]any{"status": "connected"}})
	c.bus.Publish(id, events.Event{Type: events.TypeTranscript, Payload: map[string]any{"role": "agent", "text": greeting}})

	c.log.WithFields(logrus.Fields{"session_id": id, "operation": op.Name}).Info("call session started")
	return id, greeting, audioID
}

// ProcessUtterance runs one protocol turn for an inbound caller utterance.
func (c *Coordinator) ProcessUtterance(ctx context.Context, sessionID, text string) (TurnResult, error) {
	sess, ok := c.sessions.Get(sessionID)
	if !ok {
		return TurnResult{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	sess.Lock()
	defer sess.Unlock()

	// A terminal session is evicted by finalize; hitting one here means a
	// duplicate webhook raced the eviction.
	if sess.Outcome != session.OutcomeNone {
		return TurnResult{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	sess.TurnCount++
	sess.AppendLine(session.RoleCaller, text)
	c.bus.Publish(sessionID, events.Event{Type: events.TypeTranscript, Payload: map[string]any{"role": "caller", "text": text}})

	verdict := c.classifier.Classify(ctx, sess, text)

	var reply string
	finished := false
	switch {
	case verdict == session.OutcomeAccepted:
		sess.Outcome = session.OutcomeAccepted
		reply = closingAccepted(sess)
		finished = true
	case verdict == session.OutcomeDeclined:
		sess.Outcome = session.OutcomeDeclined
		reply = closingDeclined(sess)
		finished = true
	case sess.TurnCount >= maxTurns:
		if sess.Topics.Count() >= outcome.MinTopicsBeforeVerdict {
			sess.Outcome = session.OutcomeAccepted
		} else {
			sess.Outcome = session.OutcomeInconclusive
		}
		reply = closingForced(sess)
		finished = true
	default:
		reply = c.generator.NextUtterance(ctx, sess)
	}

	sess.AppendLine(session.RoleAgent, reply)
	c.bus.Publish(sessionID, events.Event{Type: events.TypeTranscript, Payload: map[string]any{"role": "agent", "text": reply}})

	audioID := fmt.Sprintf("turn-%s-%d", sessionID, sess.TurnCount)
	c.audio.Synthesize(ctx, audioID, reply)

	if finished {
		c.finalize(sess)
	}

	return TurnResult{Text: reply, AudioID: audioID, Finished: finished, Outcome: sess.Outcome}, nil
}

// AbortSession force-concludes a live call, e.g. when the telephony provider
// reports a disconnect. Safe to call for unknown or already finalized ids.
func (c *Coordinator) AbortSession(sessionID string) {
	sess, ok := c.sessions.Get(sessionID)
	if !ok {
		return
	}
	sess.Lock()
	defer sess.Unlock()
	if sess.Outcome != session.OutcomeNone {
		return
	}
	sess.Outcome = session.OutcomeInconclusive
	c.log.WithFields(logrus.Fields{"session_id": sessionID}).Info("call aborted before conclusion")
	c.finalize(sess)
}

// GreetingText returns the opening line for a live session, for the telephony
// layer's text fallback when greeting audio is unavailable.
func (c *Coordinator) GreetingText(sessionID string) (string, bool) {
	sess, ok := c.sessions.Get(sessionID)
	if !ok {
		return "", false
	}
	sess.Lock()
	defer sess.Unlock()
	if len(sess.Transcript) == 0 {
		return "", false
	}
	return sess.Transcript[0].Text, true
}

// finalize persists the terminal record, notifies subscribers, and evicts the
// session and all of its audio. Called exactly once, with the session lock
// held, from the single place the outcome becomes terminal or from an abort.
func (c *Coordinator) finalize(sess *session.Session) {
	summary := resultSummary(sess)
	rec := CallRecord{
		Status:          "completed",
		Transcript:      sess.TranscriptText(),
		Result:          summary,
		DurationSeconds: sess.DurationSeconds(),
	}
	if c.records != nil {
		if err := c.records.UpdateCallRecord(sess.ID, rec); err != nil {
			// Accepted data-loss tradeoff: never hold a live phone line
			// hostage to a slow store, and never leak the session.
			c.log.WithFields(logrus.Fields{"session_id": sess.ID, "error": err}).
				Error("failed to persist call record")
		}
	}

	c.bus.Publish(sess.ID, events.Event{Type: events.TypeCompleted, Payload: map[string]any{
		"outcome":    string(sess.Outcome),
		"result":     summary,
		"transcript": sess.TranscriptText(),
	}})

	c.sessions.Delete(sess.ID)
	c.audio.EvictSession(sess.ID)

	c.log.WithFields(logrus.Fields{
		"session_id": sess.ID,
		"outcome":    string(sess.Outcome),
		"turns":      sess.TurnCount,
		"topics":     coveredNames(sess),
	}).Info("call session finalized")
}

func greetingLine(op session.Operation) string {
	line := fmt.Sprintf("Hello! This is the ShoreWatch coordination team calling about a cleanup operation we're planning, %s, near %s.", op.Name, op.Location)
	if op.TargetDate != "" {
		line += fmt.Sprintf(" We're hoping to run it around %s.", op.TargetDate)
	}
	return line + " Do you have a couple of minutes to talk through whether the site would work for us?"
}

func coveredNames(sess *session.Session) string {
	topics := sess.Topics.Covered()
	if len(topics) == 0 {
		return "none"
	}
	names := make([]string, len(topics))
	for i, t := range topics {
		names[i] = t.String()
	}
	return strings.Join(names, ", ")
}

// resultSummary renders a human-readable terminal result for the record store.
func resultSummary(sess *session.Session) string {
	switch sess.Outcome {
	case session.OutcomeAccepted:
		return fmt.Sprintf("Site contact accepted %s. Topics covered: %s.", sess.Operation.Name, coveredNames(sess))
	case session.OutcomeDeclined:
		return fmt.Sprintf("Site contact declined %s; the location is not suitable. Topics covered: %s.", sess.Operation.Name, coveredNames(sess))
	default:
		return fmt.Sprintf("Call ended without a clear answer after %d turns. Topics covered: %s.", sess.TurnCount, coveredNames(sess))
	}
}

func closingAccepted(sess *session.Session) string {
	return fmt.Sprintf(
		"Wonderful, thank you! Based on what you've shared about %s, we'll go ahead and plan %s as discussed. We'll follow up with the details shortly. Have a great day!",
		coveredNames(sess), sess.Operation.Name)
}

func closingDeclined(sess *session.Session) string {
	return fmt.Sprintf(
		"I completely understand. It sounds like %s isn't the right fit for %s at the moment. Thank you so much for your time, and we'd be glad to reconnect later in the season. Take care!",
		sess.Operation.Location, sess.Operation.Name)
}

func closingForced(sess *session.Session) string {
	return "Thank you, this has all been really helpful. We'll review everything on our end and follow up with you about the next steps soon. Have a great day!"
}
