package outcome

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chadiek/shorecall/internal/llm"
	"github.com/chadiek/shorecall/internal/session"
)

// The classifier refuses to conclude a call before a minimum amount of
// information has been gathered, so a single friendly or curt reply can never
// end the conversation on its own.
const (
	MinTurnsBeforeVerdict  = 3
	MinTopicsBeforeVerdict = 2
)

// ChatProvider is the slice of the chat client the classifier needs.
type ChatProvider interface {
	Chat(ctx context.Context, messages []llm.Message, maxTokens int, temperature float64) (string, error)
}

// Classifier decides whether a call has reached a natural conclusion.
type Classifier struct {
	provider ChatProvider
	timeout  time.Duration
	log      *logrus.Logger
}

func NewClassifier(provider ChatProvider, timeout time.Duration, log *logrus.Logger) *Classifier {
	return &Classifier{provider: provider, timeout: timeout, log: log}
}

const classifierSystemPrompt = `You are evaluating a phone call with a site contact about a proposed beach cleanup operation. Decide whether the contact has clearly accepted the operation, clearly declined it, or whether the conversation should continue.

A single positive-sounding reply is NOT enough to accept: multiple aspects (access, timing, site conditions) must be corroborated before concluding. When in doubt, continue.

Answer with exactly one word: ACCEPTED, DECLINED, or CONTINUE.`

// Classify updates the session's covered-topic set from the latest utterance
// and returns the verdict for this turn. The caller holds the session lock.
func (c *Classifier) Classify(ctx context.Context, sess *session.Session, latest string) session.Outcome {
	sess.Topics = sess.Topics.Union(DetectTopics(latest))

	if sess.TurnCount < MinTurnsBeforeVerdict || sess.Topics.Count() < MinTopicsBeforeVerdict {
		return session.OutcomeNone
	}

	verdict, err := c.askModel(ctx, sess, latest)
	if err != nil {
		c.log.WithFields(logrus.Fields{"session_id": sess.ID, "error": err}).
			Warn("classifier provider failed, using keyword fallback")
		return keywordFallback(latest)
	}
	return verdict
}

func (c *Classifier) askModel(ctx context.Context, sess *session.Session, latest string) (session.Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var b strings.Builder
	b.WriteString("Transcript so far:\n")
	for _, e := range sess.Transcript {
		b.WriteString(string(e.Role))
		b.WriteString(": ")
		b.WriteString(e.Text)
		b.WriteString("\n")
	}
	b.WriteString("\nLatest reply from the contact: ")
	b.WriteString(latest)

	messages := []llm.Message{
		{Role: "system", Content: classifierSystemPrompt},
		{Role: "user", Content: b.String()},
	}
	reply, err := c.provider.Chat(ctx, messages, 8, 0)
	if err != nil {
		return session.OutcomeNone, err
	}
	return parseVerdict(reply), nil
}

func parseVerdict(reply string) session.Outcome {
	switch {
	case strings.Contains(strings.ToUpper(reply), "ACCEPTED"):
		return session.OutcomeAccepted
	case strings.Contains(strings.ToUpper(reply), "DECLINED"):
		return session.OutcomeDeclined
	default:
		return session.OutcomeNone
	}
}

// Deterministic fallback when the model is unreachable: scan the latest
// utterance against fixed phrase lists, first match wins. No match leaves the
// call in progress, which is always safe because the driver just asks another
// question.
var (
	strongPositive = []string{
		"go ahead",
		"sounds good",
		"that works",
		"happy to host",
		"you're welcome to",
		"absolutely yes",
		"count us in",
		"approved",
	}
	strongNegative = []string{
		"closed",
		"not possible",
		"no way",
		"cannot allow",
		"can't allow",
		"not interested",
		"do not come",
		"don't come",
		"denied",
		"unsuitable",
	}
)

func keywordFallback(latest string) session.Outcome {
	lower := strings.ToLower(latest)
	for _, phrase := range strongPositive {
		if strings.Contains(lower, phrase) {
			return session.OutcomeAccepted
		}
	}
	for _, phrase := range strongNegative {
		if strings.Contains(lower, phrase) {
			return session.OutcomeDeclined
		}
	}
	return session.OutcomeNone
}
