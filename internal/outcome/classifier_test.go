package outcome

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chadiek/shorecall/internal/llm"
	"github.com/chadiek/shorecall/internal/session"
)

type fakeChat struct {
	reply string
	err   error
	calls int
}

func (f *fakeChat) Chat(ctx context.Context, messages []llm.Message, maxTokens int, temperature float64) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func newTestSession(turns int, topics session.TopicSet) *session.Session {
	return &session.Session{ID: "s1", TurnCount: turns, Topics: topics}
}

func TestDetectTopics_OneFamilyPerUtterance(t *testing.T) {
	cases := []struct {
		utterance string
		want      session.Topic
	}{
		{"yeah the beach is open to the public", session.TopicAccess},
		{"we could do a weekend morning", session.TopicTiming},
		{"there's a lot of plastic washed up, pretty bad", session.TopicConditions},
		{"you'd need a permit from the city", session.TopicPermits},
		{"watch out, there's broken glass near the rocks", session.TopicSafety},
	}
	for _, tc := range cases {
		set := DetectTopics(tc.utterance)
		if !set.Has(tc.want) {
			t.Fatalf("expected %q to cover %s, got %v", tc.utterance, tc.want, set.Covered())
		}
	}
}

func TestDetectTopics_NoMatchLeavesEmpty(t *testing.T) {
	if set := DetectTopics("uh huh, okay"); set.Count() != 0 {
		t.Fatalf("expected no topics, got %v", set.Covered())
	}
}

func TestClassify_GateBlocksEarlyVerdict(t *testing.T) {
	// Even a maximally positive reply on turn 1 must not conclude the call.
	chat := &fakeChat{reply: "ACCEPTED"}
	c := NewClassifier(chat, time.Second, testLogger())

	sess := newTestSession(1, 0)
	got := c.Classify(context.Background(), sess, "yes absolutely, go ahead!")
	if got != session.OutcomeNone {
		t.Fatalf("expected continue on turn 1, got %s", got)
	}
	if chat.calls != 0 {
		t.Fatalf("model must not be consulted while the gate blocks")
	}
}

func TestClassify_GateBlocksOnTopicCount(t *testing.T) {
	chat := &fakeChat{reply: "DECLINED"}
	c := NewClassifier(chat, time.Second, testLogger())

	// Turn count passes but only one topic covered so far and the latest
	// utterance adds nothing new.
	sess := newTestSession(4, session.TopicSet(0).With(session.TopicAccess))
	got := c.Classify(context.Background(), sess, "hmm")
	if got != session.OutcomeNone {
		t.Fatalf("expected continue with a single topic, got %s", got)
	}
}

func TestClassify_GateWinsOverStrongNegative(t *testing.T) {
	// "closed" is a strong-negative phrase, but the gate still
	// forces continue until enough of the call has happened.
	chat := &fakeChat{err: errors.New("provider down")}
	c := NewClassifier(chat, time.Second, testLogger())

	sess := newTestSession(1, 0)
	got := c.Classify(context.Background(), sess, "sorry, the site's closed to the public indefinitely")
	if got != session.OutcomeNone {
		t.Fatalf("expected gate to force continue, got %s", got)
	}
}

func TestClassify_ModelVerdicts(t *testing.T) {
	cases := []struct {
		reply string
		want  session.Outcome
	}{
		{"ACCEPTED", session.OutcomeAccepted},
		{"accepted", session.OutcomeAccepted},
		{"DECLINED", session.OutcomeDeclined},
		{"CONTINUE", session.OutcomeNone},
		{"something unexpected", session.OutcomeNone},
	}
	for _, tc := range cases {
		chat := &fakeChat{reply: tc.reply}
		c := NewClassifier(chat, time.Second, testLogger())
		sess := newTestSession(3, session.TopicSet(0).With(session.TopicAccess).With(session.TopicTiming))
		got := c.Classify(context.Background(), sess, "the access road is fine and weekends work")
		if got != tc.want {
			t.Fatalf("reply %q: got %s want %s", tc.reply, got, tc.want)
		}
	}
}

func TestClassify_FallbackOnProviderFailure(t *testing.T) {
	cases := []struct {
		utterance string
		want      session.Outcome
	}{
		{"sure, go ahead and bring the crew over", session.OutcomeAccepted},
		{"the beach is closed for nesting season", session.OutcomeDeclined},
		{"let me think about the access side of it", session.OutcomeNone},
	}
	for _, tc := range cases {
		chat := &fakeChat{err: errors.New("timeout")}
		c := NewClassifier(chat, time.Second, testLogger())
		sess := newTestSession(4, session.TopicSet(0).With(session.TopicAccess).With(session.TopicTiming))
		got := c.Classify(context.Background(), sess, tc.utterance)
		if got != tc.want {
			t.Fatalf("utterance %q: got %s want %s", tc.utterance, got, tc.want)
		}
		if chat.calls != 1 {
			t.Fatalf("expected exactly one model attempt, got %d", chat.calls)
		}
	}
}

func TestClassify_TopicsAccumulateAcrossTurns(t *testing.T) {
	chat := &fakeChat{reply: "CONTINUE"}
	c := NewClassifier(chat, time.Second, testLogger())

	sess := newTestSession(1, 0)
	c.Classify(context.Background(), sess, "yeah the beach is open to the public")
	if !sess.Topics.Has(session.TopicAccess) || sess.Topics.Count() != 1 {
		t.Fatalf("expected {access}, got %v", sess.Topics.Covered())
	}

	sess.TurnCount = 2
	c.Classify(context.Background(), sess, "mm, not sure")
	if sess.Topics.Count() != 1 {
		t.Fatalf("topic set must never shrink, got %v", sess.Topics.Covered())
	}

	sess.TurnCount = 3
	c.Classify(context.Background(), sess, "we could do a weekend morning")
	if sess.Topics.Count() != 2 || !sess.Topics.Has(session.TopicTiming) {
		t.Fatalf("expected {access, timing}, got %v", sess.Topics.Covered())
	}
}
