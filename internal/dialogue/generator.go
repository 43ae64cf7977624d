package dialogue

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chadiek/shorecall/internal/llm"
	"github.com/chadiek/shorecall/internal/session"
)

// ChatProvider is the primary next-line provider.
type ChatProvider interface {
	Chat(ctx context.Context, messages []llm.Message, maxTokens int, temperature float64) (string, error)
}

// Completer is the secondary provider; it takes a single flattened prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Strategy produces the agent's next line, or an error to let the next tier try.
type Strategy interface {
	NextLine(ctx context.Context, sess *session.Session, hint string) (string, error)
}

// Generator walks an ordered chain of strategies until one yields a line.
// The last tier is static text, so a line is always produced: any well-formed
// question keeps the call alive.
type Generator struct {
	strategies []Strategy
	timeout    time.Duration
	log        *logrus.Logger
}

func NewGenerator(chat ChatProvider, completer Completer, timeout time.Duration, log *logrus.Logger) *Generator {
	g := &Generator{timeout: timeout, log: log}
	if chat != nil {
		g.strategies = append(g.strategies, &chatStrategy{provider: chat})
	}
	if completer != nil {
		g.strategies = append(g.strategies, &completionStrategy{provider: completer})
	}
	g.strategies = append(g.strategies, staticStrategy{})
	return g
}

// NextUtterance returns the agent's next question for the session. The caller
// holds the session lock.
func (g *Generator) NextUtterance(ctx context.Context, sess *session.Session) string {
	hint := topicHint(sess.Topics)
	for _, strat := range g.strategies {
		tierCtx, cancel := context.WithTimeout(ctx, g.timeout)
		line, err := strat.NextLine(tierCtx, sess, hint)
		cancel()
		if err != nil {
			g.log.WithFields(logrus.Fields{"session_id": sess.ID, "error": err}).
				Warn("dialogue strategy failed, trying next tier")
			continue
		}
		line = sanitizeReply(line)
		if line != "" {
			return line
		}
	}
	return staticFollowUp
}

// topicHint tells the model which feasibility dimension to probe next.
func topicHint(covered session.TopicSet) string {
	uncovered := covered.Uncovered()
	if len(uncovered) == 0 {
		return "All key topics are covered; ask a short wrap-up question."
	}
	names := make([]string, len(uncovered))
	for i, t := range uncovered {
		names[i] = t.String()
	}
	return fmt.Sprintf("Ask about %s next. Not yet discussed: %s.", names[0], strings.Join(names, ", "))
}

// Models sometimes prepend a speaker label; strip it before speaking the line.
var roleLabelRe = regexp.MustCompile(`(?i)^\s*\[?(agent|assistant|ai|caller|system)\]?\s*:\s*`)

func sanitizeReply(line string) string {
	return strings.TrimSpace(roleLabelRe.ReplaceAllString(strings.TrimSpace(line), ""))
}

const generatorSystemPrompt = `You are a friendly coordinator phoning a site contact about a proposed beach cleanup operation. Ask one short, natural question at a time to judge feasibility. Keep replies to a single sentence suitable for being read aloud.`

type chatStrategy struct {
	provider ChatProvider
}

func (s *chatStrategy) NextLine(ctx context.Context, sess *session.Session, hint string) (string, error) {
	messages := []llm.Message{
		{Role: "system", Content: generatorSystemPrompt + " " + hint},
	}
	for _, t := range sess.Turns {
		role := "assistant"
		if t.Role == session.RoleCaller {
			role = "user"
		}
		messages = append(messages, llm.Message{Role: role, Content: t.Text})
	}
	return s.provider.Chat(ctx, messages, 80, 0.7)
}

type completionStrategy struct {
	provider Completer
}

// The fallback endpoint has no chat roles, so the same conversation is
// flattened into labeled lines with a trailing "Agent:" cue.
func (s *completionStrategy) NextLine(ctx context.Context, sess *session.Session, hint string) (string, error) {
	var b strings.Builder
	b.WriteString(generatorSystemPrompt)
	b.WriteString(" ")
	b.WriteString(hint)
	b.WriteString("\n\n")
	for _, t := range sess.Turns {
		if t.Role == session.RoleCaller {
			b.WriteString("Contact: ")
		} else {
			b.WriteString("Agent: ")
		}
		b.WriteString(t.Text)
		b.WriteString("\n")
	}
	b.WriteString("Agent:")
	return s.provider.Complete(ctx, b.String())
}

const staticFollowUp = "That's good to know. Could you also tell me about the timing that would work best on your end?"

type staticStrategy struct{}

func (staticStrategy) NextLine(_ context.Context, _ *session.Session, _ string) (string, error) {
	return staticFollowUp, nil
}
