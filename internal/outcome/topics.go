package outcome

import (
	"regexp"

	"github.com/chadiek/shorecall/internal/session"
)

// One pattern family per feasibility topic. A topic counts as covered the
// first time any of its patterns matches anywhere in the call; coverage never
// shrinks.
var topicPatterns = map[session.Topic]*regexp.Regexp{
	session.TopicAccess: regexp.MustCompile(
		`(?i)\b(access|open to the public|public beach|entrance|entry|get (in|there)|gate|parking|reach the)\b`),
	session.TopicPermits: regexp.MustCompile(
		`(?i)\b(permits?|permission|authoriz\w*|approv\w*|paperwork|licens\w*|city hall|council)\b`),
	session.TopicTiming: regexp.MustCompile(
		`(?i)\b(timing|schedule\w*|weekend|weekday|morning|afternoon|evening|next (week|month)|date|when|available|availability)\b`),
	session.TopicConditions: regexp.MustCompile(
		`(?i)\b(conditions?|plastic|debris|trash|litter|washed (up|ashore)|pollut\w*|tides?|seaweed|erosion|oil)\b`),
	session.TopicSafety: regexp.MustCompile(
		`(?i)\b(safety|safe|hazard\w*|danger\w*|sharp|needles?|glass|unsafe|risk\w*|caution|cliff\w*|currents?)\b`),
}

// DetectTopics scans one utterance and returns the set of topics it touches.
func DetectTopics(text string) session.TopicSet {
	var set session.TopicSet
	for topic, re := range topicPatterns {
		if re.MatchString(text) {
			set = set.With(topic)
		}
	}
	return set
}
