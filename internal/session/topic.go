package session

// Topic is one feasibility dimension the call probes before concluding.
type Topic uint8

const (
	TopicAccess Topic = iota
	TopicPermits
	TopicTiming
	TopicConditions
	TopicSafety

	topicCount
)

var topicNames = [topicCount]string{"access", "permits", "timing", "conditions", "safety"}

func (t Topic) String() string {
	if t >= topicCount {
		return "unknown"
	}
	return topicNames[t]
}

// AllTopics lists every topic in canonical order.
func AllTopics() []Topic {
	return []Topic{TopicAccess, TopicPermits, TopicTiming, TopicConditions, TopicSafety}
}

// TopicSet is a bitset over Topic. Covered topics only ever accumulate.
type TopicSet uint8

func (s TopicSet) Has(t Topic) bool { return s&(1<<t) != 0 }

func (s TopicSet) With(t Topic) TopicSet { return s | 1<<t }

// Union merges two sets.
func (s TopicSet) Union(o TopicSet) TopicSet { return s | o }

func (s TopicSet) Count() int {
	n := 0
	for _, t := range AllTopics() {
		if s.Has(t) {
			n++
		}
	}
	return n
}

// Covered returns the covered topics in canonical order.
func (s TopicSet) Covered() []Topic {
	var out []Topic
	for _, t := range AllTopics() {
		if s.Has(t) {
			out = append(out, t)
		}
	}
	return out
}

// Uncovered returns the topics not yet covered, in canonical order.
func (s TopicSet) Uncovered() []Topic {
	var out []Topic
	for _, t := range AllTopics() {
		if !s.Has(t) {
			out = append(out, t)
		}
	}
	return out
}
