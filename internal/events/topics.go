package events

import "strings"

// AllTopics lists every topic the daemon publishes.
var AllTopics = []string{
	TopicSessionAcquiring,
	TopicSessionStarted,
	TopicSessionStopped,
	TopicSessionAcquireFailed,
	TopicTorchChanged,
	TopicFocusRequested,
	TopicScanAccepted,
	TopicDecodeFailed,
	TopicStatsReported,
}

// MatchTopic matches a dot-separated topic against a pattern.
// Supports "*" as a single-segment wildcard and ">" as a multi-segment
// suffix wildcard (NATS-style).
func MatchTopic(pattern, topic string) bool {
	if pattern == topic {
		return true
	}

	patParts := strings.Split(pattern, ".")
	topParts := strings.Split(topic, ".")

	for i, pp := range patParts {
		if pp == ">" {
			return i < len(topParts)
		}
		if i >= len(topParts) {
			return false
		}
		if pp != "*" && pp != topParts[i] {
			return false
		}
	}

	return len(patParts) == len(topParts)
}

// MatchingTopics returns the published topics matched by any of patterns.
// No patterns matches everything.
func MatchingTopics(patterns []string) []string {
	if len(patterns) == 0 {
		return append([]string(nil), AllTopics...)
	}
	var out []string
	for _, t := range AllTopics {
		for _, p := range patterns {
			if MatchTopic(p, t) {
				out = append(out, t)
				break
			}
		}
	}
	return out
}
