package orchestrator

import (
	"math/rand"

	"github.com/maastricht-university/ecg-beats/record"
	"github.com/maastricht-university/ecg-beats/segment"
)

// edge events at each end of a session that never yield a segment
const edgeEvents = 2

func trimEdges(events []record.AnnotatedEvent) []record.AnnotatedEvent {
	if len(events) <= 2*edgeEvents {
		return nil
	}
	return events[edgeEvents : len(events)-edgeEvents]
}

// Balance shuffles each label group and truncates all of them to
// min(limit, smallest group), so every label ends with the same count. Groups
// for labels outside segment.Labels are dropped.
func Balance(g Groups, limit int, rng *rand.Rand) Groups {
	n := limit
	for _, l := range segment.Labels {
		n = min(n, len(g[l]))
	}
	n = max(n, 0)

	out := make(Groups, len(segment.Labels))
	for _, l := range segment.Labels {
		items := g[l]
		rng.Shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })
		out[l] = items[:n:n]
	}
	return out
}
