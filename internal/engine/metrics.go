package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	storiesStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "story_engine_stories_started_total",
			Help: "Total number of story sessions started, partitioned by story category.",
		},
		[]string{"category"},
	)
	storiesCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "story_engine_stories_completed_total",
			Help: "Total number of stories finished at a terminal node, partitioned by ending polarity.",
		},
		[]string{"ending"},
	)
	nodesVisited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "story_engine_nodes_visited_total",
			Help: "Total number of nodes visited by the interpreter, partitioned by node kind.",
		},
		[]string{"kind"},
	)
)
