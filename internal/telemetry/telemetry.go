// Package telemetry exposes prometheus counters for the research engine.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TurnsTotal counts user turns by outcome (complete or error).
	TurnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "webresearch",
		Name:      "turns_total",
		Help:      "User turns processed, by outcome.",
	}, []string{"outcome"})

	// ToolCallsTotal counts tool invocations by tool name and status.
	ToolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "webresearch",
		Name:      "tool_calls_total",
		Help:      "Tool invocations, by tool and status.",
	}, []string{"tool", "status"})

	// LLMRoundSeconds observes latency of one model round trip.
	LLMRoundSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "webresearch",
		Name:      "llm_round_seconds",
		Help:      "Latency of one chat completion round.",
		Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
	})

	// StreamChunksTotal counts streamed content chunks delivered to clients.
	StreamChunksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "webresearch",
		Name:      "stream_chunks_total",
		Help:      "Content chunks streamed to clients.",
	})
)
