package model

import "time"

// Analysis holds the computed analysis of one message or conversation.
type Analysis struct {
	// ID is the internal identifier of this analysis row.
	ID string `json:"id"`

	// MessageID is the analyzed message's id. For a conversation it is
	// the id of the first message in the thread.
	MessageID string `json:"message_id"`

	// MessageCount is 1 for a single message, or the thread length for
	// a conversation analysis.
	MessageCount int `json:"message_count"`

	// Sentiment is in [-1, 1]; nil means no sentiment was computed.
	Sentiment *float64 `json:"sentiment,omitempty"`

	// Topics are the detected topic labels.
	Topics []string `json:"topics,omitempty"`

	// Entities are names and addresses mentioned in the text.
	Entities []string `json:"entities,omitempty"`

	// Summary is a short excerpt of the analyzed text.
	Summary string `json:"summary"`

	// Confidence is the analyzer's confidence in [0, 1].
	Confidence float64 `json:"confidence"`

	// HasAttachments records whether the analyzed message carried
	// attachments.
	HasAttachments bool `json:"has_attachments"`

	// AnalyzedAt is when the analysis ran.
	AnalyzedAt time.Time `json:"analyzed_at"`
}

// TopicCount pairs a topic with how often it occurred across analyses.
type TopicCount struct {
	Topic string `json:"topic"`
	Count int    `json:"count"`
}

// Insights aggregates multiple analysis results.
type Insights struct {
	// AverageSentiment averages the non-nil sentiments.
	AverageSentiment float64 `json:"average_sentiment"`

	// CommonTopics are the most frequent topics, most common first,
	// capped at five.
	CommonTopics []TopicCount `json:"common_topics"`

	// TotalAnalyzed is the number of results aggregated.
	TotalAnalyzed int `json:"total_analyzed"`

	// AverageConfidence averages the per-result confidences.
	AverageConfidence float64 `json:"average_confidence"`
}
