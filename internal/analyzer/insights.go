package analyzer

import (
	"sort"

	"github.com/nhle/mailscope/internal/model"
)

// maxCommonTopics caps how many topics an insight reports.
const maxCommonTopics = 5

// Insights aggregates multiple analysis results: average sentiment
// over the results that carry one, the most common topics, and the
// average confidence.
func Insights(results []model.Analysis) (model.Insights, error) {
	if len(results) == 0 {
		return model.Insights{}, &AnalysisError{Reason: "no analysis results"}
	}

	var sentimentSum float64
	var sentimentCount int
	var confidenceSum float64
	topicCounts := make(map[string]int)
	var topicOrder []string

	for _, r := range results {
		if r.Sentiment != nil {
			sentimentSum += *r.Sentiment
			sentimentCount++
		}
		confidenceSum += r.Confidence
		for _, topic := range r.Topics {
			if topicCounts[topic] == 0 {
				topicOrder = append(topicOrder, topic)
			}
			topicCounts[topic]++
		}
	}

	// Most frequent first; ties keep first-seen order.
	sort.SliceStable(topicOrder, func(i, j int) bool {
		return topicCounts[topicOrder[i]] > topicCounts[topicOrder[j]]
	})
	if len(topicOrder) > maxCommonTopics {
		topicOrder = topicOrder[:maxCommonTopics]
	}

	common := make([]model.TopicCount, 0, len(topicOrder))
	for _, topic := range topicOrder {
		common = append(common, model.TopicCount{Topic: topic, Count: topicCounts[topic]})
	}

	insights := model.Insights{
		CommonTopics:      common,
		TotalAnalyzed:     len(results),
		AverageConfidence: confidenceSum / float64(len(results)),
	}
	if sentimentCount > 0 {
		insights.AverageSentiment = sentimentSum / float64(sentimentCount)
	}
	return insights, nil
}
