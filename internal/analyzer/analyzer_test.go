package analyzer

import (
	"testing"
	"time"

	"github.com/nhle/mailscope/internal/model"
)

func testMessage(id, subject, body string) model.Message {
	return model.NewEmail(id, "a@example.com", "b@example.com",
		time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), subject, body, nil)
}

func TestHeuristic_Analyze_Sentiment(t *testing.T) {
	tests := []struct {
		name string
		body string
		sign int
	}{
		{name: "positive", body: "Thanks, this is great and I appreciate it!", sign: 1},
		{name: "negative", body: "There is a problem, the build failed again.", sign: -1},
		{name: "neutral", body: "The quarterly numbers are attached.", sign: 0},
	}

	h := NewHeuristic()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result, err := h.Analyze(testMessage("m1", "update", tc.body))
			if err != nil {
				t.Fatalf("Analyze() error: %v", err)
			}
			if result.Sentiment == nil {
				t.Fatal("expected a sentiment score")
			}
			s := *result.Sentiment
			switch {
			case tc.sign > 0 && s <= 0:
				t.Errorf("sentiment = %v, want positive", s)
			case tc.sign < 0 && s >= 0:
				t.Errorf("sentiment = %v, want negative", s)
			case tc.sign == 0 && s != 0:
				t.Errorf("sentiment = %v, want 0", s)
			}
			if s < -1 || s > 1 {
				t.Errorf("sentiment = %v, outside [-1, 1]", s)
			}
		})
	}
}

func TestHeuristic_Analyze_TopicsAndEntities(t *testing.T) {
	h := NewHeuristic()

	msg := testMessage("m1", "Invoice for the project",
		"Our contact John Smith says the invoice is ready. Email "+
			"billing@example.com before the deadline.")
	result, err := h.Analyze(msg)
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}

	wantTopics := map[string]bool{"finance": true, "project": true}
	for _, topic := range result.Topics {
		delete(wantTopics, topic)
	}
	if len(wantTopics) != 0 {
		t.Errorf("Topics = %v, missing %v", result.Topics, wantTopics)
	}

	foundEmail, foundName := false, false
	for _, e := range result.Entities {
		if e == "billing@example.com" {
			foundEmail = true
		}
		if e == "John Smith" {
			foundName = true
		}
	}
	if !foundEmail || !foundName {
		t.Errorf("Entities = %v, want address and name", result.Entities)
	}

	if result.MessageID != "m1" || result.MessageCount != 1 {
		t.Errorf("result meta = %+v", result)
	}
	if result.Confidence != singleConfidence {
		t.Errorf("Confidence = %v, want %v", result.Confidence, singleConfidence)
	}
}

func TestHeuristic_Analyze_SummaryTruncation(t *testing.T) {
	h := NewHeuristic()

	long := make([]rune, 500)
	for i := range long {
		long[i] = 'x'
	}
	result, err := h.Analyze(testMessage("m1", "s", string(long)))
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}

	if got := len([]rune(result.Summary)); got != summaryLimit+3 {
		t.Errorf("summary length = %d runes, want %d plus ellipsis", got, summaryLimit)
	}

	short, err := h.Analyze(testMessage("m2", "s", "brief"))
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if short.Summary != "s\nbrief" {
		t.Errorf("Summary = %q, want untruncated text", short.Summary)
	}
}

func TestHeuristic_AnalyzeConversation(t *testing.T) {
	h := NewHeuristic()

	msgs := []model.Message{
		testMessage("m1", "Meeting tomorrow", "Can we schedule a call?"),
		testMessage("m2", "Re: Meeting tomorrow", "Thanks, that works great."),
	}
	result, err := h.AnalyzeConversation(msgs)
	if err != nil {
		t.Fatalf("AnalyzeConversation() error: %v", err)
	}

	if result.MessageID != "m1" {
		t.Errorf("MessageID = %q, want first message id", result.MessageID)
	}
	if result.MessageCount != 2 {
		t.Errorf("MessageCount = %d, want 2", result.MessageCount)
	}
	if result.Confidence != conversationConfidence {
		t.Errorf("Confidence = %v, want %v", result.Confidence, conversationConfidence)
	}

	hasMeeting := false
	for _, topic := range result.Topics {
		if topic == "meeting" {
			hasMeeting = true
		}
	}
	if !hasMeeting {
		t.Errorf("Topics = %v, want meeting", result.Topics)
	}
}

func TestHeuristic_AnalyzeConversation_Empty(t *testing.T) {
	h := NewHeuristic()

	_, err := h.AnalyzeConversation(nil)
	if err == nil {
		t.Fatal("expected error for empty conversation")
	}
	if !IsAnalysisError(err) {
		t.Errorf("expected AnalysisError, got %T: %v", err, err)
	}
}

func TestInsights(t *testing.T) {
	pos, neg := 0.5, -0.5
	results := []model.Analysis{
		{Sentiment: &pos, Topics: []string{"finance", "meeting"}, Confidence: 0.9},
		{Sentiment: &neg, Topics: []string{"finance"}, Confidence: 0.7},
		{Topics: []string{"finance", "travel"}, Confidence: 0.8},
	}

	insights, err := Insights(results)
	if err != nil {
		t.Fatalf("Insights() error: %v", err)
	}

	if insights.TotalAnalyzed != 3 {
		t.Errorf("TotalAnalyzed = %d, want 3", insights.TotalAnalyzed)
	}
	// Average over the two non-nil sentiments only.
	if insights.AverageSentiment != 0 {
		t.Errorf("AverageSentiment = %v, want 0", insights.AverageSentiment)
	}
	if diff := insights.AverageConfidence - 0.8; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("AverageConfidence = %v, want 0.8", insights.AverageConfidence)
	}

	if len(insights.CommonTopics) == 0 || insights.CommonTopics[0].Topic != "finance" {
		t.Fatalf("CommonTopics = %+v, want finance first", insights.CommonTopics)
	}
	if insights.CommonTopics[0].Count != 3 {
		t.Errorf("finance count = %d, want 3", insights.CommonTopics[0].Count)
	}
}

func TestInsights_Empty(t *testing.T) {
	_, err := Insights(nil)
	if !IsAnalysisError(err) {
		t.Errorf("expected AnalysisError, got %v", err)
	}
}
