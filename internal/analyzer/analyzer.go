// Package analyzer computes sentiment, topics, entities, and summaries
// over canonical messages. The heuristics are deliberately simple word
// and pattern matches; no language model is involved.
package analyzer

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/mailscope/internal/model"
)

// AnalysisError indicates the analyzer could not produce a result.
type AnalysisError struct {
	Reason string
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis error: %s", e.Reason)
}

// IsAnalysisError reports whether err (or any error in its chain) is
// an AnalysisError.
func IsAnalysisError(err error) bool {
	var analysisErr *AnalysisError
	return errors.As(err, &analysisErr)
}

// Analyzer computes analysis results over messages.
type Analyzer interface {
	// Analyze analyzes a single message.
	Analyze(msg model.Message) (model.Analysis, error)

	// AnalyzeConversation analyzes a thread of messages as one unit.
	AnalyzeConversation(msgs []model.Message) (model.Analysis, error)
}

// Confidence constants for the heuristic analyzer.
const (
	singleConfidence       = 0.85
	conversationConfidence = 0.80
)

// summaryLimit caps the summary excerpt length in runes.
const summaryLimit = 200

// positiveWords and negativeWords are the sentiment lexicons. Matches
// are counted per word, lowercased.
var positiveWords = map[string]bool{
	"thanks": true, "thank": true, "great": true, "good": true,
	"excellent": true, "appreciate": true, "happy": true, "glad": true,
	"perfect": true, "wonderful": true, "congratulations": true,
	"love": true, "awesome": true, "success": true, "resolved": true,
}

var negativeWords = map[string]bool{
	"problem": true, "issue": true, "error": true, "fail": true,
	"failed": true, "urgent": true, "unfortunately": true, "wrong": true,
	"bad": true, "broken": true, "delay": true, "delayed": true,
	"complaint": true, "angry": true, "disappointed": true, "bug": true,
}

// topicKeywords maps topic labels to the words that signal them.
var topicKeywords = map[string][]string{
	"meeting": {"meeting", "schedule", "calendar", "invite", "agenda", "call"},
	"finance": {"invoice", "payment", "budget", "expense", "receipt", "billing"},
	"project": {"project", "deadline", "milestone", "release", "sprint", "launch"},
	"travel":  {"flight", "hotel", "booking", "itinerary", "trip", "travel"},
	"support": {"support", "ticket", "help", "issue", "request", "outage"},
}

var (
	wordPattern  = regexp.MustCompile(`[a-zA-Z']+`)
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

	// namePattern matches runs of capitalized words, the crude stand-in
	// for named entities.
	namePattern = regexp.MustCompile(`\b[A-Z][a-z]+(?: [A-Z][a-z]+)+\b`)
)

// Heuristic is the concrete Analyzer.
type Heuristic struct{}

// NewHeuristic creates the heuristic analyzer.
func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

var _ Analyzer = (*Heuristic)(nil)

// Analyze analyzes one message's subject and body.
func (h *Heuristic) Analyze(msg model.Message) (model.Analysis, error) {
	text := msg.Subject() + "\n" + msg.Body()
	sentiment := scoreSentiment(text)

	return model.Analysis{
		ID:             uuid.NewString(),
		MessageID:      msg.ID(),
		MessageCount:   1,
		Sentiment:      &sentiment,
		Topics:         extractTopics(text),
		Entities:       extractEntities(text),
		Summary:        summarize(text),
		Confidence:     singleConfidence,
		HasAttachments: len(msg.Attachments()) > 0,
		AnalyzedAt:     time.Now(),
	}, nil
}

// AnalyzeConversation analyzes a thread as one combined text.
func (h *Heuristic) AnalyzeConversation(msgs []model.Message) (model.Analysis, error) {
	if len(msgs) == 0 {
		return model.Analysis{}, &AnalysisError{Reason: "empty conversation"}
	}

	var sb strings.Builder
	for _, msg := range msgs {
		fmt.Fprintf(&sb, "Subject: %s\nBody: %s\n", msg.Subject(), msg.Body())
	}
	text := sb.String()
	sentiment := scoreSentiment(text)

	return model.Analysis{
		ID:           uuid.NewString(),
		MessageID:    msgs[0].ID(),
		MessageCount: len(msgs),
		Sentiment:    &sentiment,
		Topics:       extractTopics(text),
		Entities:     extractEntities(text),
		Summary:      summarize(text),
		Confidence:   conversationConfidence,
		AnalyzedAt:   time.Now(),
	}, nil
}

// scoreSentiment returns a score in [-1, 1]: the balance of positive
// versus negative lexicon hits, 0 when the text hits neither lexicon.
func scoreSentiment(text string) float64 {
	var pos, neg int
	for _, word := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		if positiveWords[word] {
			pos++
		}
		if negativeWords[word] {
			neg++
		}
	}

	total := pos + neg
	if total == 0 {
		return 0
	}
	return float64(pos-neg) / float64(total)
}

// extractTopics returns the topic labels whose keywords occur in the
// text, sorted for stable output.
func extractTopics(text string) []string {
	lower := strings.ToLower(text)

	var topics []string
	for topic, keywords := range topicKeywords {
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				topics = append(topics, topic)
				break
			}
		}
	}
	sort.Strings(topics)
	return topics
}

// extractEntities returns mail addresses and capitalized name runs,
// deduplicated in order of first occurrence.
func extractEntities(text string) []string {
	seen := make(map[string]bool)
	var entities []string

	add := func(matches []string) {
		for _, m := range matches {
			if seen[m] {
				continue
			}
			seen[m] = true
			entities = append(entities, m)
		}
	}

	add(emailPattern.FindAllString(text, -1))
	add(namePattern.FindAllString(text, -1))
	return entities
}

// summarize truncates the text to the summary limit on a rune boundary.
func summarize(text string) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= summaryLimit {
		return string(runes)
	}
	return string(runes[:summaryLimit]) + "..."
}
