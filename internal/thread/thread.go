// Package thread groups canonical messages into conversations for
// conversation-level analysis.
package thread

import (
	"regexp"
	"sort"
	"strings"

	"github.com/nhle/mailscope/internal/model"
)

// replyPrefixPattern matches reply/forward subject prefixes (Re:, Fwd:,
// Fw:, Aw:), possibly stacked.
var replyPrefixPattern = regexp.MustCompile(`(?i)^(re|fwd?|aw)\s*:\s*`)

// NormalizeSubject strips reply/forward prefixes and normalizes case
// and whitespace, so replies land in the same conversation as the
// original message.
func NormalizeSubject(subject string) string {
	s := strings.TrimSpace(subject)
	for {
		stripped := replyPrefixPattern.ReplaceAllString(s, "")
		if stripped == s {
			break
		}
		s = strings.TrimSpace(stripped)
	}
	return strings.ToLower(s)
}

// Group partitions messages into conversations keyed by normalized
// subject. Conversations keep the order the first message of each was
// seen in; within a conversation, messages are sorted by date.
func Group(msgs []model.Message) [][]model.Message {
	byKey := make(map[string][]model.Message)
	var order []string

	for _, msg := range msgs {
		key := NormalizeSubject(msg.Subject())
		if _, ok := byKey[key]; !ok {
			order = append(order, key)
		}
		byKey[key] = append(byKey[key], msg)
	}

	groups := make([][]model.Message, 0, len(order))
	for _, key := range order {
		group := byKey[key]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Date().Before(group[j].Date())
		})
		groups = append(groups, group)
	}
	return groups
}
