package help

import (
	"strings"
	"testing"

	"github.com/nhle/mailscope/internal/keys"
)

func TestViewListsAllBindings(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 160, 40)
	out := m.View()

	sections := []string{"Keyboard Shortcuts", "Navigate", "Inbox", "Messages", "Panels"}
	for _, want := range sections {
		if !strings.Contains(out, want) {
			t.Errorf("help missing section %q", want)
		}
	}

	descs := []string{"open message", "toggle read", "unread only", "analyze thread", "connect account"}
	for _, want := range descs {
		if !strings.Contains(out, want) {
			t.Errorf("help missing binding %q", want)
		}
	}
}
