package tui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

var plain = lipgloss.NewStyle()

func TestWrapTextBreaksAtSpaces(t *testing.T) {
	got := wrapText("what is 12 plus 30", plain, 10)
	want := "what is\n12 plus 30"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestWrapTextSplitsLongWords(t *testing.T) {
	got := wrapText("abcdefgh", plain, 3)
	if got != "abc\ndef\ngh" {
		t.Fatalf("unexpected wrap %q", got)
	}
}

func TestWrapTextCountsWideRunes(t *testing.T) {
	got := wrapText("数学 物理", plain, 5)
	lines := strings.Split(got, "\n")
	if len(lines) != 2 || lines[0] != "数学" || lines[1] != "物理" {
		t.Fatalf("unexpected wrap %q", got)
	}
}

func TestWrapTextZeroWidth(t *testing.T) {
	if got := wrapText("a\nb", plain, 0); got != "a b" {
		t.Fatalf("expected unwrapped text, got %q", got)
	}
}
