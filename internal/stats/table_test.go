package stats

import "testing"

func TestFormatTableAlignsColumns(t *testing.T) {
	headers := []string{"Subject", "Answered", "Done"}
	rows := [][]string{
		{"Physics", "12/30", "40%"},
		{"Chemistry", "3/30", "10%"},
	}
	rightAlign := map[int]bool{1: true, 2: true}

	lines := formatTable(headers, rows, rightAlign)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[0] != "Subject   Answered Done" {
		t.Fatalf("unexpected header line: %q", lines[0])
	}
	if lines[1] != "Physics      12/30  40%" {
		t.Fatalf("unexpected row line: %q", lines[1])
	}
	if lines[2] != "Chemistry     3/30  10%" {
		t.Fatalf("unexpected row line: %q", lines[2])
	}
}

func TestFormatTableWideRunes(t *testing.T) {
	lines := formatTable([]string{"A", "B"}, [][]string{{"数学", "1"}}, nil)
	if lines[0] != "A    B" {
		t.Fatalf("wide runes should count as two cells: %q", lines[0])
	}
}
