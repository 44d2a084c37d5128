package ui

import "testing"

func TestThemeNames(t *testing.T) {
	names := ThemeNames()
	if len(names) != 3 {
		t.Fatalf("ThemeNames() returned %d names, want 3", len(names))
	}
	if names[0] != "Moss" || names[1] != "Kanagawa" || names[2] != "Slate" {
		t.Fatalf("ThemeNames() = %v, want [Moss Kanagawa Slate]", names)
	}
}

func TestNextTheme(t *testing.T) {
	if got := NextTheme("Moss"); got != "Kanagawa" {
		t.Fatalf("NextTheme(Moss) = %q, want Kanagawa", got)
	}
	if got := NextTheme("Slate"); got != "Moss" {
		t.Fatalf("NextTheme(Slate) = %q, want Moss", got)
	}
	if got := NextTheme("Unknown"); got != "Moss" {
		t.Fatalf("NextTheme(Unknown) = %q, want Moss", got)
	}
}

func TestGetTheme(t *testing.T) {
	for _, name := range ThemeNames() {
		if got := GetTheme(name).Name; got != name {
			t.Fatalf("GetTheme(%s).Name = %q", name, got)
		}
	}
	if got := GetTheme("Unknown").Name; got != "Moss" {
		t.Fatalf("GetTheme(Unknown).Name = %q, want Moss (fallback)", got)
	}
}

func TestStatusStyleFallsBackToMuted(t *testing.T) {
	styles := GetTheme("Moss").Styles()
	known := styles.StatusStyle("failed")
	unknown := styles.StatusStyle("no-such-status")
	if known.GetForeground() == unknown.GetForeground() {
		t.Fatal("known and unknown statuses should not share a color")
	}
	muted := styles.MutedText
	if unknown.GetForeground() != muted.GetForeground() {
		t.Fatalf("unknown status color = %v, want the muted color", unknown.GetForeground())
	}
}
