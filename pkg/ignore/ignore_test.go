package ignore

import "testing"

func TestMatchBasic(t *testing.T) {
	m, err := Compile([]string{"**/*.log", "*.tmp"})
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}

	if !m.Match("a/b/c.log") {
		t.Errorf("expected **/*.log to match a/b/c.log")
	}
	if m.Match("a.tmp") == false {
		t.Errorf("expected *.tmp to match a.tmp")
	}
	if m.Match("a/b.tmp") {
		t.Errorf("expected *.tmp to not match a/b.tmp (single segment only)")
	}
}

func TestMatchQuestionMark(t *testing.T) {
	m, err := Compile([]string{"file?.txt"})
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	if !m.Match("fileA.txt") {
		t.Errorf("expected file?.txt to match fileA.txt")
	}
	if m.Match("file.txt") {
		t.Errorf("? must match exactly one character")
	}
	if m.Match("file/A.txt") {
		t.Errorf("? must not match a separator")
	}
}

func TestMatchCharacterClass(t *testing.T) {
	m, err := Compile([]string{"[a-c].txt"})
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	if !m.Match("a.txt") || !m.Match("b.txt") || !m.Match("c.txt") {
		t.Errorf("expected [a-c].txt to match a/b/c.txt")
	}
	if m.Match("d.txt") {
		t.Errorf("expected [a-c].txt to not match d.txt")
	}
}

func TestMatchBraceAlternation(t *testing.T) {
	m, err := Compile([]string{"{a,b}/x"})
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	if !m.Match("a/x") || !m.Match("b/x") {
		t.Errorf("expected {a,b}/x to match both a/x and b/x")
	}
	if m.Match("c/x") {
		t.Errorf("expected {a,b}/x to not match c/x")
	}
}

func TestMatchPrefix(t *testing.T) {
	m, err := Compile([]string{"node_modules"})
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	if !m.MatchPrefix("node_modules/pkg/index.js") {
		t.Errorf("expected prefix mode to exclude everything beneath a matched directory")
	}
	if m.Match("node_modules/pkg/index.js") {
		t.Errorf("anchored Match should not match a path beneath the pattern")
	}
}

func TestEmptyMatcher(t *testing.T) {
	m, err := Compile(nil)
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	if m.Match("anything") || m.MatchPrefix("anything") {
		t.Errorf("empty matcher should never match")
	}
}
