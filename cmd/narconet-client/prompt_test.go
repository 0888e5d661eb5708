package main

import (
	"strings"
	"testing"
)

func TestConfirmOptionalUpdatesNoOptional(t *testing.T) {
	if confirmOptionalUpdates(strings.NewReader(""), nil, []string{"add required.dll"}) {
		t.Fatal("expected false when there are no optional updates to confirm")
	}
}

func TestConfirmOptionalUpdatesAcceptsY(t *testing.T) {
	if !confirmOptionalUpdates(strings.NewReader("y\n"), []string{"add optional.dll"}, nil) {
		t.Fatal("expected true for 'y' response")
	}
}

func TestConfirmOptionalUpdatesAcceptsYes(t *testing.T) {
	if !confirmOptionalUpdates(strings.NewReader("yes\n"), []string{"add optional.dll"}, nil) {
		t.Fatal("expected true for 'yes' response")
	}
}

func TestConfirmOptionalUpdatesDefaultsToNo(t *testing.T) {
	if confirmOptionalUpdates(strings.NewReader("\n"), []string{"add optional.dll"}, nil) {
		t.Fatal("expected false for a bare newline response")
	}
}

func TestConfirmOptionalUpdatesRejectsOther(t *testing.T) {
	if confirmOptionalUpdates(strings.NewReader("nope\n"), []string{"add optional.dll"}, nil) {
		t.Fatal("expected false for an unrecognized response")
	}
}
