package template

import (
	"strings"
	"testing"
)

func TestRenderPlainMessage(t *testing.T) {
	e, err := NewEngine("Hej! Jeg er interesseret i boligen.")
	if err != nil {
		t.Fatal(err)
	}
	got, err := e.Render("2-room in Valby", "Valby Langgade 1, 2500 Valby", "https://x.dk/1")
	if err != nil {
		t.Fatal(err)
	}
	if got != "Hej! Jeg er interesseret i boligen." {
		t.Errorf("plain message changed: %q", got)
	}
}

func TestRenderWithPlaceholders(t *testing.T) {
	e, err := NewEngine("Hej! Jeg er meget interesseret i {{.Title}} på {{.Address}}.")
	if err != nil {
		t.Fatal(err)
	}
	got, err := e.Render("2-room in Valby", "Valby Langgade 1", "https://x.dk/1")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "2-room in Valby") || !strings.Contains(got, "Valby Langgade 1") {
		t.Errorf("placeholders not filled: %q", got)
	}
}

func TestNewEngineRejectsBrokenTemplate(t *testing.T) {
	if _, err := NewEngine("Hej {{.Title"); err == nil {
		t.Error("expected parse error for unterminated placeholder")
	}
}
