package viewer

import (
	"strings"
	"testing"

	"github.com/Raulcadiz/Carnavalix/internal/models"
)

func TestTranscriptEscapesMarkup(t *testing.T) {
	tr := NewTranscript()
	tr.Append(models.ChatMessage{
		Room:    "general",
		User:    "<b>Paco</b>",
		Content: `<script>alert("x")</script>`,
		Type:    models.MessageTypeUser,
		Time:    "18:30",
	})

	entries := tr.Entries()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if strings.Contains(entries[0].User, "<") || strings.Contains(entries[0].Content, "<") {
		t.Errorf("entry kept raw markup: %+v", entries[0])
	}
	if !strings.Contains(entries[0].Content, "&lt;script&gt;") {
		t.Errorf("Content = %q, want escaped markup rendered as text", entries[0].Content)
	}
}

func TestTranscriptSystemNoticesAreEscapedText(t *testing.T) {
	tr := NewTranscript()
	tr.AppendSystem("<img src=x> se ha unido a #general")

	entries := tr.Entries()
	if entries[0].Type != models.MessageTypeSystem {
		t.Errorf("Type = %q, want system", entries[0].Type)
	}
	if strings.Contains(entries[0].Content, "<img") {
		t.Errorf("system payload kept raw markup: %q", entries[0].Content)
	}
}

func TestTranscriptResetClears(t *testing.T) {
	tr := NewTranscript()
	tr.Append(models.ChatMessage{User: "Paco", Content: "hola"})
	tr.Append(models.ChatMessage{User: "Lola", Content: "buenas"})
	tr.Reset()

	if got := len(tr.Entries()); got != 0 {
		t.Errorf("got %d entries after Reset, want 0", got)
	}
}

func TestTranscriptEntryRender(t *testing.T) {
	tr := NewTranscript()
	tr.Append(models.ChatMessage{User: "Paco", Content: "viva Cádiz", Time: "18:30"})
	tr.AppendSystem("Lola se ha unido a #general")

	entries := tr.Entries()
	if got := entries[0].Render(); got != "[18:30] Paco: viva Cádiz" {
		t.Errorf("Render() = %q", got)
	}
	if got := entries[1].Render(); got != "Lola se ha unido a #general" {
		t.Errorf("system Render() = %q", got)
	}
}

func TestTranscriptDefaultsEmptyTypeToUser(t *testing.T) {
	tr := NewTranscript()
	tr.Append(models.ChatMessage{User: "Paco", Content: "hola"})

	if got := tr.Entries()[0].Type; got != models.MessageTypeUser {
		t.Errorf("Type = %q, want user", got)
	}
}
