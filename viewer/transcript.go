package viewer

import (
	"fmt"
	"html"
	"sync"

	"github.com/Raulcadiz/Carnavalix/internal/models"
)

// TranscriptEntry is one rendered line of the chat transcript. User-supplied
// text is already escaped; entries are append-only.
type TranscriptEntry struct {
	Type    models.MessageType
	User    string
	Content string
	Time    string
}

// Transcript is the visible chat log of a session. Everything appended is
// text-escaped so markup-like characters render verbatim.
type Transcript struct {
	mu      sync.Mutex
	entries []TranscriptEntry
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{}
}

// Append adds a chat message to the transcript.
func (t *Transcript) Append(msg models.ChatMessage) {
	msgType := msg.Type
	if msgType == "" {
		msgType = models.MessageTypeUser
	}

	t.mu.Lock()
	t.entries = append(t.entries, TranscriptEntry{
		Type:    msgType,
		User:    html.EscapeString(msg.User),
		Content: html.EscapeString(msg.Content),
		Time:    msg.Time,
	})
	t.mu.Unlock()
}

// AppendSystem adds a system notice. The payload is rendered verbatim as
// text: markup-like characters are escaped, never interpreted.
func (t *Transcript) AppendSystem(message string) {
	t.mu.Lock()
	t.entries = append(t.entries, TranscriptEntry{
		Type:    models.MessageTypeSystem,
		Content: html.EscapeString(message),
	})
	t.mu.Unlock()
}

// Reset clears the transcript, used when (re)loading history on room entry.
func (t *Transcript) Reset() {
	t.mu.Lock()
	t.entries = nil
	t.mu.Unlock()
}

// Entries returns a copy of the transcript lines.
func (t *Transcript) Entries() []TranscriptEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TranscriptEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Render flattens an entry to a display line.
func (e TranscriptEntry) Render() string {
	if e.Type == models.MessageTypeSystem {
		return e.Content
	}
	if e.Time != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Time, e.User, e.Content)
	}
	return fmt.Sprintf("%s: %s", e.User, e.Content)
}
