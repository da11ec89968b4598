package models

import (
	"time"
)

// LiveState is the snapshot a freshly-arriving viewer should see right now.
// The server recomputes ElapsedSeconds on every read; clients replace the
// whole value on each poll and never increment it locally.
type LiveState struct {
	YoutubeID      string     `json:"youtube_id"`
	Title          string     `json:"titulo"`
	Duration       int        `json:"duracion"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	ElapsedSeconds int        `json:"segundos_transcurridos"`
	SourceChannel  string     `json:"canal_fuente"`
}

// DefaultSourceChannel is attributed when a video carries no group name.
const DefaultSourceChannel = "ONDACADIZCARNAVAL"

// ElapsedSince computes the elapsed-seconds value served to viewers, capped
// at duration-1 so the embed never seeks past the end of the video.
func ElapsedSince(startedAt time.Time, duration int, now time.Time) int {
	if startedAt.IsZero() || duration <= 0 {
		return 0
	}
	elapsed := int(now.Sub(startedAt).Seconds())
	if elapsed < 0 {
		return 0
	}
	if elapsed > duration-1 {
		return duration - 1
	}
	return elapsed
}
