package models

import "time"

// Phase classifies a COAC performance within the contest.
type Phase string

const (
	PhasePreliminar Phase = "preliminar"
	PhaseCuartos    Phase = "cuartos"
	PhaseSemifinal  Phase = "semifinal"
	PhaseFinal      Phase = "final"
	PhaseCallejera  Phase = "callejera"
)

// Video is a catalogued YouTube performance.
type Video struct {
	ID        int64      `json:"id"`
	YoutubeID string     `json:"youtube_id"`
	Title     string     `json:"titulo"`
	Duration  int        `json:"duracion"`
	Year      int        `json:"año"`
	Phase     Phase      `json:"fase"`
	Modality  string     `json:"modalidad"`
	GroupName string     `json:"grupo_nombre"`
	CreatedAt time.Time  `json:"-"`
	UpdatedAt *time.Time `json:"-"`
}

// Lyric is a piece of carnival lyrics, linked to a video when known.
type Lyric struct {
	ID        int64  `json:"id"`
	Title     string `json:"titulo"`
	PieceType string `json:"tipo_pieza"`
	Content   string `json:"contenido"`
	Year      int    `json:"año"`
	GroupName string `json:"grupo_nombre"`
}
