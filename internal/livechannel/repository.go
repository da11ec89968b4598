package livechannel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Raulcadiz/Carnavalix/internal/models"
)

// ErrNoVideos is returned when the catalog holds nothing the channel could
// play.
var ErrNoVideos = errors.New("no videos available in catalog")

// ErrNoState is returned when the live channel has never been started.
var ErrNoState = errors.New("live channel has no state")

// channelState mirrors the estado_live singleton row (always id=1).
type channelState struct {
	YoutubeID     string
	Title         string
	Duration      int
	StartedAt     time.Time
	SourceChannel string
}

// Querier defines what the live channel repository needs from the database
// layer.
type Querier interface {
	GetChannelState(ctx context.Context) (channelState, error)
	UpsertChannelState(ctx context.Context, state channelState) error
	PickRandomVideo(ctx context.Context, phases []models.Phase) (*models.Video, error)
	GetVideoByYoutubeID(ctx context.Context, youtubeID string) (*models.Video, error)
}

// Repository implements live channel data access over Postgres.
type Repository struct {
	queries Querier
}

// NewRepository creates a new live channel repository.
func NewRepository(querier Querier) *Repository {
	return &Repository{queries: querier}
}

// State returns the persisted channel state.
func (r *Repository) State(ctx context.Context) (channelState, error) {
	state, err := r.queries.GetChannelState(ctx)
	if err != nil {
		return channelState{}, err
	}
	return state, nil
}

// SetState commits a new channel state.
func (r *Repository) SetState(ctx context.Context, state channelState) error {
	if err := r.queries.UpsertChannelState(ctx, state); err != nil {
		return fmt.Errorf("failed to set channel state: %w", err)
	}
	return nil
}

// NextVideo picks the video the channel should play next. Finals and
// semifinals are preferred; the full catalog is the fallback.
func (r *Repository) NextVideo(ctx context.Context) (*models.Video, error) {
	video, err := r.queries.PickRandomVideo(ctx, []models.Phase{models.PhaseFinal, models.PhaseSemifinal})
	if err != nil && !errors.Is(err, ErrNoVideos) {
		return nil, fmt.Errorf("failed to pick preferred video: %w", err)
	}
	if video != nil {
		return video, nil
	}

	video, err = r.queries.PickRandomVideo(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to pick video: %w", err)
	}
	return video, nil
}

// VideoByYoutubeID looks up a catalogued video, returning nil when unknown.
func (r *Repository) VideoByYoutubeID(ctx context.Context, youtubeID string) (*models.Video, error) {
	video, err := r.queries.GetVideoByYoutubeID(ctx, youtubeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get video %s: %w", youtubeID, err)
	}
	return video, nil
}

// PGQueries is the pgx-backed Querier implementation.
type PGQueries struct {
	pool *pgxpool.Pool
}

// NewPGQueries creates the Postgres query layer for the live channel.
func NewPGQueries(pool *pgxpool.Pool) *PGQueries {
	return &PGQueries{pool: pool}
}

func (q *PGQueries) GetChannelState(ctx context.Context) (channelState, error) {
	var state channelState
	err := q.pool.QueryRow(ctx,
		`SELECT youtube_id, titulo, duracion, started_at, canal_fuente
		   FROM estado_live WHERE id = 1`,
	).Scan(&state.YoutubeID, &state.Title, &state.Duration, &state.StartedAt, &state.SourceChannel)
	if errors.Is(err, pgx.ErrNoRows) {
		return channelState{}, ErrNoState
	}
	if err != nil {
		return channelState{}, fmt.Errorf("failed to get channel state: %w", err)
	}
	return state, nil
}

func (q *PGQueries) UpsertChannelState(ctx context.Context, state channelState) error {
	_, err := q.pool.Exec(ctx,
		`INSERT INTO estado_live (id, youtube_id, titulo, duracion, started_at, canal_fuente)
		 VALUES (1, $1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET
		   youtube_id = EXCLUDED.youtube_id,
		   titulo = EXCLUDED.titulo,
		   duracion = EXCLUDED.duracion,
		   started_at = EXCLUDED.started_at,
		   canal_fuente = EXCLUDED.canal_fuente`,
		state.YoutubeID, state.Title, state.Duration, state.StartedAt, state.SourceChannel,
	)
	return err
}

func (q *PGQueries) PickRandomVideo(ctx context.Context, phases []models.Phase) (*models.Video, error) {
	var row pgx.Row
	if len(phases) > 0 {
		row = q.pool.QueryRow(ctx,
			`SELECT id, youtube_id, titulo, COALESCE(duracion, 0), COALESCE(año, 0),
			        COALESCE(fase, ''), COALESCE(modalidad, ''), COALESCE(grupo_nombre, '')
			   FROM videos WHERE fase = ANY($1) ORDER BY random() LIMIT 1`,
			phases,
		)
	} else {
		row = q.pool.QueryRow(ctx,
			`SELECT id, youtube_id, titulo, COALESCE(duracion, 0), COALESCE(año, 0),
			        COALESCE(fase, ''), COALESCE(modalidad, ''), COALESCE(grupo_nombre, '')
			   FROM videos ORDER BY random() LIMIT 1`,
		)
	}

	video, err := scanVideo(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoVideos
	}
	return video, err
}

func (q *PGQueries) GetVideoByYoutubeID(ctx context.Context, youtubeID string) (*models.Video, error) {
	row := q.pool.QueryRow(ctx,
		`SELECT id, youtube_id, titulo, COALESCE(duracion, 0), COALESCE(año, 0),
		        COALESCE(fase, ''), COALESCE(modalidad, ''), COALESCE(grupo_nombre, '')
		   FROM videos WHERE youtube_id = $1`,
		youtubeID,
	)

	video, err := scanVideo(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return video, err
}

func scanVideo(row pgx.Row) (*models.Video, error) {
	var v models.Video
	err := row.Scan(&v.ID, &v.YoutubeID, &v.Title, &v.Duration, &v.Year, &v.Phase, &v.Modality, &v.GroupName)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
