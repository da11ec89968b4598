package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Raulcadiz/Carnavalix/internal/models"
)

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// Querier defines what the chat repository needs from the database layer.
type Querier interface {
	InsertMessage(ctx context.Context, msg *models.ChatMessage) (int64, error)
	ListRecentMessages(ctx context.Context, room string, limit int) ([]models.ChatMessage, error)
	PickRandomLyric(ctx context.Context) (*models.Lyric, error)
	PickRandomVideo(ctx context.Context) (*models.Video, error)
}

// Repository implements chat data access operations.
type Repository struct {
	queries Querier
}

// NewRepository creates a new chat repository.
func NewRepository(querier Querier) *Repository {
	return &Repository{queries: querier}
}

// SaveMessage persists a chat message and fills in its ID.
func (r *Repository) SaveMessage(ctx context.Context, msg *models.ChatMessage) error {
	id, err := r.queries.InsertMessage(ctx, msg)
	if err != nil {
		return fmt.Errorf("failed to save chat message: %w", err)
	}
	msg.ID = id
	return nil
}

// History returns up to limit messages of a room, oldest first.
func (r *Repository) History(ctx context.Context, room string, limit int) ([]models.ChatMessage, error) {
	messages, err := r.queries.ListRecentMessages(ctx, room, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat history: %w", err)
	}
	return messages, nil
}

// RandomLyric returns a random lyric for the bot, nil when the table is empty.
func (r *Repository) RandomLyric(ctx context.Context) (*models.Lyric, error) {
	return r.queries.PickRandomLyric(ctx)
}

// RandomVideo returns a random video for the bot, nil when the table is empty.
func (r *Repository) RandomVideo(ctx context.Context) (*models.Video, error) {
	return r.queries.PickRandomVideo(ctx)
}

// PGQueries is the pgx-backed Querier implementation.
type PGQueries struct {
	pool *pgxpool.Pool
}

// NewPGQueries creates the Postgres query layer for chat.
func NewPGQueries(pool *pgxpool.Pool) *PGQueries {
	return &PGQueries{pool: pool}
}

func (q *PGQueries) InsertMessage(ctx context.Context, msg *models.ChatMessage) (int64, error) {
	var id int64
	err := q.pool.QueryRow(ctx,
		`INSERT INTO mensajes_chat (usuario, contenido, tipo, sala, created_at)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		msg.User, msg.Content, string(msg.Type), msg.Room, msg.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (q *PGQueries) ListRecentMessages(ctx context.Context, room string, limit int) ([]models.ChatMessage, error) {
	rows, err := q.pool.Query(ctx,
		`SELECT id, usuario, contenido, tipo, sala, created_at
		   FROM mensajes_chat WHERE sala = $1
		  ORDER BY created_at DESC LIMIT $2`,
		room, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		var msgType string
		if err := rows.Scan(&m.ID, &m.User, &m.Content, &msgType, &m.Room, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Type = models.MessageType(msgType)
		m.Time = models.FormatHour(m.CreatedAt)
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Rows come newest-first from the index scan; the transcript wants them
	// oldest-first.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (q *PGQueries) PickRandomLyric(ctx context.Context) (*models.Lyric, error) {
	var l models.Lyric
	err := q.pool.QueryRow(ctx,
		`SELECT id, COALESCE(titulo, ''), COALESCE(tipo_pieza, ''), contenido,
		        COALESCE(año, 0), COALESCE(grupo_nombre, '')
		   FROM letras ORDER BY random() LIMIT 1`,
	).Scan(&l.ID, &l.Title, &l.PieceType, &l.Content, &l.Year, &l.GroupName)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &l, nil
}

func (q *PGQueries) PickRandomVideo(ctx context.Context) (*models.Video, error) {
	var v models.Video
	err := q.pool.QueryRow(ctx,
		`SELECT id, youtube_id, titulo, COALESCE(duracion, 0), COALESCE(año, 0),
		        COALESCE(fase, ''), COALESCE(modalidad, ''), COALESCE(grupo_nombre, '')
		   FROM videos ORDER BY random() LIMIT 1`,
	).Scan(&v.ID, &v.YoutubeID, &v.Title, &v.Duration, &v.Year, &v.Phase, &v.Modality, &v.GroupName)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &v, nil
}
