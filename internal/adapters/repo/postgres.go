package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"social-pulse/internal/domain"
	"social-pulse/internal/infra/metrics"
)

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.EventRepo   = (*Postgres)(nil)
	_ domain.ChannelRepo = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// RecordRead фиксирует прочтения пачкой. Ключ группы берётся из самого
// сообщения, поэтому неизвестные идентификаторы пропускаются так же
// молча, как и дубликаты. Возвращает число реально вставленных событий.
func (p *Postgres) RecordRead(ctx context.Context, subjectIDs []string, actorID int64) (int, error) {
	if len(subjectIDs) == 0 {
		return 0, nil
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
INSERT INTO events (subject_id, actor_id, kind, group_key)
SELECT m.id, $2, 'read', m.channel_id
FROM messages m
WHERE m.id = ANY($1::uuid[])
ON CONFLICT (subject_id, actor_id, kind) DO NOTHING
`, subjectIDs, actorID)
	metrics.ObserveNetworkRequest("postgres", "events_record_read", "events", start, err)
	if err != nil {
		return 0, err
	}
	inserted := int(tag.RowsAffected())
	if inserted > 0 {
		metrics.ReadReceiptsInserted.Add(float64(inserted))
	}
	return inserted, nil
}

// UpsertReaction вставляет реакцию либо заменяет значение существующей.
// Повторная реакция того же пользователя обновляет value и created_at —
// побеждает последняя запись.
func (p *Postgres) UpsertReaction(ctx context.Context, subjectID string, actorID int64, value string) (domain.Event, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var event domain.Event
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO events (subject_id, actor_id, kind, value, group_key)
SELECT m.id, $2, 'reaction', $3, m.channel_id
FROM messages m
WHERE m.id = $1
ON CONFLICT (subject_id, actor_id, kind) DO UPDATE SET value = EXCLUDED.value, created_at = now()
RETURNING subject_id, actor_id, kind, value, group_key, created_at
`, subjectID, actorID, value).Scan(&event.SubjectID, &event.ActorID, &event.Kind, &event.Value, &event.GroupKey, &event.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "events_upsert_reaction", "events", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Event{}, domain.ErrMessageNotFound
	}
	if err != nil {
		return domain.Event{}, err
	}
	return event, nil
}

// RemoveReaction удаляет реакцию с совпадающим значением. Удаление не
// слепое: несовпадение значения равносильно отсутствию события.
func (p *Postgres) RemoveReaction(ctx context.Context, subjectID string, actorID int64, value string) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
DELETE FROM events
WHERE subject_id = $1 AND actor_id = $2 AND kind = 'reaction' AND value = $3
`, subjectID, actorID, value)
	metrics.ObserveNetworkRequest("postgres", "events_remove_reaction", "events", start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrReactionNotFound
	}
	return nil
}

// ListUnreadForActor возвращает чужие сообщения в каналах пользователя,
// для которых нет события прочтения.
func (p *Postgres) ListUnreadForActor(ctx context.Context, actorID int64) ([]domain.Message, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT m.id, m.channel_id, m.author_id, m.created_at
FROM messages m
JOIN channel_members cm ON cm.channel_id = m.channel_id AND cm.user_id = $1
WHERE m.author_id <> $1
  AND NOT EXISTS (
      SELECT 1 FROM events e
      WHERE e.subject_id = m.id AND e.actor_id = $1 AND e.kind = 'read'
  )
ORDER BY m.created_at
`, actorID)
	metrics.ObserveNetworkRequest("postgres", "messages_list_unread", "messages", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var unread []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.ChannelID, &m.AuthorID, &m.CreatedAt); err != nil {
			return nil, err
		}
		unread = append(unread, m)
	}
	return unread, rows.Err()
}

// CountRewardSources считает события, засчитываемые в требования наград.
func (p *Postgres) CountRewardSources(ctx context.Context, userID int64) (map[string]int, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT 'messages_authored', COUNT(*) FROM messages WHERE author_id = $1
UNION ALL
SELECT 'reactions_given', COUNT(*) FROM events WHERE actor_id = $1 AND kind = 'reaction'
UNION ALL
SELECT 'reactions_received', COUNT(*)
FROM events e JOIN messages m ON m.id = e.subject_id
WHERE m.author_id = $1 AND e.kind = 'reaction' AND e.actor_id <> $1
UNION ALL
SELECT 'channels_joined', COUNT(*) FROM channel_members WHERE user_id = $1
`, userID)
	metrics.ObserveNetworkRequest("postgres", "reward_sources_count", "events", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[string]int, 4)
	for rows.Next() {
		var requirement string
		var count int
		if err := rows.Scan(&requirement, &count); err != nil {
			return nil, err
		}
		counts[requirement] = count
	}
	return counts, rows.Err()
}

// CreateChannel сохраняет канал.
func (p *Postgres) CreateChannel(ctx context.Context, title string) (domain.Channel, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var ch domain.Channel
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO channels (id, title)
VALUES ($1, $2)
RETURNING id, title, created_at
`, uuid.NewString(), title).Scan(&ch.ID, &ch.Title, &ch.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "channels_insert", "channels", start, err)
	return ch, err
}

// AddMember добавляет пользователя в канал; повтор — no-op.
func (p *Postgres) AddMember(ctx context.Context, channelID string, userID int64) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO channel_members (channel_id, user_id)
VALUES ($1, $2)
ON CONFLICT (channel_id, user_id) DO NOTHING
`, channelID, userID)
	metrics.ObserveNetworkRequest("postgres", "channel_members_insert", "channel_members", start, err)
	if isForeignKeyViolation(err) {
		return domain.ErrChannelNotFound
	}
	return err
}

// ListMembers возвращает идентификаторы участников канала.
func (p *Postgres) ListMembers(ctx context.Context, channelID string) ([]int64, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `SELECT user_id FROM channel_members WHERE channel_id = $1`, channelID)
	metrics.ObserveNetworkRequest("postgres", "channel_members_list", "channel_members", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var members []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		members = append(members, id)
	}
	return members, rows.Err()
}

// CreateMessage сохраняет сообщение-субъект.
func (p *Postgres) CreateMessage(ctx context.Context, channelID string, authorID int64) (domain.Message, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var m domain.Message
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO messages (id, channel_id, author_id)
VALUES ($1, $2, $3)
RETURNING id, channel_id, author_id, created_at
`, uuid.NewString(), channelID, authorID).Scan(&m.ID, &m.ChannelID, &m.AuthorID, &m.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "messages_insert", "messages", start, err)
	if isForeignKeyViolation(err) {
		return domain.Message{}, domain.ErrChannelNotFound
	}
	return m, err
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
