package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"

	"github.com/strykerhq/engagement/internal/engagement"
)

const postNamespace = "-post"

// sqlite extended result code for a UNIQUE constraint violation.
const codeConstraintUnique = 2067

var postColumns = []string{
	"id", "source", "source_id", "title", "text", "url", "media", "author",
	"likes", "shares", "views", "published_at", "fetched_at",
}

// postRow is how a post is laid out in the table. Timestamps are unix
// nanoseconds, media and author are JSON documents.
type postRow struct {
	ID          string         `db:"id"`
	Source      string         `db:"source"`
	SourceID    string         `db:"source_id"`
	Title       sql.NullString `db:"title"`
	Text        sql.NullString `db:"text"`
	URL         string         `db:"url"`
	Media       string         `db:"media"`
	Author      string         `db:"author"`
	Likes       int64          `db:"likes"`
	Shares      int64          `db:"shares"`
	Views       sql.NullInt64  `db:"views"`
	PublishedAt int64          `db:"published_at"`
	FetchedAt   int64          `db:"fetched_at"`
}

func toRow(p engagement.Post) (postRow, error) {
	media := p.Media
	if media == nil {
		media = []engagement.Media{}
	}
	mediaJSON, err := json.Marshal(media)
	if err != nil {
		return postRow{}, fmt.Errorf("error encoding media: %w", err)
	}
	authorJSON, err := json.Marshal(p.Author)
	if err != nil {
		return postRow{}, fmt.Errorf("error encoding author: %w", err)
	}

	row := postRow{
		ID:          p.ID,
		Source:      string(p.Source),
		SourceID:    p.SourceID,
		URL:         p.URL,
		Media:       string(mediaJSON),
		Author:      string(authorJSON),
		Likes:       p.Metrics.Likes,
		Shares:      p.Metrics.Shares,
		PublishedAt: p.PublishedAt.UnixNano(),
		FetchedAt:   p.FetchedAt.UnixNano(),
	}
	if p.Title != nil {
		row.Title = sql.NullString{String: *p.Title, Valid: true}
	}
	if p.Text != nil {
		row.Text = sql.NullString{String: *p.Text, Valid: true}
	}
	if p.Metrics.Views != nil {
		row.Views = sql.NullInt64{Int64: *p.Metrics.Views, Valid: true}
	}

	return row, nil
}

func (row postRow) toPost() (engagement.Post, error) {
	p := engagement.Post{
		ID:       row.ID,
		Source:   engagement.Source(row.Source),
		SourceID: row.SourceID,
		URL:      row.URL,
		Metrics: engagement.Metrics{
			Likes:  row.Likes,
			Shares: row.Shares,
		},
		PublishedAt: time.Unix(0, row.PublishedAt).UTC(),
		FetchedAt:   time.Unix(0, row.FetchedAt).UTC(),
	}
	if row.Title.Valid {
		p.Title = &row.Title.String
	}
	if row.Text.Valid {
		p.Text = &row.Text.String
	}
	if row.Views.Valid {
		p.Metrics.Views = &row.Views.Int64
	}
	if err := json.Unmarshal([]byte(row.Media), &p.Media); err != nil {
		return engagement.Post{}, fmt.Errorf("error decoding media of post %s: %w", row.ID, err)
	}
	if err := json.Unmarshal([]byte(row.Author), &p.Author); err != nil {
		return engagement.Post{}, fmt.Errorf("error decoding author of post %s: %w", row.ID, err)
	}

	return p, nil
}

// Query pages backwards through the posts. A cursor with an id also admits
// rows sharing its timestamp but sorting after it.
func (r Repo) Query(ctx context.Context, args engagement.QueryArgs) ([]engagement.Post, error) {
	b := sq.Select(postColumns...).
		From("engagement_posts").
		OrderBy("published_at DESC", "id DESC")
	if args.Source != "" {
		b = b.Where(sq.Eq{"source": string(args.Source)})
	}
	if c := args.Before; c != nil {
		ts := c.PublishedAt.UnixNano()
		if c.ID == "" {
			b = b.Where(sq.Lt{"published_at": ts})
		} else {
			b = b.Where(sq.Or{
				sq.Lt{"published_at": ts},
				sq.And{sq.Eq{"published_at": ts}, sq.Lt{"id": c.ID}},
			})
		}
	}
	if args.Limit > 0 {
		b = b.Limit(uint64(args.Limit))
	}

	query, qargs, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("error constructing sql: %w", err)
	}

	var rows []postRow
	if err := r.db.SelectContext(ctx, &rows, query, qargs...); err != nil {
		return nil, fmt.Errorf("error selecting posts: %w", err)
	}

	posts := make([]engagement.Post, 0, len(rows))
	for _, row := range rows {
		p, err := row.toPost()
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}

	return posts, nil
}

// postTx carries the writes of a single transaction.
type postTx struct {
	tx *sqlx.Tx
}

func (t postTx) FindByKey(ctx context.Context, key engagement.Key) (engagement.Post, error) {
	query, args, err := sq.Select(postColumns...).
		From("engagement_posts").
		Where(sq.Eq{"source": string(key.Source), "source_id": key.SourceID}).
		ToSql()
	if err != nil {
		return engagement.Post{}, fmt.Errorf("error constructing sql: %w", err)
	}

	var row postRow
	err = t.tx.GetContext(ctx, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return engagement.Post{}, engagement.ErrNotFound
	}
	if err != nil {
		return engagement.Post{}, fmt.Errorf("error fetching post: %w", err)
	}

	return row.toPost()
}

const insertPost = `INSERT INTO engagement_posts
	(id, source, source_id, title, text, url, media, author, likes, shares, views, published_at, fetched_at)
	VALUES
	(:id, :source, :source_id, :title, :text, :url, :media, :author, :likes, :shares, :views, :published_at, :fetched_at)`

// Insert stores a new post and fills in its id.
func (t postTx) Insert(ctx context.Context, p *engagement.Post) error {
	p.ID = fmt.Sprintf("%s%s", uuid.NewString(), postNamespace)
	row, err := toRow(*p)
	if err != nil {
		return err
	}

	_, err = t.tx.NamedExecContext(ctx, insertPost, row)
	if sqliteErr := (&sqlite.Error{}); errors.As(err, &sqliteErr) && sqliteErr.Code() == codeConstraintUnique {
		return fmt.Errorf("post %s/%s already exists: %w", p.Source, p.SourceID, engagement.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("error inserting post: %w", err)
	}

	return nil
}

func (t postTx) UpdateMetrics(ctx context.Context, id string, m engagement.Metrics, fetchedAt time.Time) error {
	const q = `UPDATE engagement_posts SET likes = ?, shares = ?, views = ?, fetched_at = ? WHERE id = ?;`

	var views sql.NullInt64
	if m.Views != nil {
		views = sql.NullInt64{Int64: *m.Views, Valid: true}
	}
	res, err := t.tx.ExecContext(ctx, q, m.Likes, m.Shares, views, fetchedAt.UnixNano(), id)
	if err != nil {
		return fmt.Errorf("error updating post metrics: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return engagement.ErrNotFound
	}

	return nil
}

// Only the metrics and the observation time move once a row exists.
const upsertPost = insertPost + `
	ON CONFLICT (source, source_id) DO UPDATE SET
		likes = excluded.likes,
		shares = excluded.shares,
		views = excluded.views,
		fetched_at = excluded.fetched_at
	RETURNING id;`

func (t postTx) Upsert(ctx context.Context, p engagement.Post) (engagement.UpsertResult, error) {
	p.ID = fmt.Sprintf("%s%s", uuid.NewString(), postNamespace)
	row, err := toRow(p)
	if err != nil {
		return engagement.UpsertResult{}, err
	}

	query, args, err := sqlx.Named(upsertPost, row)
	if err != nil {
		return engagement.UpsertResult{}, fmt.Errorf("error binding upsert: %w", err)
	}

	var id string
	if err := t.tx.GetContext(ctx, &id, t.tx.Rebind(query), args...); err != nil {
		return engagement.UpsertResult{}, fmt.Errorf("error upserting post: %w", err)
	}

	return engagement.UpsertResult{ID: id, Inserted: id == p.ID}, nil
}
