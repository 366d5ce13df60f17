package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/Taichi-iskw/yt-rank/internal/errors"
	"github.com/Taichi-iskw/yt-rank/internal/model"
	"github.com/jackc/pgx/v5"
)

const channelColumns = `c.id, c.external_id, c.name, c.handle, c.profile_image, c.description, c.country,
	c.category_id, COALESCE(cat.name, ''),
	c.subscriber_count, c.view_count, c.video_count,
	c.weekly_subscriber_delta, c.weekly_subscriber_rate, c.weekly_view_delta, c.weekly_view_rate,
	c.monthly_subscriber_delta, c.monthly_subscriber_rate, c.monthly_view_delta, c.monthly_view_rate,
	c.engagement_rate, c.current_rank, c.rank_change,
	c.published_at, c.created_at, c.last_updated`

const channelFrom = ` FROM channels c LEFT JOIN categories cat ON cat.id = c.category_id`

const upsertChannelSQL = `INSERT INTO channels (
	external_id, name, handle, profile_image, description, country, category_id,
	subscriber_count, view_count, video_count,
	weekly_subscriber_delta, weekly_subscriber_rate, weekly_view_delta, weekly_view_rate,
	monthly_subscriber_delta, monthly_subscriber_rate, monthly_view_delta, monthly_view_rate,
	engagement_rate, published_at, last_updated
) VALUES (
	$1, $2, $3, $4, $5, $6, $7,
	$8, $9, $10,
	$11, $12, $13, $14,
	$15, $16, $17, $18,
	COALESCE($19::double precision, 0), $20, $21
)
ON CONFLICT (external_id) DO UPDATE SET
	name = EXCLUDED.name,
	handle = EXCLUDED.handle,
	profile_image = EXCLUDED.profile_image,
	description = EXCLUDED.description,
	country = EXCLUDED.country,
	category_id = COALESCE(EXCLUDED.category_id, channels.category_id),
	-- A hidden count keeps the last public one
	subscriber_count = CASE WHEN $22::boolean THEN channels.subscriber_count ELSE EXCLUDED.subscriber_count END,
	view_count = EXCLUDED.view_count,
	video_count = EXCLUDED.video_count,
	weekly_subscriber_delta = EXCLUDED.weekly_subscriber_delta,
	weekly_subscriber_rate = EXCLUDED.weekly_subscriber_rate,
	weekly_view_delta = EXCLUDED.weekly_view_delta,
	weekly_view_rate = EXCLUDED.weekly_view_rate,
	monthly_subscriber_delta = EXCLUDED.monthly_subscriber_delta,
	monthly_subscriber_rate = EXCLUDED.monthly_subscriber_rate,
	monthly_view_delta = EXCLUDED.monthly_view_delta,
	monthly_view_rate = EXCLUDED.monthly_view_rate,
	engagement_rate = COALESCE($19::double precision, channels.engagement_rate),
	published_at = COALESCE(EXCLUDED.published_at, channels.published_at),
	last_updated = EXCLUDED.last_updated
RETURNING id, subscriber_count, created_at, engagement_rate, current_rank, rank_change, (xmax = 0) AS inserted`

// A same-day re-run only replaces the snapshot with a newer observation
const upsertSnapshotSQL = `INSERT INTO channel_snapshots (channel_id, subscriber_count, view_count, observed_at, observed_on)
VALUES ($1, $2, $3, $4, ($4::timestamptz AT TIME ZONE 'UTC')::date)
ON CONFLICT (channel_id, observed_on) DO UPDATE SET
	subscriber_count = EXCLUDED.subscriber_count,
	view_count = EXCLUDED.view_count,
	observed_at = EXCLUDED.observed_at
WHERE channel_snapshots.observed_at <= EXCLUDED.observed_at`

// sortableColumns whitelists the columns Query may order by
var sortableColumns = map[string]bool{
	"subscriber_count":         true,
	"view_count":               true,
	"weekly_subscriber_delta":  true,
	"weekly_view_delta":        true,
	"monthly_subscriber_delta": true,
	"monthly_view_delta":       true,
	"weekly_subscriber_rate":   true,
	"monthly_subscriber_rate":  true,
	"engagement_rate":          true,
}

// channelRepository implements ChannelRepository using PostgreSQL
type channelRepository struct {
	pool Pool
}

// NewChannelRepository creates a new instance of ChannelRepository
func NewChannelRepository(pool Pool) ChannelRepository {
	return &channelRepository{
		pool: pool,
	}
}

// Upsert writes the channel row and its daily snapshot in one transaction
func (r *channelRepository) Upsert(ctx context.Context, in *model.ChannelUpsert) (*model.Channel, bool, error) {
	if in == nil || in.Stats == nil || in.Stats.ExternalID == "" {
		return nil, false, apperrors.New(apperrors.CodeInvalidArg, "channel upsert requires an external ID")
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, false, handlePostgreSQLError(err, "failed to begin channel upsert")
	}
	defer tx.Rollback(ctx)

	s := in.Stats
	ch := &model.Channel{
		ExternalID:             s.ExternalID,
		Name:                   s.Name,
		Handle:                 s.Handle,
		ProfileImage:           s.ProfileImage,
		Description:            s.Description,
		Country:                s.Country,
		CategoryID:             in.CategoryID,
		Category:               model.CategoryName(s.Category),
		SubscriberCount:        s.SubscriberCount,
		ViewCount:              s.ViewCount,
		VideoCount:             s.VideoCount,
		WeeklySubscriberDelta:  in.Weekly.SubscriberDelta,
		WeeklySubscriberRate:   in.Weekly.SubscriberRate,
		WeeklyViewDelta:        in.Weekly.ViewDelta,
		WeeklyViewRate:         in.Weekly.ViewRate,
		MonthlySubscriberDelta: in.Monthly.SubscriberDelta,
		MonthlySubscriberRate:  in.Monthly.SubscriberRate,
		MonthlyViewDelta:       in.Monthly.ViewDelta,
		MonthlyViewRate:        in.Monthly.ViewRate,
		PublishedAt:            s.CreatedAt,
	}
	observedAt := in.ObservedAt.UTC()
	ch.LastUpdated = &observedAt

	var inserted bool
	err = tx.QueryRow(ctx, upsertChannelSQL,
		ch.ExternalID, ch.Name, ch.Handle, ch.ProfileImage, ch.Description, ch.Country, ch.CategoryID,
		ch.SubscriberCount, ch.ViewCount, ch.VideoCount,
		ch.WeeklySubscriberDelta, ch.WeeklySubscriberRate, ch.WeeklyViewDelta, ch.WeeklyViewRate,
		ch.MonthlySubscriberDelta, ch.MonthlySubscriberRate, ch.MonthlyViewDelta, ch.MonthlyViewRate,
		in.EngagementRate, ch.PublishedAt, observedAt, s.SubscribersHidden,
	).Scan(&ch.ID, &ch.SubscriberCount, &ch.CreatedAt, &ch.EngagementRate, &ch.Rank, &ch.RankChange, &inserted)
	if err != nil {
		return nil, false, handlePostgreSQLError(err, "failed to upsert channel")
	}

	_, err = tx.Exec(ctx, upsertSnapshotSQL, ch.ID, ch.SubscriberCount, ch.ViewCount, observedAt)
	if err != nil {
		return nil, false, handlePostgreSQLError(err, "failed to record channel snapshot")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, handlePostgreSQLError(err, "failed to commit channel upsert")
	}

	return ch, inserted, nil
}

// FindByID retrieves a channel by its internal ID
func (r *channelRepository) FindByID(ctx context.Context, id int64) (*model.Channel, error) {
	sql := "SELECT " + channelColumns + channelFrom + " WHERE c.id = $1"
	return r.findOne(ctx, sql, id)
}

// FindByExternalID retrieves a channel by its YouTube channel ID
func (r *channelRepository) FindByExternalID(ctx context.Context, externalID string) (*model.Channel, error) {
	sql := "SELECT " + channelColumns + channelFrom + " WHERE c.external_id = $1"
	return r.findOne(ctx, sql, externalID)
}

func (r *channelRepository) findOne(ctx context.Context, sql string, arg any) (*model.Channel, error) {
	ch, err := scanChannel(r.pool.QueryRow(ctx, sql, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.Wrap(err, apperrors.CodeNotFound, "channel not found")
		}
		return nil, handlePostgreSQLError(err, "failed to get channel")
	}
	return ch, nil
}

// Query returns one page of channels matching every set filter
func (r *channelRepository) Query(ctx context.Context, q model.ChannelQuery) ([]*model.Channel, int, error) {
	column := q.SortColumn
	if column == "" {
		column = "subscriber_count"
	}
	if !sortableColumns[column] {
		return nil, 0, apperrors.New(apperrors.CodeInvalidArg, "unsupported sort column: "+column)
	}

	where, args, err := buildChannelFilter(q.Filter)
	if err != nil {
		return nil, 0, err
	}

	limitArg := len(args) + 1
	sql := fmt.Sprintf("SELECT %s, COUNT(*) OVER() AS total%s%s ORDER BY c.%s DESC, c.id ASC LIMIT $%d OFFSET $%d",
		channelColumns, channelFrom, where, column, limitArg, limitArg+1)

	rows, err := r.pool.Query(ctx, sql, append(args, q.Limit, q.Offset)...)
	if err != nil {
		return nil, 0, handlePostgreSQLError(err, "failed to query channels")
	}
	defer rows.Close()

	channels := []*model.Channel{}
	total := 0
	for rows.Next() {
		var rowTotal int64
		ch, err := scanChannel(rows, &rowTotal)
		if err != nil {
			return nil, 0, handlePostgreSQLError(err, "failed to scan channel row")
		}
		total = int(rowTotal)
		channels = append(channels, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, handlePostgreSQLError(err, "failed to iterate channel rows")
	}

	// A page past the end carries no window total
	if len(channels) == 0 && q.Offset > 0 {
		countSQL := "SELECT COUNT(*)" + channelFrom + where
		var count int64
		if err := r.pool.QueryRow(ctx, countSQL, args...).Scan(&count); err != nil {
			return nil, 0, handlePostgreSQLError(err, "failed to count channels")
		}
		total = int(count)
	}

	return channels, total, nil
}

func buildChannelFilter(f model.ChannelFilter) (string, []any, error) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.Category != nil {
		add("cat.name = $%d", *f.Category)
	}
	if f.Country != nil {
		add("c.country = $%d", strings.ToUpper(*f.Country))
	}
	if f.MinSubscribers != nil {
		add("c.subscriber_count >= $%d", *f.MinSubscribers)
	}
	if f.MaxSubscribers != nil {
		add("c.subscriber_count <= $%d", *f.MaxSubscribers)
	}
	if f.MinGrowthRate != nil {
		column := f.GrowthColumn
		if column == "" {
			column = "weekly_subscriber_rate"
		}
		if column != "weekly_subscriber_rate" && column != "monthly_subscriber_rate" {
			return "", nil, apperrors.New(apperrors.CodeInvalidArg, "unsupported growth column: "+column)
		}
		add("c."+column+" >= $%d", *f.MinGrowthRate)
	}

	if len(conds) == 0 {
		return "", nil, nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

// GroupBy counts channels per category or country, largest group first
func (r *channelRepository) GroupBy(ctx context.Context, dimension string) ([]model.GroupCount, error) {
	var key string
	switch dimension {
	case GroupByCategory:
		key = "COALESCE(cat.name, '" + model.DefaultCategory + "')"
	case GroupByCountry:
		key = "COALESCE(NULLIF(c.country, ''), 'unknown')"
	default:
		return nil, apperrors.New(apperrors.CodeInvalidArg, "unsupported grouping dimension: "+dimension)
	}

	sql := "SELECT " + key + " AS key, COUNT(*)" + channelFrom + " GROUP BY 1 ORDER BY 2 DESC, 1 ASC"
	rows, err := r.pool.Query(ctx, sql)
	if err != nil {
		return nil, handlePostgreSQLError(err, "failed to group channels")
	}
	defer rows.Close()

	groups := []model.GroupCount{}
	for rows.Next() {
		var g model.GroupCount
		if err := rows.Scan(&g.Key, &g.Count); err != nil {
			return nil, handlePostgreSQLError(err, "failed to scan group row")
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, handlePostgreSQLError(err, "failed to iterate group rows")
	}

	return groups, nil
}

// FindStale returns external IDs whose last refresh is missing or fell on or
// before the UTC day of before
func (r *channelRepository) FindStale(ctx context.Context, before time.Time, limit int) ([]string, error) {
	// Same granularity as the daily snapshots: any refresh on that day counts
	cutoff := utcDay(before).Add(24 * time.Hour)

	sql := `SELECT external_id FROM channels
	WHERE last_updated IS NULL OR last_updated < $1
	ORDER BY last_updated ASC NULLS FIRST, id ASC
	LIMIT $2`
	rows, err := r.pool.Query(ctx, sql, cutoff, limit)
	if err != nil {
		return nil, handlePostgreSQLError(err, "failed to find stale channels")
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, handlePostgreSQLError(err, "failed to scan channel ID")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, handlePostgreSQLError(err, "failed to iterate stale channels")
	}

	return ids, nil
}

// Search matches term anywhere in name or handle
func (r *channelRepository) Search(ctx context.Context, term string, limit int) ([]*model.Channel, error) {
	sql := "SELECT " + channelColumns + channelFrom +
		` WHERE c.name ILIKE $1 ESCAPE '\' OR c.handle ILIKE $1 ESCAPE '\'` +
		" ORDER BY c.subscriber_count DESC, c.id ASC LIMIT $2"
	return r.list(ctx, "failed to search channels", sql, "%"+escapeLike(term)+"%", limit)
}

// ListByWeeklyRate returns trend candidates on one side of threshold
func (r *channelRepository) ListByWeeklyRate(ctx context.Context, above bool, threshold float64, limit int) ([]*model.Channel, error) {
	cond, order := "c.weekly_subscriber_rate > $1", "DESC"
	if !above {
		cond, order = "c.weekly_subscriber_rate < $1", "ASC"
	}
	sql := "SELECT " + channelColumns + channelFrom + " WHERE " + cond +
		" ORDER BY c.weekly_subscriber_rate " + order + ", c.id ASC LIMIT $2"
	return r.list(ctx, "failed to list trending channels", sql, threshold, limit)
}

// ListNewest returns channels by creation time, newest first
func (r *channelRepository) ListNewest(ctx context.Context, limit int) ([]*model.Channel, error) {
	sql := "SELECT " + channelColumns + channelFrom + " ORDER BY c.created_at DESC, c.id DESC LIMIT $1"
	return r.list(ctx, "failed to list newest channels", sql, limit)
}

func (r *channelRepository) list(ctx context.Context, operation, sql string, args ...any) ([]*model.Channel, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, handlePostgreSQLError(err, operation)
	}
	defer rows.Close()

	channels := []*model.Channel{}
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, handlePostgreSQLError(err, "failed to scan channel row")
		}
		channels = append(channels, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, handlePostgreSQLError(err, "failed to iterate channel rows")
	}

	return channels, nil
}

// BaselineSnapshots looks up every requested channel's baseline in one query
func (r *channelRepository) BaselineSnapshots(ctx context.Context, externalIDs []string, before time.Time) (map[string]*model.Snapshot, error) {
	baselines := make(map[string]*model.Snapshot, len(externalIDs))
	if len(externalIDs) == 0 {
		return baselines, nil
	}

	sql := `SELECT DISTINCT ON (s.channel_id) c.external_id, s.channel_id, s.subscriber_count, s.view_count, s.observed_at, s.rank
	FROM channel_snapshots s
	JOIN channels c ON c.id = s.channel_id
	WHERE c.external_id = ANY($1) AND s.observed_on <= $2::date
	ORDER BY s.channel_id, s.observed_on DESC`
	rows, err := r.pool.Query(ctx, sql, externalIDs, utcDay(before))
	if err != nil {
		return nil, handlePostgreSQLError(err, "failed to load baseline snapshots")
	}
	defer rows.Close()

	for rows.Next() {
		var externalID string
		var s model.Snapshot
		if err := rows.Scan(&externalID, &s.ChannelID, &s.SubscriberCount, &s.ViewCount, &s.ObservedAt, &s.Rank); err != nil {
			return nil, handlePostgreSQLError(err, "failed to scan snapshot row")
		}
		baselines[externalID] = &s
	}
	if err := rows.Err(); err != nil {
		return nil, handlePostgreSQLError(err, "failed to iterate snapshot rows")
	}

	return baselines, nil
}

// RankInputs loads the fields rank computation reads, in insertion order. Rank
// is taken from the latest snapshot on or before the UTC day of baseline.
func (r *channelRepository) RankInputs(ctx context.Context, baseline time.Time) ([]*model.Channel, error) {
	sql := `SELECT c.id, c.external_id, c.subscriber_count, COALESCE(b.rank, 0)
	FROM channels c
	LEFT JOIN LATERAL (
		SELECT s.rank FROM channel_snapshots s
		WHERE s.channel_id = c.id AND s.observed_on <= $1::date
		ORDER BY s.observed_on DESC
		LIMIT 1
	) b ON true
	ORDER BY c.id ASC`
	rows, err := r.pool.Query(ctx, sql, utcDay(baseline))
	if err != nil {
		return nil, handlePostgreSQLError(err, "failed to load rank inputs")
	}
	defer rows.Close()

	channels := []*model.Channel{}
	for rows.Next() {
		var ch model.Channel
		if err := rows.Scan(&ch.ID, &ch.ExternalID, &ch.SubscriberCount, &ch.Rank); err != nil {
			return nil, handlePostgreSQLError(err, "failed to scan rank input")
		}
		channels = append(channels, &ch)
	}
	if err := rows.Err(); err != nil {
		return nil, handlePostgreSQLError(err, "failed to iterate rank inputs")
	}

	return channels, nil
}

// UpdateRanks writes all ranks with a single unnest-driven statement. The rank
// is also recorded on snapshots observed on or after the UTC day of since.
func (r *channelRepository) UpdateRanks(ctx context.Context, updates []model.RankUpdate, since time.Time) error {
	if len(updates) == 0 {
		return nil
	}

	ids := make([]int64, len(updates))
	ranks := make([]int32, len(updates))
	changes := make([]int32, len(updates))
	for i, u := range updates {
		ids[i] = u.ChannelID
		ranks[i] = int32(u.Rank)
		changes[i] = int32(u.RankChange)
	}

	sql := `WITH u AS (
		SELECT * FROM unnest($1::bigint[], $2::int[], $3::int[]) AS u(id, rank, rank_change)
	), ranked AS (
		UPDATE channels AS c SET current_rank = u.rank, rank_change = u.rank_change
		FROM u WHERE c.id = u.id
	)
	UPDATE channel_snapshots AS s SET rank = u.rank
	FROM u WHERE s.channel_id = u.id AND s.observed_on >= $4::date`
	if _, err := r.pool.Exec(ctx, sql, ids, ranks, changes, utcDay(since)); err != nil {
		return handlePostgreSQLError(err, "failed to update channel ranks")
	}
	return nil
}

// PruneSnapshots keeps the newest pre-cutoff snapshot of each channel so weekly
// and monthly baselines survive
func (r *channelRepository) PruneSnapshots(ctx context.Context, before time.Time) (int64, error) {
	sql := `DELETE FROM channel_snapshots s
	WHERE s.observed_at < $1
	AND s.id <> (
		SELECT k.id FROM channel_snapshots k
		WHERE k.channel_id = s.channel_id AND k.observed_at < $1
		ORDER BY k.observed_at DESC
		LIMIT 1
	)`
	tag, err := r.pool.Exec(ctx, sql, before)
	if err != nil {
		return 0, handlePostgreSQLError(err, "failed to prune snapshots")
	}
	return tag.RowsAffected(), nil
}

// scanChannel reads channelColumns followed by any extra destinations
func scanChannel(row pgx.Row, extra ...any) (*model.Channel, error) {
	var ch model.Channel
	dest := []any{
		&ch.ID, &ch.ExternalID, &ch.Name, &ch.Handle, &ch.ProfileImage, &ch.Description, &ch.Country,
		&ch.CategoryID, &ch.Category,
		&ch.SubscriberCount, &ch.ViewCount, &ch.VideoCount,
		&ch.WeeklySubscriberDelta, &ch.WeeklySubscriberRate, &ch.WeeklyViewDelta, &ch.WeeklyViewRate,
		&ch.MonthlySubscriberDelta, &ch.MonthlySubscriberRate, &ch.MonthlyViewDelta, &ch.MonthlyViewRate,
		&ch.EngagementRate, &ch.Rank, &ch.RankChange,
		&ch.PublishedAt, &ch.CreatedAt, &ch.LastUpdated,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &ch, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(term string) string {
	return likeEscaper.Replace(term)
}

// utcDay truncates t to the start of its UTC calendar day
func utcDay(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}
