package track

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Store is the durable registration store: StreamWatch records keyed by
// (tenant, entity id) plus per-tenant delivery configuration. A Put that
// returns nil must survive process restart.
type Store interface {
	Get(ctx context.Context, tenant, entityID string) (*StreamWatch, error)
	GetByLogin(ctx context.Context, tenant, login string) (*StreamWatch, error)
	Put(ctx context.Context, w *StreamWatch) error
	Delete(ctx context.Context, tenant, entityID string) error
	ListAll(ctx context.Context, tenant string) ([]StreamWatch, error)

	// SetAnnounceText updates only the announce override, atomically, so the
	// command surface cannot clobber an in-flight poll's write of the other
	// fields.
	SetAnnounceText(ctx context.Context, tenant, entityID, text string) error

	Tenants(ctx context.Context) ([]TenantConfig, error)
	GetTenant(ctx context.Context, tenant string) (*TenantConfig, error)
	PutTenant(ctx context.Context, tc *TenantConfig) error
}

// PostgresStore persists StreamWatch records in the stream_watches table.
// Put is a single-statement upsert, so command-surface writes and poller
// writes for the same key cannot interleave halfway.
type PostgresStore struct {
	DB *sql.DB
}

const watchColumns = `tenant, entity_id, login, display_name, is_live, session_id,
	game_id, game_name, title, session_started_at, thumbnail_url, last_viewer_count,
	notify_channel_id, notify_message_id,
	peak_viewers, total_viewers, sample_count, announce_text, created_at, updated_at`

func (s *PostgresStore) Get(ctx context.Context, tenant, entityID string) (*StreamWatch, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+watchColumns+` FROM stream_watches WHERE tenant=$1 AND entity_id=$2`,
		tenant, entityID)
	return scanWatch(row)
}

func (s *PostgresStore) GetByLogin(ctx context.Context, tenant, login string) (*StreamWatch, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+watchColumns+` FROM stream_watches WHERE tenant=$1 AND LOWER(login)=LOWER($2)`,
		tenant, login)
	return scanWatch(row)
}

func (s *PostgresStore) Put(ctx context.Context, w *StreamWatch) error {
	var started sql.NullTime
	if !w.SessionStartedAt.IsZero() {
		started = sql.NullTime{Time: w.SessionStartedAt.UTC(), Valid: true}
	}
	notifyChannel, notifyMessage := "", ""
	if w.Notification != nil {
		notifyChannel, notifyMessage = w.Notification.ChannelID, w.Notification.MessageID
	}
	_, err := s.DB.ExecContext(ctx, `INSERT INTO stream_watches (`+watchColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,NOW(),NOW())
		ON CONFLICT (tenant, entity_id) DO UPDATE SET
			login=EXCLUDED.login, display_name=EXCLUDED.display_name,
			is_live=EXCLUDED.is_live, session_id=EXCLUDED.session_id,
			game_id=EXCLUDED.game_id, game_name=EXCLUDED.game_name,
			title=EXCLUDED.title, session_started_at=EXCLUDED.session_started_at,
			thumbnail_url=EXCLUDED.thumbnail_url,
			last_viewer_count=EXCLUDED.last_viewer_count,
			notify_channel_id=EXCLUDED.notify_channel_id,
			notify_message_id=EXCLUDED.notify_message_id,
			peak_viewers=EXCLUDED.peak_viewers, total_viewers=EXCLUDED.total_viewers,
			sample_count=EXCLUDED.sample_count, announce_text=EXCLUDED.announce_text,
			updated_at=NOW()`,
		w.Tenant, w.EntityID, w.Login, w.DisplayName, w.IsLive, w.SessionID,
		w.GameID, w.GameName, w.Title, started, w.ThumbnailURL, w.LastViewerCount,
		notifyChannel, notifyMessage,
		w.Stats.PeakViewers, w.Stats.TotalViewers, w.Stats.SampleCount, w.AnnounceText)
	if err != nil {
		return fmt.Errorf("put stream watch %s/%s: %w", w.Tenant, w.EntityID, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, tenant, entityID string) error {
	res, err := s.DB.ExecContext(ctx,
		`DELETE FROM stream_watches WHERE tenant=$1 AND entity_id=$2`, tenant, entityID)
	if err != nil {
		return fmt.Errorf("delete stream watch %s/%s: %w", tenant, entityID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SetAnnounceText(ctx context.Context, tenant, entityID, text string) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE stream_watches SET announce_text=$1, updated_at=NOW() WHERE tenant=$2 AND entity_id=$3`,
		text, tenant, entityID)
	if err != nil {
		return fmt.Errorf("set announce text %s/%s: %w", tenant, entityID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListAll(ctx context.Context, tenant string) ([]StreamWatch, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+watchColumns+` FROM stream_watches WHERE tenant=$1 ORDER BY login`, tenant)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StreamWatch
	for rows.Next() {
		w, err := scanWatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Tenants(ctx context.Context) ([]TenantConfig, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT tenant, live_channel_id, clips_channel_id, chat_announce_login
		 FROM tenant_config ORDER BY tenant`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TenantConfig
	for rows.Next() {
		var tc TenantConfig
		if err := rows.Scan(&tc.Tenant, &tc.LiveChannelID, &tc.ClipsChannelID, &tc.ChatAnnounceLogin); err != nil {
			return nil, err
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetTenant(ctx context.Context, tenant string) (*TenantConfig, error) {
	var tc TenantConfig
	err := s.DB.QueryRowContext(ctx,
		`SELECT tenant, live_channel_id, clips_channel_id, chat_announce_login
		 FROM tenant_config WHERE tenant=$1`, tenant).
		Scan(&tc.Tenant, &tc.LiveChannelID, &tc.ClipsChannelID, &tc.ChatAnnounceLogin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tc, nil
}

func (s *PostgresStore) PutTenant(ctx context.Context, tc *TenantConfig) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO tenant_config (tenant, live_channel_id, clips_channel_id, chat_announce_login, updated_at)
		 VALUES ($1,$2,$3,$4,NOW())
		 ON CONFLICT (tenant) DO UPDATE SET
			live_channel_id=EXCLUDED.live_channel_id,
			clips_channel_id=EXCLUDED.clips_channel_id,
			chat_announce_login=EXCLUDED.chat_announce_login,
			updated_at=NOW()`,
		tc.Tenant, tc.LiveChannelID, tc.ClipsChannelID, tc.ChatAnnounceLogin)
	if err != nil {
		return fmt.Errorf("put tenant config %s: %w", tc.Tenant, err)
	}
	return nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanWatch(row rowScanner) (*StreamWatch, error) {
	var w StreamWatch
	var started sql.NullTime
	var updated sql.NullTime
	var notifyChannel, notifyMessage string
	err := row.Scan(&w.Tenant, &w.EntityID, &w.Login, &w.DisplayName, &w.IsLive, &w.SessionID,
		&w.GameID, &w.GameName, &w.Title, &started, &w.ThumbnailURL, &w.LastViewerCount,
		&notifyChannel, &notifyMessage,
		&w.Stats.PeakViewers, &w.Stats.TotalViewers, &w.Stats.SampleCount,
		&w.AnnounceText, &w.CreatedAt, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if started.Valid {
		w.SessionStartedAt = started.Time.UTC()
	}
	if updated.Valid {
		w.UpdatedAt = updated.Time.UTC()
	}
	if notifyChannel != "" && notifyMessage != "" {
		w.Notification = &MessageRef{ChannelID: notifyChannel, MessageID: notifyMessage}
	}
	return &w, nil
}
