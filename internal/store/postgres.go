package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx" driver
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Postgres persists practice data through database/sql with the pgx driver.
type Postgres struct {
	db *sql.DB
}

// Open connects to PostgreSQL at connStr and applies pending migrations.
func Open(ctx context.Context, connStr string) (*Postgres, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("store open: %w", err)
	}
	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store ping: %w", err)
	}
	if err = migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("store migrate: %w", err)
	}
	return &Postgres{db: db}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrationFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, "migrations")
}

// Close closes the database.
func (p *Postgres) Close() error {
	return p.db.Close()
}

func (p *Postgres) ProfileByUser(ctx context.Context, userID string) (Profile, error) {
	var pr Profile
	err := p.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, native_language, target_language, level FROM profiles WHERE user_id = $1`,
		userID,
	).Scan(&pr.ID, &pr.UserID, &pr.Name, &pr.NativeLanguage, &pr.TargetLanguage, &pr.Level)
	if errors.Is(err, sql.ErrNoRows) {
		return Profile{}, ErrNotFound
	}
	return pr, err
}

func (p *Postgres) IsMember(ctx context.Context, organizationID, profileID string) (bool, error) {
	var ok bool
	err := p.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM memberships WHERE organization_id = $1 AND profile_id = $2)`,
		organizationID, profileID,
	).Scan(&ok)
	return ok, err
}

func (p *Postgres) OrganizationTier(ctx context.Context, organizationID string) (string, error) {
	var tier string
	err := p.db.QueryRowContext(ctx, `SELECT tier FROM organizations WHERE id = $1`, organizationID).Scan(&tier)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return tier, err
}

func (p *Postgres) LoadPractice(ctx context.Context, kind Kind, sessionID string) (Practice, error) {
	pr := Practice{Kind: kind, SessionID: sessionID}
	var objectives []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT organization_id, profile_id, title, scenario, character, objectives, voice
		 FROM practice_sessions WHERE kind = $1 AND id = $2`,
		string(kind), sessionID,
	).Scan(&pr.OrganizationID, &pr.ProfileID, &pr.Title, &pr.Scenario, &pr.Character, &objectives, &pr.Voice)
	if errors.Is(err, sql.ErrNoRows) {
		return Practice{}, ErrNotFound
	}
	if err != nil {
		return Practice{}, err
	}
	if len(objectives) > 0 {
		if err = json.Unmarshal(objectives, &pr.Objectives); err != nil {
			return Practice{}, fmt.Errorf("decode objectives: %w", err)
		}
	}
	return pr, nil
}

func (p *Postgres) CreateMessage(ctx context.Context, m Message) (Message, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	fb, err := encodeFeedback(m.Feedback)
	if err != nil {
		return Message{}, err
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO messages (id, kind, session_id, role, content, feedback, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, string(m.Kind), m.SessionID, string(m.Role), m.Content, fb, m.CreatedAt,
	)
	if err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}
	return m, nil
}

func (p *Postgres) ListMessages(ctx context.Context, kind Kind, sessionID string) ([]Message, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, role, content, feedback, created_at FROM messages
		 WHERE kind = $1 AND session_id = $2 ORDER BY created_at, id`,
		string(kind), sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		m := Message{Kind: kind, SessionID: sessionID}
		var role string
		var fb []byte
		if err = rows.Scan(&m.ID, &role, &m.Content, &fb, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Role = Role(role)
		if len(fb) > 0 {
			if err = json.Unmarshal(fb, &m.Feedback); err != nil {
				return nil, fmt.Errorf("decode feedback %s: %w", m.ID, err)
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// AttachFeedback sets a message's feedback. Roleplay messages keep the first
// result; lesson messages are overwritten.
func (p *Postgres) AttachFeedback(ctx context.Context, kind Kind, messageID string, fb Feedback) error {
	data, err := encodeFeedback(fb)
	if err != nil {
		return err
	}
	query := `UPDATE messages SET feedback = $1 WHERE id = $2 AND kind = $3`
	if kind == KindRoleplay {
		query += ` AND feedback IS NULL`
	}
	res, err := p.db.ExecContext(ctx, query, data, messageID, string(kind))
	if err != nil {
		return fmt.Errorf("update feedback: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	var exists bool
	err = p.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM messages WHERE id = $1 AND kind = $2)`,
		messageID, string(kind),
	).Scan(&exists)
	if err != nil {
		return err
	}
	if exists {
		return ErrFeedbackExists
	}
	return ErrNotFound
}

func (p *Postgres) SnapshotDuration(ctx context.Context, kind Kind, sessionID string, d DurationSnapshot) error {
	return p.writeDuration(ctx,
		`UPDATE practice_sessions
		 SET elapsed_seconds = $1, user_speaking_seconds = $2, assistant_speaking_seconds = $3
		 WHERE kind = $4 AND id = $5`,
		kind, sessionID, d)
}

func (p *Postgres) FinalizeDuration(ctx context.Context, kind Kind, sessionID string, d DurationSnapshot) error {
	return p.writeDuration(ctx,
		`UPDATE practice_sessions
		 SET elapsed_seconds = $1, user_speaking_seconds = $2, assistant_speaking_seconds = $3, ended_at = now()
		 WHERE kind = $4 AND id = $5`,
		kind, sessionID, d)
}

func (p *Postgres) writeDuration(ctx context.Context, query string, kind Kind, sessionID string, d DurationSnapshot) error {
	res, err := p.db.ExecContext(ctx, query, d.Elapsed, d.UserSpeaking, d.AssistantSpeaking, string(kind), sessionID)
	if err != nil {
		return fmt.Errorf("update duration: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertProfile inserts or replaces a profile row.
func (p *Postgres) UpsertProfile(ctx context.Context, pr Profile) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO profiles (id, user_id, name, native_language, target_language, level)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET user_id = EXCLUDED.user_id, name = EXCLUDED.name,
		   native_language = EXCLUDED.native_language, target_language = EXCLUDED.target_language,
		   level = EXCLUDED.level`,
		pr.ID, pr.UserID, pr.Name, pr.NativeLanguage, pr.TargetLanguage, pr.Level,
	)
	return err
}

func (p *Postgres) UpsertOrganization(ctx context.Context, o Organization) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO organizations (id, name, tier) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, tier = EXCLUDED.tier`,
		o.ID, o.Name, o.Tier,
	)
	return err
}

func (p *Postgres) AddMember(ctx context.Context, organizationID, profileID string) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO memberships (organization_id, profile_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		organizationID, profileID,
	)
	return err
}

func (p *Postgres) UpsertPractice(ctx context.Context, pr Practice) error {
	objectives, err := json.Marshal(pr.Objectives)
	if err != nil {
		return err
	}
	if pr.Objectives == nil {
		objectives = []byte("[]")
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO practice_sessions (kind, id, organization_id, profile_id, title, scenario, character, objectives, voice)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (kind, id) DO UPDATE SET organization_id = EXCLUDED.organization_id,
		   profile_id = EXCLUDED.profile_id, title = EXCLUDED.title, scenario = EXCLUDED.scenario,
		   character = EXCLUDED.character, objectives = EXCLUDED.objectives, voice = EXCLUDED.voice`,
		string(pr.Kind), pr.SessionID, pr.OrganizationID, pr.ProfileID, pr.Title, pr.Scenario, pr.Character,
		string(objectives), pr.Voice,
	)
	return err
}

func encodeFeedback(fb Feedback) (any, error) {
	if fb == nil {
		return nil, nil
	}
	data, err := json.Marshal(fb)
	if err != nil {
		return nil, fmt.Errorf("encode feedback: %w", err)
	}
	return string(data), nil
}
