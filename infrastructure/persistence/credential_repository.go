package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/larry311012/ai-news-hub-sub002/domain/model"
)

// AppCredentialRepository stores one OAuth app registration per platform.
type AppCredentialRepository struct {
	db      *sqlx.DB
	dialect Dialect
}

func NewAppCredentialRepository(db *sqlx.DB, dialect Dialect) *AppCredentialRepository {
	return &AppCredentialRepository{db: db, dialect: dialect}
}

const credentialColumns = `platform, oauth_version, client_id, client_secret, callback_url, scopes, updated_at, updated_by`

// credentialRow is the stored shape; scopes are a JSON array.
type credentialRow struct {
	Platform     string    `db:"platform"`
	OAuthVersion string    `db:"oauth_version"`
	ClientID     string    `db:"client_id"`
	ClientSecret string    `db:"client_secret"`
	CallbackURL  string    `db:"callback_url"`
	Scopes       string    `db:"scopes"`
	UpdatedAt    time.Time `db:"updated_at"`
	UpdatedBy    string    `db:"updated_by"`
}

func (row credentialRow) toModel() (*model.OAuthAppCredential, error) {
	c := &model.OAuthAppCredential{
		Platform:     model.Platform(row.Platform),
		OAuthVersion: model.OAuthVersion(row.OAuthVersion),
		ClientID:     row.ClientID,
		ClientSecret: row.ClientSecret,
		CallbackURL:  row.CallbackURL,
		UpdatedAt:    row.UpdatedAt.UTC(),
		UpdatedBy:    row.UpdatedBy,
	}
	if row.Scopes != "" {
		if err := json.Unmarshal([]byte(row.Scopes), &c.Scopes); err != nil {
			return nil, fmt.Errorf("decode scopes for %s: %w", row.Platform, err)
		}
	}
	return c, nil
}

func (r *AppCredentialRepository) Get(ctx context.Context, platform model.Platform) (*model.OAuthAppCredential, error) {
	var row credentialRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`SELECT `+credentialColumns+` FROM oauth_app_credentials WHERE platform = ?`), string(platform))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get app credential: %w", err)
	}
	return row.toModel()
}

func (r *AppCredentialRepository) Upsert(ctx context.Context, c *model.OAuthAppCredential) error {
	c.UpdatedAt = time.Now().UTC()
	scopes, err := json.Marshal(c.Scopes)
	if err != nil {
		return err
	}
	if c.Scopes == nil {
		scopes = []byte("[]")
	}
	if r.dialect == DialectMSSQL {
		return r.upsertMSSQL(ctx, c, string(scopes))
	}
	_, err = r.db.ExecContext(ctx, r.db.Rebind(`INSERT INTO oauth_app_credentials (`+credentialColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (platform) DO UPDATE SET
			oauth_version = EXCLUDED.oauth_version,
			client_id = EXCLUDED.client_id,
			client_secret = EXCLUDED.client_secret,
			callback_url = EXCLUDED.callback_url,
			scopes = EXCLUDED.scopes,
			updated_at = EXCLUDED.updated_at,
			updated_by = EXCLUDED.updated_by`),
		string(c.Platform), string(c.OAuthVersion), c.ClientID, c.ClientSecret, c.CallbackURL, string(scopes), c.UpdatedAt, c.UpdatedBy)
	if err != nil {
		return fmt.Errorf("upsert app credential: %w", err)
	}
	return nil
}

func (r *AppCredentialRepository) Delete(ctx context.Context, platform model.Platform) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM oauth_app_credentials WHERE platform = ?`), string(platform))
	if err != nil {
		return fmt.Errorf("delete app credential: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *AppCredentialRepository) List(ctx context.Context) ([]model.OAuthAppCredential, error) {
	var rows []credentialRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+credentialColumns+` FROM oauth_app_credentials ORDER BY platform`); err != nil {
		return nil, fmt.Errorf("list app credentials: %w", err)
	}
	out := make([]model.OAuthAppCredential, 0, len(rows))
	for _, row := range rows {
		c, err := row.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, nil
}
