package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Ulo03/playbacc/models"
)

func (db *DB) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.Role == "" {
		user.Role = "user"
	}

	return db.QueryRow(ctx, `
	INSERT INTO users (id, email, username, role)
	VALUES ($1, $2, $3, $4)
	RETURNING created_at`,
		user.ID, user.Email, user.Username, user.Role).Scan(&user.CreatedAt)
}

func (db *DB) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user := &models.User{}

	err := db.QueryRow(ctx, `
	SELECT id, email, username, role, created_at
	FROM users WHERE id = $1`, id).Scan(
		&user.ID, &user.Email, &user.Username, &user.Role, &user.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return user, nil
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user := &models.User{}

	err := db.QueryRow(ctx, `
	SELECT id, email, username, role, created_at
	FROM users WHERE email = $1`, email).Scan(
		&user.ID, &user.Email, &user.Username, &user.Role, &user.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return user, nil
}

const accountColumns = `id, user_id, provider, access_token, refresh_token, expires_at, scope, external_id, created_at, updated_at`

func scanAccount(row pgx.Row) (*models.Account, error) {
	a := &models.Account{}
	err := row.Scan(
		&a.ID, &a.UserID, &a.Provider, &a.AccessToken, &a.RefreshToken,
		&a.ExpiresAt, &a.Scope, &a.ExternalID, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// UpsertAccount links a provider account to a user, replacing tokens when the
// (user, provider) row already exists.
func (db *DB) UpsertAccount(ctx context.Context, account *models.Account) error {
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}

	return db.QueryRow(ctx, `
	INSERT INTO accounts (id, user_id, provider, access_token, refresh_token, expires_at, scope, external_id)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (user_id, provider) DO UPDATE SET
		access_token = EXCLUDED.access_token,
		refresh_token = EXCLUDED.refresh_token,
		expires_at = EXCLUDED.expires_at,
		scope = EXCLUDED.scope,
		external_id = EXCLUDED.external_id,
		updated_at = now()
	RETURNING id, created_at, updated_at`,
		account.ID, account.UserID, account.Provider, account.AccessToken,
		account.RefreshToken, account.ExpiresAt, account.Scope, account.ExternalID).
		Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)
}

func (db *DB) GetAccount(ctx context.Context, userID uuid.UUID, provider string) (*models.Account, error) {
	return scanAccount(db.QueryRow(ctx, `
	SELECT `+accountColumns+`
	FROM accounts WHERE user_id = $1 AND provider = $2`, userID, provider))
}

func (db *DB) GetAccountByExternalID(ctx context.Context, provider, externalID string) (*models.Account, error) {
	return scanAccount(db.QueryRow(ctx, `
	SELECT `+accountColumns+`
	FROM accounts WHERE provider = $1 AND external_id = $2`, provider, externalID))
}

// ListAccounts returns every account for a provider, ordered by creation so
// the polling loops visit users in a stable order.
func (db *DB) ListAccounts(ctx context.Context, provider string) ([]*models.Account, error) {
	rows, err := db.Query(ctx, `
	SELECT `+accountColumns+`
	FROM accounts WHERE provider = $1
	ORDER BY created_at`, provider)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		a := &models.Account{}
		if err := rows.Scan(
			&a.ID, &a.UserID, &a.Provider, &a.AccessToken, &a.RefreshToken,
			&a.ExpiresAt, &a.Scope, &a.ExternalID, &a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (db *DB) UpdateAccountTokens(ctx context.Context, accountID uuid.UUID, accessToken, refreshToken string, expiresAt int64) error {
	_, err := db.Exec(ctx, `
	UPDATE accounts
	SET access_token = $1, refresh_token = $2, expires_at = $3, updated_at = $4
	WHERE id = $5`,
		accessToken, refreshToken, expiresAt, time.Now().UTC(), accountID)

	return err
}
