package repository

import (
	"context"
	"database/sql"
	"errors"

	"rosegold/market-service/internal/models"

	"github.com/lib/pq"
)

// ErrNoAccount is returned when a lookup matches no account row.
var ErrNoAccount = errors.New("account not found")

// ErrDuplicate is returned when an insert violates a uniqueness constraint
// (username or email already taken).
var ErrDuplicate = errors.New("username or email already in use")

type AccountRepository interface {
	CreateUnverified(ctx context.Context, acct *models.UnverifiedAccount) error
	GetUnverifiedByEmail(ctx context.Context, email string) (*models.UnverifiedAccount, error)
	Promote(ctx context.Context, email string) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	GetByID(ctx context.Context, id int64) (*models.Account, error)
	GetByUsername(ctx context.Context, username string) (*models.Account, error)
	UsernameAvailable(ctx context.Context, username string) (bool, error)
	UpdateUsername(ctx context.Context, oldName, newName string) error
	UpdateAvatar(ctx context.Context, accountID int64, avatarURL string) error
	UpdateRefreshToken(ctx context.Context, accountID int64, token string) error
	UpdatePassword(ctx context.Context, accountID int64, passwordHash string) error
	Delete(ctx context.Context, accountID int64) error
	ReportUser(ctx context.Context, reporterID, reportedID int64, reason string) error
	SetDeviceToken(ctx context.Context, accountID int64, token string) error
	GetDeviceToken(ctx context.Context, accountID int64) (string, error)
	CreatePasswordReset(ctx context.Context, accountID int64, code string) error
	GetPasswordReset(ctx context.Context, accountID int64) (*models.PasswordReset, error)
	DeletePasswordReset(ctx context.Context, accountID int64) error
	InitializeTables() error
}

type accountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) AccountRepository {
	return &accountRepository{
		db: db,
	}
}

func (r *accountRepository) InitializeTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS accounts (
		id BIGSERIAL PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL,
		avatar_url TEXT NOT NULL DEFAULT '',
		user_rating DOUBLE PRECISION NOT NULL DEFAULT 0,
		address TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL DEFAULT '',
		zipcode TEXT NOT NULL DEFAULT '',
		refresh_token TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS unverified_accounts (
		id BIGSERIAL PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL,
		avatar_url TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL DEFAULT '',
		zipcode TEXT NOT NULL DEFAULT '',
		verification_code TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS user_reports (
		id BIGSERIAL PRIMARY KEY,
		reporter_id BIGINT NOT NULL,
		reported_id BIGINT NOT NULL,
		reason TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS device_tokens (
		account_id BIGINT PRIMARY KEY REFERENCES accounts(id) ON DELETE CASCADE,
		token TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS password_resets (
		account_id BIGINT PRIMARY KEY REFERENCES accounts(id) ON DELETE CASCADE,
		code TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	`

	_, err := r.db.Exec(query)
	return err
}

func (r *accountRepository) CreateUnverified(ctx context.Context, acct *models.UnverifiedAccount) error {
	query := `
	INSERT INTO unverified_accounts
		(username, email, password, avatar_url, address, city, state, zipcode, verification_code)
	VALUES
		($1, $2, $3, $4, $5, $6, $7, $8, $9)
	RETURNING id, created_at
	`

	err := r.db.QueryRowContext(ctx, query,
		acct.Username, acct.Email, acct.PasswordHash, acct.AvatarURL,
		acct.Address, acct.City, acct.State, acct.Zipcode, acct.VerificationCode,
	).Scan(&acct.ID, &acct.CreatedAt)

	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *accountRepository) GetUnverifiedByEmail(ctx context.Context, email string) (*models.UnverifiedAccount, error) {
	query := `
	SELECT id, username, email, password, avatar_url, address, city, state, zipcode, verification_code, created_at
	FROM unverified_accounts
	WHERE email = $1
	`

	var acct models.UnverifiedAccount
	err := r.db.QueryRowContext(ctx, query, email).Scan(
		&acct.ID, &acct.Username, &acct.Email, &acct.PasswordHash, &acct.AvatarURL,
		&acct.Address, &acct.City, &acct.State, &acct.Zipcode, &acct.VerificationCode, &acct.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNoAccount
		}
		return nil, err
	}

	return &acct, nil
}

// Promote moves an unverified registration into the accounts table. The two
// statements run in one transaction so a crash cannot leave the registration
// in both tables.
func (r *accountRepository) Promote(ctx context.Context, email string) (*models.Account, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	insert := `
	INSERT INTO accounts (username, email, password, avatar_url, address, city, state, zipcode)
	SELECT username, email, password, avatar_url, address, city, state, zipcode
	FROM unverified_accounts
	WHERE email = $1
	RETURNING id, username, email, password, avatar_url, user_rating, address, city, state, zipcode, refresh_token, created_at
	`

	var acct models.Account
	err = tx.QueryRowContext(ctx, insert, email).Scan(
		&acct.ID, &acct.Username, &acct.Email, &acct.PasswordHash, &acct.AvatarURL,
		&acct.UserRating, &acct.Address, &acct.City, &acct.State, &acct.Zipcode,
		&acct.RefreshToken, &acct.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNoAccount
		}
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM unverified_accounts WHERE email = $1`, email); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &acct, nil
}

func (r *accountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.getOne(ctx, `email = $1`, email)
}

func (r *accountRepository) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	return r.getOne(ctx, `id = $1`, id)
}

func (r *accountRepository) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	return r.getOne(ctx, `username = $1`, username)
}

func (r *accountRepository) getOne(ctx context.Context, where string, arg interface{}) (*models.Account, error) {
	query := `
	SELECT id, username, email, password, avatar_url, user_rating, address, city, state, zipcode, refresh_token, created_at
	FROM accounts
	WHERE ` + where

	var acct models.Account
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&acct.ID, &acct.Username, &acct.Email, &acct.PasswordHash, &acct.AvatarURL,
		&acct.UserRating, &acct.Address, &acct.City, &acct.State, &acct.Zipcode,
		&acct.RefreshToken, &acct.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNoAccount
		}
		return nil, err
	}

	return &acct, nil
}

func (r *accountRepository) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	query := `
	SELECT COUNT(*) FROM accounts WHERE username = $1
	UNION ALL
	SELECT COUNT(*) FROM unverified_accounts WHERE username = $1
	`

	rows, err := r.db.QueryContext(ctx, query, username)
	if err != nil {
		return false, err
	}
	defer rows.Close()

	total := 0
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return false, err
		}
		total += n
	}

	return total == 0, rows.Err()
}

func (r *accountRepository) UpdateUsername(ctx context.Context, oldName, newName string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET username = $1 WHERE username = $2`, newName, oldName)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNoAccount
	}
	return nil
}

func (r *accountRepository) UpdateAvatar(ctx context.Context, accountID int64, avatarURL string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET avatar_url = $1 WHERE id = $2`, avatarURL, accountID)
	return err
}

func (r *accountRepository) UpdateRefreshToken(ctx context.Context, accountID int64, token string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET refresh_token = $1 WHERE id = $2`, token, accountID)
	return err
}

func (r *accountRepository) UpdatePassword(ctx context.Context, accountID int64, passwordHash string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET password = $1 WHERE id = $2`, passwordHash, accountID)
	return err
}

func (r *accountRepository) Delete(ctx context.Context, accountID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, accountID)
	return err
}

func (r *accountRepository) ReportUser(ctx context.Context, reporterID, reportedID int64, reason string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_reports (reporter_id, reported_id, reason) VALUES ($1, $2, $3)`,
		reporterID, reportedID, reason)
	return err
}

func (r *accountRepository) SetDeviceToken(ctx context.Context, accountID int64, token string) error {
	query := `
	INSERT INTO device_tokens (account_id, token)
	VALUES ($1, $2)
	ON CONFLICT (account_id) DO UPDATE SET token = $2, updated_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query, accountID, token)
	return err
}

func (r *accountRepository) GetDeviceToken(ctx context.Context, accountID int64) (string, error) {
	var token string
	err := r.db.QueryRowContext(ctx,
		`SELECT token FROM device_tokens WHERE account_id = $1`, accountID).Scan(&token)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", ErrNoAccount
		}
		return "", err
	}
	return token, nil
}

func (r *accountRepository) CreatePasswordReset(ctx context.Context, accountID int64, code string) error {
	query := `
	INSERT INTO password_resets (account_id, code)
	VALUES ($1, $2)
	ON CONFLICT (account_id) DO UPDATE SET code = $2, created_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query, accountID, code)
	return err
}

func (r *accountRepository) GetPasswordReset(ctx context.Context, accountID int64) (*models.PasswordReset, error) {
	query := `SELECT account_id, code, created_at FROM password_resets WHERE account_id = $1`

	var reset models.PasswordReset
	err := r.db.QueryRowContext(ctx, query, accountID).Scan(&reset.AccountID, &reset.Code, &reset.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNoAccount
		}
		return nil, err
	}

	return &reset, nil
}

func (r *accountRepository) DeletePasswordReset(ctx context.Context, accountID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM password_resets WHERE account_id = $1`, accountID)
	return err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
