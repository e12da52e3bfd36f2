package postgres

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	goAccount "github.com/MrEthical07/goAccount"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the tables the store expects. Embedders with migration
// tooling can copy these statements into their own migrations.
const Schema = `
CREATE TABLE IF NOT EXISTS accounts (
    account_id    TEXT PRIMARY KEY,
    identifier    TEXT NOT NULL,
    tenant_id     TEXT NOT NULL DEFAULT '0',
    password_hash TEXT NOT NULL,
    mfa_status    SMALLINT NOT NULL DEFAULT 0,
    mfa_method    SMALLINT NOT NULL DEFAULT 0,
    mfa_secret    BYTEA
);

CREATE TABLE IF NOT EXISTS account_backup_codes (
    account_id TEXT NOT NULL REFERENCES accounts (account_id) ON DELETE CASCADE,
    code_hash  BYTEA NOT NULL,
    PRIMARY KEY (account_id, code_hash)
);
`

// Store is a PostgreSQL-backed [goAccount.CredentialStore]. One row per
// account, one row per unconsumed backup code.
//
//	Docs: docs/credstore.md
type Store struct {
	pool *pgxpool.Pool
	sb   sq.StatementBuilderType
}

// NewStore creates a [Store] on top of an existing connection pool. The pool
// stays owned by the caller.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool: pool,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// FindAccount loads one account row plus its live backup-code count.
func (s *Store) FindAccount(ctx context.Context, accountID string) (goAccount.Account, error) {
	query, args, err := s.sb.
		Select(
			"a.account_id",
			"a.identifier",
			"a.tenant_id",
			"a.password_hash",
			"a.mfa_status",
			"a.mfa_method",
			"a.mfa_secret",
			"(SELECT count(*) FROM account_backup_codes b WHERE b.account_id = a.account_id) AS backup_code_count",
		).
		From("accounts a").
		Where(sq.Eq{"a.account_id": accountID}).
		ToSql()
	if err != nil {
		return goAccount.Account{}, err
	}

	var (
		account   goAccount.Account
		mfaStatus int16
		mfaMethod int16
	)
	row := s.pool.QueryRow(ctx, query, args...)
	err = row.Scan(
		&account.AccountID,
		&account.Identifier,
		&account.TenantID,
		&account.PasswordHash,
		&mfaStatus,
		&mfaMethod,
		&account.MfaSecret,
		&account.BackupCodeCount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return goAccount.Account{}, goAccount.ErrAccountNotFound
		}
		return goAccount.Account{}, fmt.Errorf("find account: %w", err)
	}

	account.MfaStatus = goAccount.MfaStatus(mfaStatus)
	account.MfaMethod = goAccount.MfaMethod(mfaMethod)

	return account, nil
}

// UpdatePasswordHash replaces the stored hash for one account.
func (s *Store) UpdatePasswordHash(ctx context.Context, accountID string, newHash string) error {
	query, args, err := s.sb.
		Update("accounts").
		Set("password_hash", newHash).
		Where(sq.Eq{"account_id": accountID}).
		ToSql()
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return goAccount.ErrAccountNotFound
	}
	return nil
}

// UpdateMfaFields writes the MFA columns and replaces the backup-code set in
// one transaction, so a reader never observes enabled MFA without its codes.
func (s *Store) UpdateMfaFields(
	ctx context.Context,
	accountID string,
	status goAccount.MfaStatus,
	method goAccount.MfaMethod,
	secret []byte,
	codes []goAccount.BackupCodeRecord,
) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin mfa update: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	updateQuery, updateArgs, err := s.sb.
		Update("accounts").
		Set("mfa_status", int16(status)).
		Set("mfa_method", int16(method)).
		Set("mfa_secret", secret).
		Where(sq.Eq{"account_id": accountID}).
		ToSql()
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, updateQuery, updateArgs...)
	if err != nil {
		return fmt.Errorf("update mfa fields: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return goAccount.ErrAccountNotFound
	}

	deleteQuery, deleteArgs, err := s.sb.
		Delete("account_backup_codes").
		Where(sq.Eq{"account_id": accountID}).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, deleteQuery, deleteArgs...); err != nil {
		return fmt.Errorf("clear backup codes: %w", err)
	}

	if len(codes) > 0 {
		insert := s.sb.Insert("account_backup_codes").Columns("account_id", "code_hash")
		for _, code := range codes {
			insert = insert.Values(accountID, code.Hash[:])
		}
		insertQuery, insertArgs, err := insert.ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, insertQuery, insertArgs...); err != nil {
			return fmt.Errorf("insert backup codes: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// ConsumeBackupCode atomically removes one backup code. The DELETE is the
// check and the consumption in a single statement, so two concurrent
// submissions of the same code cannot both succeed.
func (s *Store) ConsumeBackupCode(ctx context.Context, accountID string, codeHash [32]byte) (bool, error) {
	query, args, err := s.sb.
		Delete("account_backup_codes").
		Where(sq.Eq{"account_id": accountID, "code_hash": codeHash[:]}).
		ToSql()
	if err != nil {
		return false, err
	}

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("consume backup code: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
