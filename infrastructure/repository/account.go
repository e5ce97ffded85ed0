package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/vfg2006/social-metrics-api/infrastructure/database/postgres"
	"github.com/vfg2006/social-metrics-api/internal/domain"
)

const (
	accountsTable    = "accounts a"
	credentialsTable = "source_credentials sc"
)

//go:generate mockgen -source=account.go -destination=mocks/account.go -package=mocks

// AccountRepository lê contas e credenciais gravadas pelo serviço de
// cobrança e persiste credenciais renovadas. Este serviço nunca grava
// contas nem métricas
type AccountRepository interface {
	GetAccountByID(ctx context.Context, accountID string) (*domain.Account, error)
	ListActiveAccounts(ctx context.Context) ([]*domain.Account, error)
	UpdateCredential(ctx context.Context, cred *domain.SourceCredential) error
}

type accountRepository struct {
	conn *postgres.Connection
}

func NewAccountRepository(conn *postgres.Connection) AccountRepository {
	return &accountRepository{
		conn: conn,
	}
}

func (r *accountRepository) GetAccountByID(ctx context.Context, accountID string) (*domain.Account, error) {
	accountSQL, accountArgs, err := squirrel.
		Select("a.id, a.nickname, a.tier, a.status, a.created_at").
		From(accountsTable).
		Where(squirrel.Eq{"a.id": accountID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	row := r.conn.QueryRowContext(ctx, accountSQL, accountArgs...)

	account, err := r.deserializeAccount(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	credentials, err := r.listCredentials(ctx, []string{account.ID})
	if err != nil {
		return nil, err
	}
	account.Credentials = credentials[account.ID]

	return account, nil
}

func (r *accountRepository) ListActiveAccounts(ctx context.Context) ([]*domain.Account, error) {
	accountsSQL, accountsArgs, err := squirrel.
		Select("a.id, a.nickname, a.tier, a.status, a.created_at").
		From(accountsTable).
		Where(squirrel.Eq{"a.status": domain.AccountStatusActive}).
		OrderBy("a.created_at ASC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.conn.QueryContext(ctx, accountsSQL, accountsArgs...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	defer rows.Close()

	accounts := make([]*domain.Account, 0)
	accountIDs := make([]string, 0)

	for rows.Next() {
		account := &domain.Account{}
		if err := rows.Scan(
			&account.ID,
			&account.Nickname,
			&account.Tier,
			&account.Status,
			&account.CreatedAt,
		); err != nil {
			return nil, err
		}

		accounts = append(accounts, account)
		accountIDs = append(accountIDs, account.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(accounts) == 0 {
		return nil, nil
	}

	credentialsByAccount, err := r.listCredentials(ctx, accountIDs)
	if err != nil {
		return nil, err
	}

	for _, account := range accounts {
		account.Credentials = credentialsByAccount[account.ID]
	}

	return accounts, nil
}

// UpdateCredential persiste os tokens e a expiração de uma credencial
// renovada
func (r *accountRepository) UpdateCredential(ctx context.Context, cred *domain.SourceCredential) error {
	var expiresAt interface{}
	if !cred.ExpiresAt.IsZero() {
		expiresAt = cred.ExpiresAt
	}

	updateSQL, updateArgs, err := squirrel.
		Update("source_credentials").
		Set("access_token", cred.AccessToken).
		Set("refresh_token", cred.RefreshToken).
		Set("expires_at", expiresAt).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": cred.ID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}

	result, err := r.conn.ExecContext(ctx, updateSQL, updateArgs...)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			return fmt.Errorf("database error: %w (code: %s)", pqErr, pqErr.Code)
		}
		return fmt.Errorf("failed to execute query: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("credential not found: %s", cred.ID)
	}

	return nil
}

func (r *accountRepository) listCredentials(ctx context.Context, accountIDs []string) (map[string][]domain.SourceCredential, error) {
	credentialsSQL, credentialsArgs, err := squirrel.
		Select("sc.id, sc.account_id, sc.platform, sc.access_token, sc.refresh_token, sc.aux_account_id, sc.expires_at").
		From(credentialsTable).
		Where(squirrel.Eq{"sc.account_id": accountIDs}).
		OrderBy("sc.created_at ASC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.conn.QueryContext(ctx, credentialsSQL, credentialsArgs...)
	if err != nil {
		if err == sql.ErrNoRows {
			return map[string][]domain.SourceCredential{}, nil
		}
		return nil, err
	}
	defer rows.Close()

	credentialsByAccount := make(map[string][]domain.SourceCredential)

	for rows.Next() {
		cred := domain.SourceCredential{}
		var expiresAt sql.NullTime

		if err := rows.Scan(
			&cred.ID,
			&cred.AccountID,
			&cred.Platform,
			&cred.AccessToken,
			&cred.RefreshToken,
			&cred.AuxAccountID,
			&expiresAt,
		); err != nil {
			return nil, err
		}

		if expiresAt.Valid {
			cred.ExpiresAt = expiresAt.Time
		}

		credentialsByAccount[cred.AccountID] = append(credentialsByAccount[cred.AccountID], cred)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return credentialsByAccount, nil
}

func (r *accountRepository) deserializeAccount(row *sql.Row) (*domain.Account, error) {
	account := &domain.Account{}

	if err := row.Scan(
		&account.ID,
		&account.Nickname,
		&account.Tier,
		&account.Status,
		&account.CreatedAt,
	); err != nil {
		return nil, err
	}

	return account, nil
}
