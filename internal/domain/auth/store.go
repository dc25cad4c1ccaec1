package auth

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Account is a login row joined with the user's organizational placement.
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	RoleID       string
	RoleName     string
	TeamID       string
	DepartmentID string
	LocationID   string
	CompanyID    string
}

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*Account, error) {
	row := s.DB.QueryRow(ctx, `
    SELECT u.id, u.email, u.password_hash,
           u.role_id, r.name,
           COALESCE(u.team_id::text, ''),
           COALESCE(u.department_id::text, ''),
           COALESCE(u.location_id::text, ''),
           u.company_id
    FROM users u
    JOIN roles r ON u.role_id = r.id
    WHERE lower(u.email) = lower($1) AND u.is_active = true
  `, email)

	var acct Account
	if err := row.Scan(
		&acct.ID, &acct.Email, &acct.PasswordHash,
		&acct.RoleID, &acct.RoleName,
		&acct.TeamID, &acct.DepartmentID, &acct.LocationID, &acct.CompanyID,
	); err != nil {
		return nil, err
	}
	return &acct, nil
}
