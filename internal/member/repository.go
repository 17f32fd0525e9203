package member

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/cayman031/study-with-me/internal/db"
)

const uniqueViolation = "23505"

type Repository interface {
	FindByID(ctx context.Context, id string) (Member, error)
	FindByEmail(ctx context.Context, email string) (Member, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, m Member) (Member, error)
}

type PostgresRepository struct {
	db db.DBTX
}

func NewPostgresRepository(database db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: database}
}

const selectMember = `
	SELECT id::text, email, password_hash, name, role, status, created_at, updated_at
	FROM member
`

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (Member, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Member{}, ErrNotFound
	}
	return r.scanOne(r.db.QueryRow(ctx, selectMember+`WHERE id = $1`, id), "query member by id")
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (Member, error) {
	return r.scanOne(r.db.QueryRow(ctx, selectMember+`WHERE email = $1`, NormalizeEmail(email)), "query member by email")
}

func (r *PostgresRepository) scanOne(row pgx.Row, op string) (Member, error) {
	var m Member
	var role, status string
	err := row.Scan(&m.ID, &m.Email, &m.PasswordHash, &m.Name, &role, &status, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Member{}, ErrNotFound
		}
		return Member{}, fmt.Errorf("%s: %w", op, err)
	}
	m.Role = Role(role)
	m.Status = Status(status)
	m.CreatedAt = m.CreatedAt.UTC()
	m.UpdatedAt = m.UpdatedAt.UTC()

	return m, nil
}

func (r *PostgresRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM member WHERE email = $1)`, NormalizeEmail(email)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check member email: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) Create(ctx context.Context, m Member) (Member, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Member{}, fmt.Errorf("generate member id: %w", err)
	}

	now := time.Now().UTC()
	m.ID = id.String()
	m.Email = NormalizeEmail(m.Email)
	m.CreatedAt = now
	m.UpdatedAt = now

	_, err = r.db.Exec(ctx, `
		INSERT INTO member (id, email, password_hash, name, role, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`, m.ID, m.Email, m.PasswordHash, m.Name, string(m.Role), string(m.Status), now)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Member{}, ErrEmailDuplicated
		}
		return Member{}, fmt.Errorf("insert member: %w", err)
	}

	return m, nil
}
