package member

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is the directory used when no database is configured.
type MemoryRepository struct {
	mu      sync.RWMutex
	byID    map[string]Member
	byEmail map[string]string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:    make(map[string]Member),
		byEmail: make(map[string]string),
	}
}

func (r *MemoryRepository) FindByID(ctx context.Context, id string) (Member, error) {
	if err := ctx.Err(); err != nil {
		return Member{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.byID[id]
	if !ok {
		return Member{}, ErrNotFound
	}
	return m, nil
}

func (r *MemoryRepository) FindByEmail(ctx context.Context, email string) (Member, error) {
	if err := ctx.Err(); err != nil {
		return Member{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[NormalizeEmail(email)]
	if !ok {
		return Member{}, ErrNotFound
	}
	return r.byID[id], nil
}

func (r *MemoryRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.byEmail[NormalizeEmail(email)]
	return ok, nil
}

func (r *MemoryRepository) Create(ctx context.Context, m Member) (Member, error) {
	if err := ctx.Err(); err != nil {
		return Member{}, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return Member{}, fmt.Errorf("generate member id: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	m.Email = NormalizeEmail(m.Email)
	if _, ok := r.byEmail[m.Email]; ok {
		return Member{}, ErrEmailDuplicated
	}

	now := time.Now().UTC()
	m.ID = id.String()
	m.CreatedAt = now
	m.UpdatedAt = now

	r.byID[m.ID] = m
	r.byEmail[m.Email] = m.ID

	return m, nil
}

// SetStatus changes a member's status. Used by operators in dev mode and tests.
func (r *MemoryRepository) SetStatus(id string, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	m.Status = status
	m.UpdatedAt = time.Now().UTC()
	r.byID[id] = m

	return nil
}

// Delete removes a member. Used by tests to simulate a vanished subject.
func (r *MemoryRepository) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.byID[id]; ok {
		delete(r.byEmail, m.Email)
		delete(r.byID, id)
	}
}
