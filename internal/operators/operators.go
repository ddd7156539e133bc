// Package operators keeps a directory of the operators who have signed in,
// with their roles as of the last sign-in.
package operators

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

type Operator struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Picture   string    `json:"picture,omitempty"`
	Roles     []string  `json:"roles"`
	LastLogin time.Time `json:"last_login"`
}

type Directory interface {
	Upsert(ctx context.Context, op Operator) error
	List(ctx context.Context) ([]Operator, error)
}

func key(op Operator) string {
	return strings.ToLower(strings.TrimSpace(op.Email))
}

// MemDirectory is used when no cluster is configured.
type MemDirectory struct {
	mu  sync.Mutex
	ops map[string]Operator
}

func NewMemDirectory() *MemDirectory {
	return &MemDirectory{ops: make(map[string]Operator)}
}

func (m *MemDirectory) Upsert(_ context.Context, op Operator) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	op.Roles = append([]string(nil), op.Roles...)
	m.ops[key(op)] = op
	return nil
}

func (m *MemDirectory) List(_ context.Context) ([]Operator, error) {
	m.mu.Lock()
	out := make([]Operator, 0, len(m.ops))
	for _, op := range m.ops {
		out = append(out, op)
	}
	m.mu.Unlock()
	sortByLastLogin(out)
	return out, nil
}

func sortByLastLogin(ops []Operator) {
	sort.Slice(ops, func(i, j int) bool {
		if ops[i].LastLogin.Equal(ops[j].LastLogin) {
			return ops[i].Email < ops[j].Email
		}
		return ops[i].LastLogin.After(ops[j].LastLogin)
	})
}
