package operators

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gocql/gocql"
	"github.com/rs/zerolog"
)

type ClusterConfig struct {
	Hosts       []string
	Port        int
	Keyspace    string
	Consistency string
	Replication int
}

func EnsureKeyspace(session *gocql.Session, keyspace string, replicationFactor int) error {
	if replicationFactor <= 0 {
		replicationFactor = 3
	}
	stmt := fmt.Sprintf("CREATE KEYSPACE IF NOT EXISTS %s WITH replication = {'class': 'SimpleStrategy', 'replication_factor': %d}", keyspace, replicationFactor)
	return session.Query(stmt).Exec()
}

func EnsureSchema(session *gocql.Session, keyspace string) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.operators (
		email text PRIMARY KEY,
		id text,
		name text,
		picture text,
		roles set<text>,
		last_login timestamp
	)`, keyspace)
	return session.Query(stmt).Exec()
}

func ParseConsistency(c string) gocql.Consistency {
	switch strings.ToUpper(strings.TrimSpace(c)) {
	case "ONE":
		return gocql.One
	case "LOCAL_ONE":
		return gocql.LocalOne
	case "LOCAL_QUORUM":
		return gocql.LocalQuorum
	case "ALL":
		return gocql.All
	default:
		return gocql.Quorum
	}
}

func connect(cfg ClusterConfig, log zerolog.Logger) (*gocql.Session, error) {
	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Port = cfg.Port
	cluster.Timeout = 5 * time.Second
	cluster.Consistency = ParseConsistency(cfg.Consistency)

	tmpSession, err := cluster.CreateSession()
	if err != nil {
		return nil, err
	}
	defer tmpSession.Close()

	created := false
	for i := 0; i < 10; i++ {
		if err := EnsureKeyspace(tmpSession, cfg.Keyspace, cfg.Replication); err != nil {
			log.Warn().Err(err).Int("attempt", i+1).Msg("ensure keyspace retry")
			time.Sleep(3 * time.Second)
			continue
		}
		created = true
		break
	}
	if !created {
		return nil, fmt.Errorf("unable to ensure keyspace %s", cfg.Keyspace)
	}

	cluster.Keyspace = cfg.Keyspace
	return cluster.CreateSession()
}

// Connect opens a session on the operators keyspace, creating keyspace and
// table as needed. It retries up to attempts times, delay apart.
func Connect(ctx context.Context, cfg ClusterConfig, attempts int, delay time.Duration, log zerolog.Logger) (*gocql.Session, error) {
	if attempts <= 0 {
		attempts = 20
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		s, err := connect(cfg, log)
		if err == nil {
			if err = EnsureSchema(s, cfg.Keyspace); err == nil {
				return s, nil
			}
			s.Close()
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", i+1).Int("of", attempts).Msg("scylla connect retry")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, fmt.Errorf("scylla not ready after %d attempts: %w", attempts, lastErr)
}

type CassandraDirectory struct {
	session  *gocql.Session
	keyspace string
}

func NewCassandraDirectory(session *gocql.Session, keyspace string) *CassandraDirectory {
	return &CassandraDirectory{session: session, keyspace: keyspace}
}

func (d *CassandraDirectory) Upsert(ctx context.Context, op Operator) error {
	return d.session.Query(fmt.Sprintf(`INSERT INTO %s.operators (email,id,name,picture,roles,last_login) VALUES (?,?,?,?,?,?)`, d.keyspace),
		key(op), op.ID, op.Name, op.Picture, op.Roles, op.LastLogin).
		WithContext(ctx).
		Exec()
}

func (d *CassandraDirectory) List(ctx context.Context) ([]Operator, error) {
	var ops []Operator
	iter := d.session.Query(fmt.Sprintf(`SELECT email,id,name,picture,roles,last_login FROM %s.operators`, d.keyspace)).
		WithContext(ctx).Iter()
	var op Operator
	for iter.Scan(&op.Email, &op.ID, &op.Name, &op.Picture, &op.Roles, &op.LastLogin) {
		sort.Strings(op.Roles)
		ops = append(ops, op)
		op = Operator{}
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	sortByLastLogin(ops)
	return ops, nil
}
