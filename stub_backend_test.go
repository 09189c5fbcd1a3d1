package datasource

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/goforj/datasource/dscore"
)

// stubLink keeps one keyspace per database and counts state changes.
type stubLink struct {
	mu       sync.Mutex
	database string
	data     map[string]map[string][]byte
	setState int
	stateErr error
	closed   bool
	lastErr  string
}

func (l *stubLink) SetState(_ context.Context, state dscore.State) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stateErr != nil {
		return l.stateErr
	}
	l.setState++
	l.database = state.At(0)
	l.lastErr = ""
	return nil
}

func (l *stubLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

func (l *stubLink) bucket() map[string][]byte {
	if l.data == nil {
		l.data = map[string]map[string][]byte{}
	}
	b, ok := l.data[l.database]
	if !ok {
		b = map[string][]byte{}
		l.data[l.database] = b
	}
	return b
}

type stubHash struct{}

func (stubHash) Type() dscore.Type { return dscore.TypeRedis }

func (stubHash) AddData(_ context.Context, link dscore.Link, key string, value []byte, _ time.Duration) (bool, error) {
	b := link.(*stubLink).bucket()
	if _, ok := b[key]; ok {
		return false, nil
	}
	b[key] = value
	return true, nil
}

func (stubHash) GetData(_ context.Context, link dscore.Link, key string) ([]byte, bool, error) {
	v, ok := link.(*stubLink).bucket()[key]
	return v, ok, nil
}

func (stubHash) SetData(_ context.Context, link dscore.Link, key string, value []byte, _ time.Duration) error {
	if key == "boom" {
		return dscore.NewFail(dscore.StatusQueryFailed, "boom")
	}
	link.(*stubLink).bucket()[key] = value
	return nil
}

func (stubHash) ReplaceData(_ context.Context, link dscore.Link, key string, value []byte, _ time.Duration) (bool, error) {
	b := link.(*stubLink).bucket()
	if _, ok := b[key]; !ok {
		return false, nil
	}
	b[key] = value
	return true, nil
}

func (stubHash) DeleteData(_ context.Context, link dscore.Link, key string) error {
	delete(link.(*stubLink).bucket(), key)
	return nil
}

func (stubHash) FlushData(_ context.Context, link dscore.Link) error {
	l := link.(*stubLink)
	delete(l.data, l.database)
	return nil
}

// stubBackend counts opens and exposes every link it created.
type stubBackend struct {
	mu      sync.Mutex
	opened  int
	links   []*stubLink
	openErr error
	noHash  bool
	sql     bool
}

func (s *stubBackend) backend() dscore.Backend {
	return dscore.Backend{
		Spec: dscore.ConfigSpec{
			Type: dscore.TypeRedis,
			Slots: []dscore.Slot{
				{Name: "host", Default: "localhost"},
				{Name: "port", Default: "6379"},
				{Name: "password"},
				{Name: "database", Default: "0"},
				{Name: "prefix"},
			},
			Aliases:  map[string]string{"h": "host", "db": "database", "pass": "password"},
			Provider: []string{"host", "port", "password", "database", "prefix"},
			Connect:  []string{"host", "port", "password"},
			State:    []string{"database"},
		},
		Open: func(context.Context, *dscore.Config) (dscore.Link, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.opened++
			if s.openErr != nil {
				return nil, s.openErr
			}
			l := &stubLink{}
			s.links = append(s.links, l)
			return l, nil
		},
		Driver: func() dscore.Driver {
			if s.sql {
				return stubSQL{}
			}
			if s.noHash {
				return stubPlain{}
			}
			return stubHash{}
		},
	}
}

func (s *stubBackend) opens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened
}

type stubPlain struct{}

func (stubPlain) Type() dscore.Type { return dscore.TypeRedis }

var errStubState = errors.New("no such database")

// stubSQL fails every statement and remembers the text on the link.
type stubSQL struct{ stubPlain }

func (stubSQL) fail(link dscore.Link, query string) error {
	l := link.(*stubLink)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastErr = "cannot run " + query + " in " + l.database
	return dscore.NewFail(dscore.StatusQueryFailed, "%s", l.lastErr)
}

func (d stubSQL) Query(_ context.Context, link dscore.Link, query string) (dscore.Result, error) {
	return nil, d.fail(link, query)
}

func (d stubSQL) UnbufQuery(_ context.Context, link dscore.Link, query string) (dscore.Result, error) {
	return nil, d.fail(link, query)
}

func (d stubSQL) Exec(_ context.Context, link dscore.Link, query string) (int64, error) {
	return 0, d.fail(link, query)
}

func (stubSQL) Escape(_ dscore.Link, s string) string { return s }

func (stubSQL) Error(link dscore.Link) string {
	l := link.(*stubLink)
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

func (stubSQL) Errno(dscore.Link) int { return 0 }

func (stubSQL) Affected(dscore.Link) int64 { return 0 }

func (stubSQL) InsertID(dscore.Link) int64 { return 0 }
