package dscore

import (
	"context"
	"time"
)

// Driver is a stateless capability adapter for one backend tag.
type Driver interface {
	Type() Type
}

// Result is a cursor over the rows of one query.
type Result interface {
	Columns() []string
	FetchRow() (Row, bool)
	// FetchAssoc keys by column name; duplicate names keep the last value.
	FetchAssoc() (Record, bool)
	// FetchArray keeps every column with both positional and named access.
	FetchArray() (Record, bool)
	NumRows() int
	NumFields() int
	Err() error
	// Free releases the cursor; it is safe to call more than once.
	Free() error
}

// SQL is the capability set of relational backends.
type SQL interface {
	Driver
	// Query buffers every row before returning.
	Query(ctx context.Context, link Link, query string) (Result, error)
	// UnbufQuery streams rows; the cursor must be freed before the link is reused.
	UnbufQuery(ctx context.Context, link Link, query string) (Result, error)
	Exec(ctx context.Context, link Link, query string) (int64, error)
	Escape(link Link, s string) string
	Error(link Link) string
	Errno(link Link) int
	Affected(link Link) int64
	InsertID(link Link) int64
}

// Hash is the capability set of key-value backends.
type Hash interface {
	Driver
	AddData(ctx context.Context, link Link, key string, value []byte, expire time.Duration) (bool, error)
	GetData(ctx context.Context, link Link, key string) ([]byte, bool, error)
	SetData(ctx context.Context, link Link, key string, value []byte, expire time.Duration) error
	ReplaceData(ctx context.Context, link Link, key string, value []byte, expire time.Duration) (bool, error)
	DeleteData(ctx context.Context, link Link, key string) error
	FlushData(ctx context.Context, link Link) error
}
