package dscore

import "strings"

// Type identifies a data source backend.
type Type string

const (
	TypeMySQL    Type = "mysql"
	TypeMariaDB  Type = "mariadb"
	TypePgSQL    Type = "pgsql"
	TypeSQLite   Type = "sqlite"
	TypeMemcache Type = "memcache"
	TypeRedis    Type = "redis"
	TypeMemory   Type = "memory"
	TypeNATS     Type = "nats"
	TypeDynamo   Type = "dynamodb"
)

var knownTypes = []Type{
	TypeMySQL,
	TypeMariaDB,
	TypePgSQL,
	TypeSQLite,
	TypeMemcache,
	TypeRedis,
	TypeMemory,
	TypeNATS,
	TypeDynamo,
}

var defaultPorts = map[Type]string{
	TypeMySQL:    "3306",
	TypeMariaDB:  "3306",
	TypePgSQL:    "5432",
	TypeMemcache: "11211",
	TypeRedis:    "6379",
	TypeNATS:     "4222",
}

// portTypes infers a backend from a well-known port. 3306 is claimed by mysql.
var portTypes = map[string]Type{
	"3306":  TypeMySQL,
	"5432":  TypePgSQL,
	"11211": TypeMemcache,
	"6379":  TypeRedis,
	"4222":  TypeNATS,
}

// Types lists every known backend tag.
func Types() []Type {
	out := make([]Type, len(knownTypes))
	copy(out, knownTypes)
	return out
}

// ParseType resolves a backend tag case-insensitively.
func ParseType(name string) (Type, bool) {
	t := Type(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range knownTypes {
		if t == known {
			return t, true
		}
	}
	return "", false
}

// TypeForPort infers a backend from its well-known port.
func TypeForPort(port string) (Type, bool) {
	t, ok := portTypes[strings.TrimSpace(port)]
	return t, ok
}

// Family groups wire-compatible tags; mariadb shares the mysql family.
func (t Type) Family() Type {
	if t == TypeMariaDB {
		return TypeMySQL
	}
	return t
}

// FileBased reports whether the backend addresses a local file instead of a server.
func (t Type) FileBased() bool { return t == TypeSQLite }

// DefaultPort returns the well-known port of a network backend, or "".
func (t Type) DefaultPort() string { return defaultPorts[t] }

// Network reports whether the backend listens on a TCP port.
func (t Type) Network() bool { return defaultPorts[t] != "" }

// SQL reports whether the backend speaks SQL.
func (t Type) SQL() bool {
	switch t.Family() {
	case TypeMySQL, TypePgSQL, TypeSQLite:
		return true
	}
	return false
}

func (t Type) String() string { return string(t) }
