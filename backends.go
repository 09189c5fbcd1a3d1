package datasource

import (
	"github.com/goforj/datasource/driver/dynamodata"
	"github.com/goforj/datasource/driver/memcachedata"
	"github.com/goforj/datasource/driver/memorydata"
	"github.com/goforj/datasource/driver/mysqldata"
	"github.com/goforj/datasource/driver/natsdata"
	"github.com/goforj/datasource/driver/pgsqldata"
	"github.com/goforj/datasource/driver/redisdata"
	"github.com/goforj/datasource/driver/sqlitedata"
	"github.com/goforj/datasource/dscore"
)

// DefaultBackends returns the built-in backend table, one entry per known tag.
func DefaultBackends() map[dscore.Type]dscore.Backend {
	return map[dscore.Type]dscore.Backend{
		dscore.TypeMySQL:    mysqldata.Backend(dscore.TypeMySQL),
		dscore.TypeMariaDB:  mysqldata.Backend(dscore.TypeMariaDB),
		dscore.TypePgSQL:    pgsqldata.Backend(),
		dscore.TypeSQLite:   sqlitedata.Backend(),
		dscore.TypeMemcache: memcachedata.Backend(),
		dscore.TypeRedis:    redisdata.Backend(),
		dscore.TypeMemory:   memorydata.Backend(),
		dscore.TypeNATS:     natsdata.Backend(),
		dscore.TypeDynamo:   dynamodata.Backend(),
	}
}
