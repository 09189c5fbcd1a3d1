package memcachedata

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/goforj/datasource/dscore"
	"github.com/stretchr/testify/require"
)

func openFake(t *testing.T) (*Link, *fakeMemcached) {
	t.Helper()
	fake := startFakeMemcached(t)
	cfg := dscore.NewConfig(Spec(), "memcache")
	link, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = link.Close() })
	return link.(*Link), fake
}

func TestHashRoundTripAgainstFakeServer(t *testing.T) {
	assert := require.New(t)
	ctx := context.Background()
	link, fake := openFake(t)
	drv := NewDriver()

	assert.Equal("localhost:11211", link.Addr())
	assert.Equal(dscore.TypeMemcache, drv.Type())

	assert.NoError(drv.SetData(ctx, link, "a", []byte("one\r\ntwo"), 0))
	value, ok, err := drv.GetData(ctx, link, "a")
	assert.NoError(err)
	assert.True(ok)
	assert.Equal("one\r\ntwo", string(value))
	assert.Equal(0, fake.ttl("a"))

	added, err := drv.AddData(ctx, link, "a", []byte("x"), time.Minute)
	assert.NoError(err)
	assert.False(added)

	added, err = drv.AddData(ctx, link, "b", []byte("2"), 90*time.Second)
	assert.NoError(err)
	assert.True(added)
	assert.Equal(90, fake.ttl("b"))

	replaced, err := drv.ReplaceData(ctx, link, "missing", []byte("x"), 0)
	assert.NoError(err)
	assert.False(replaced)

	replaced, err = drv.ReplaceData(ctx, link, "b", []byte("22"), 500*time.Millisecond)
	assert.NoError(err)
	assert.True(replaced)
	assert.Equal(1, fake.ttl("b"))

	assert.NoError(drv.DeleteData(ctx, link, "a"))
	assert.NoError(drv.DeleteData(ctx, link, "a"))
	_, ok, err = drv.GetData(ctx, link, "a")
	assert.NoError(err)
	assert.False(ok)

	assert.NoError(drv.FlushData(ctx, link))
	_, ok, err = drv.GetData(ctx, link, "b")
	assert.NoError(err)
	assert.False(ok)
}

func TestOpenFailures(t *testing.T) {
	assert := require.New(t)
	orig := dialMemcached
	t.Cleanup(func() { dialMemcached = orig })

	var dialed string
	dialMemcached = func(ctx context.Context, network, addr string, timeout time.Duration) (net.Conn, error) {
		dialed = addr
		return nil, errors.New("connection refused")
	}
	cfg := dscore.NewConfig(Spec(), "memcache")
	assert.NoError(cfg.Set("server", "cache.internal"))
	assert.NoError(cfg.Set("p", "11311"))
	_, err := Open(context.Background(), cfg)
	assert.ErrorIs(err, dscore.StatusConnectionRefused)
	assert.Equal("cache.internal:11311", dialed)

	assert.NoError(cfg.Set("timeout", "soon"))
	_, err = Open(context.Background(), cfg)
	assert.ErrorIs(err, dscore.StatusTimeoutNotChanged)
}

func TestClosedAndForeignLinks(t *testing.T) {
	assert := require.New(t)
	ctx := context.Background()
	link, _ := openFake(t)
	drv := NewDriver()

	assert.NoError(link.Close())
	assert.NoError(link.Close())
	_, _, err := drv.GetData(ctx, link, "a")
	assert.ErrorIs(err, dscore.StatusConnectionNotInit)

	err = drv.SetData(ctx, foreignLink{}, "a", nil, 0)
	assert.ErrorIs(err, dscore.StatusConnectionNotInit)
}

func TestSpecIdentities(t *testing.T) {
	assert := require.New(t)
	cfg := dscore.NewConfig(Spec(), "memcache")
	assert.NoError(cfg.Set("pref", "app"))
	assert.Equal("host=localhost&port=11211", cfg.ConnectID())
	assert.Equal("host=localhost&port=11211&prefix=app", cfg.ProviderID())
	assert.Empty(cfg.StateID())
}

type foreignLink struct{}

func (foreignLink) SetState(context.Context, dscore.State) error { return nil }
func (foreignLink) Close() error                                 { return nil }

func TestRejectsUnsafeKeys(t *testing.T) {
	assert := require.New(t)
	ctx := context.Background()
	link, _ := openFake(t)
	drv := NewDriver()

	assert.NoError(drv.SetData(ctx, link, "victim", []byte("v"), 0))
	for _, key := range []string{"", "a b", "a\r\nflush_all", "tab\tkey", "nul\x00", strings.Repeat("k", 251)} {
		err := drv.SetData(ctx, link, key, []byte("x"), 0)
		assert.Equal(dscore.StatusQueryFailed, dscore.StatusOf(err), "%q", key)
		_, err = drv.AddData(ctx, link, key, []byte("x"), 0)
		assert.Equal(dscore.StatusQueryFailed, dscore.StatusOf(err))
		_, err = drv.ReplaceData(ctx, link, key, []byte("x"), 0)
		assert.Equal(dscore.StatusQueryFailed, dscore.StatusOf(err))
		_, _, err = drv.GetData(ctx, link, key)
		assert.Equal(dscore.StatusQueryFailed, dscore.StatusOf(err))
		assert.Equal(dscore.StatusQueryFailed, dscore.StatusOf(drv.DeleteData(ctx, link, key)))
	}

	value, ok, err := drv.GetData(ctx, link, "victim")
	assert.NoError(err)
	assert.True(ok)
	assert.Equal("v", string(value))
	assert.NoError(drv.SetData(ctx, link, strings.Repeat("k", 250), []byte("x"), 0))
}
