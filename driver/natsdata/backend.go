// Package natsdata wires hash sources onto NATS JetStream key-value buckets.
package natsdata

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/goforj/datasource/dscore"
	"github.com/juju/loggo"
	"github.com/nats-io/nats.go"
)

var logger = loggo.GetLogger("datasource.nats")

// KeyValue captures the subset of nats.KeyValue used by the adapter.
type KeyValue interface {
	Get(key string) (nats.KeyValueEntry, error)
	Put(key string, value []byte) (uint64, error)
	Create(key string, value []byte) (uint64, error)
	Update(key string, value []byte, last uint64) (uint64, error)
	Delete(key string, opts ...nats.DeleteOpt) error
	Purge(key string, opts ...nats.DeleteOpt) error
	ListKeys(opts ...nats.WatchOpt) (nats.KeyLister, error)
}

// Buckets resolves key-value buckets on one server connection.
type Buckets interface {
	Bucket(name string) (KeyValue, error)
	CreateBucket(name string) (KeyValue, error)
	Close()
}

type jetStream struct {
	nc *nats.Conn
	js nats.JetStreamContext
}

func (j jetStream) Bucket(name string) (KeyValue, error) { return j.js.KeyValue(name) }

func (j jetStream) CreateBucket(name string) (KeyValue, error) {
	return j.js.CreateKeyValue(&nats.KeyValueConfig{Bucket: name})
}

func (j jetStream) Close() { j.nc.Close() }

var connectNATS = func(url string, opts ...nats.Option) (Buckets, error) {
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, err
	}
	return jetStream{nc: nc, js: js}, nil
}

// Spec describes the nats property bag. The bucket and its create flag are state.
func Spec() dscore.ConfigSpec {
	return dscore.ConfigSpec{
		Type: dscore.TypeNATS,
		Slots: []dscore.Slot{
			{Name: "host", Default: "localhost"},
			{Name: "port", Default: "4222"},
			{Name: "user"},
			{Name: "password"},
			{Name: "token"},
			{Name: "bucket", Default: "datasource"},
			{Name: "create", Default: "on"},
			{Name: "prefix"},
		},
		Aliases: map[string]string{
			"h": "host", "server": "host",
			"u": "user",
			"p": "password", "pwd": "password", "pass": "password",
			"db": "bucket", "dbname": "bucket", "database": "bucket",
			"pref": "prefix",
		},
		Provider: []string{"host", "port", "user", "password", "token", "bucket", "prefix"},
		Connect:  []string{"host", "port", "user", "password", "token"},
		State:    []string{"bucket", "create"},
	}
}

// Backend binds the nats tag to its spec, opener and adapter.
func Backend() dscore.Backend {
	return dscore.Backend{
		Spec:   Spec(),
		Open:   Open,
		Driver: func() dscore.Driver { return NewDriver() },
	}
}

// Link is one server connection with the currently selected bucket.
type Link struct {
	mu      sync.Mutex
	buckets Buckets
	kv      KeyValue
	bucket  string
}

// NewLink wraps an already-connected bucket resolver.
func NewLink(buckets Buckets) *Link { return &Link{buckets: buckets} }

// Open connects to the configured server.
func Open(_ context.Context, cfg *dscore.Config) (dscore.Link, error) {
	url := "nats://" + net.JoinHostPort(cfg.Get("host"), cfg.Get("port"))
	opts := []nats.Option{nats.Name("datasource")}
	if user := cfg.Get("user"); user != "" {
		opts = append(opts, nats.UserInfo(user, cfg.Get("password")))
	}
	if token := cfg.Get("token"); token != "" {
		opts = append(opts, nats.Token(token))
	}
	buckets, err := connectNATS(url, opts...)
	if err != nil {
		return nil, dscore.WrapFail(dscore.StatusConnectionRefused, err, "connect %s", url)
	}
	logger.Debugf("connected to %s", url)
	return NewLink(buckets), nil
}

// SetState binds the link to a bucket, creating it when the create flag is set.
func (l *Link) SetState(_ context.Context, state dscore.State) error {
	name := state.At(0)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.buckets == nil {
		return dscore.NewFail(dscore.StatusConnectionNotInit, "nats link is closed")
	}
	kv, err := l.buckets.Bucket(name)
	if errors.Is(err, nats.ErrBucketNotFound) && dscore.Truthy(state.At(1)) {
		logger.Infof("creating bucket %s", name)
		kv, err = l.buckets.CreateBucket(name)
	}
	if err != nil {
		l.kv, l.bucket = nil, ""
		return dscore.WrapFail(dscore.StatusStateNotEstablished, err, "bucket %q", name)
	}
	l.kv, l.bucket = kv, name
	return nil
}

// Bucket returns the selected bucket name.
func (l *Link) Bucket() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.bucket
}

func (l *Link) store() (KeyValue, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.kv == nil {
		return nil, dscore.NewFail(dscore.StatusConnectionNotInit, "no nats bucket selected")
	}
	return l.kv, nil
}

func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.buckets != nil {
		l.buckets.Close()
	}
	l.buckets, l.kv = nil, nil
	return nil
}
