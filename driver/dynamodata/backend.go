// Package dynamodata wires hash sources onto DynamoDB tables. Items are keyed
// by the string attribute "k", hold their value in "v" and an optional expiry
// in epoch milliseconds in "ea".
package dynamodata

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/goforj/datasource/dscore"
	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("datasource.dynamodb")

// API captures the subset of DynamoDB client methods used by the adapter.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

const (
	ensureTableMaxAttempts = 20
	ensureTableRetryDelay  = 150 * time.Millisecond
)

var newClient = func(ctx context.Context, cfg *dscore.Config) (API, error) {
	region := cfg.Get("region")
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if key := cfg.Get("key"); key != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(key, cfg.Get("secret"), ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}
	if endpoint := cfg.Get("endpoint"); endpoint != "" {
		awsCfg.EndpointResolverWithOptions = aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				return aws.Endpoint{URL: endpoint, HostnameImmutable: true}, nil
			},
		)
	}
	return dynamodb.NewFromConfig(awsCfg), nil
}

// Spec describes the dynamodb property bag. The table and its create flag are state.
func Spec() dscore.ConfigSpec {
	return dscore.ConfigSpec{
		Type: dscore.TypeDynamo,
		Slots: []dscore.Slot{
			{Name: "region", Default: "us-east-1"},
			{Name: "endpoint"},
			{Name: "key"},
			{Name: "secret"},
			{Name: "table", Default: "datasource"},
			{Name: "create", Default: "on"},
			{Name: "prefix"},
		},
		Aliases: map[string]string{
			"host": "region", "h": "region",
			"user": "key", "u": "key",
			"password": "secret", "pass": "secret", "p": "secret",
			"db": "table", "dbname": "table", "database": "table",
			"pref": "prefix",
		},
		Provider: []string{"region", "endpoint", "key", "secret", "table", "prefix"},
		Connect:  []string{"region", "endpoint", "key", "secret"},
		State:    []string{"table", "create"},
	}
}

// Backend binds the dynamodb tag to its spec, opener and adapter.
func Backend() dscore.Backend {
	return dscore.Backend{
		Spec:   Spec(),
		Open:   Open,
		Driver: func() dscore.Driver { return NewDriver() },
	}
}

// Link is one DynamoDB client bound to the currently selected table.
type Link struct {
	mu     sync.Mutex
	client API
	table  string
}

// NewLink wraps an existing client.
func NewLink(client API) *Link { return &Link{client: client} }

// Open builds a client. The SDK connects lazily, so reachability surfaces
// when the first table is selected.
func Open(ctx context.Context, cfg *dscore.Config) (dscore.Link, error) {
	client, err := newClient(ctx, cfg)
	if err != nil {
		return nil, dscore.WrapFail(dscore.StatusConnectionRefused, err, "configure dynamodb %s", cfg.Get("region"))
	}
	logger.Debugf("configured dynamodb client for %s", cfg.Get("region"))
	return NewLink(client), nil
}

// SetState binds the link to a table, creating it when the create flag is set.
func (l *Link) SetState(ctx context.Context, state dscore.State) error {
	table := state.At(0)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.client == nil {
		return dscore.NewFail(dscore.StatusConnectionNotInit, "dynamodb link is closed")
	}
	l.table = ""
	if table == "" {
		return dscore.NewFail(dscore.StatusStateNotEstablished, "dynamodb table name is empty")
	}
	var err error
	if dscore.Truthy(state.At(1)) {
		err = ensureTable(ctx, l.client, table)
	} else {
		_, err = l.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table)})
	}
	if err != nil {
		return dscore.WrapFail(dscore.StatusStateNotEstablished, err, "table %q", table)
	}
	l.table = table
	return nil
}

// Table returns the selected table name.
func (l *Link) Table() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.table
}

func (l *Link) target() (API, string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.client == nil || l.table == "" {
		return nil, "", dscore.NewFail(dscore.StatusConnectionNotInit, "no dynamodb table selected")
	}
	return l.client, l.table, nil
}

func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.client, l.table = nil, ""
	return nil
}

func ensureTable(ctx context.Context, client API, table string) error {
	var lastErr error
	for attempt := 1; attempt <= ensureTableMaxAttempts; attempt++ {
		_, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table)})
		if err == nil {
			return nil
		}

		var rnfe *types.ResourceNotFoundException
		if errors.As(err, &rnfe) {
			logger.Infof("creating table %s", table)
			_, createErr := client.CreateTable(ctx, &dynamodb.CreateTableInput{
				TableName: aws.String(table),
				KeySchema: []types.KeySchemaElement{
					{AttributeName: aws.String("k"), KeyType: types.KeyTypeHash},
				},
				AttributeDefinitions: []types.AttributeDefinition{
					{AttributeName: aws.String("k"), AttributeType: types.ScalarAttributeTypeS},
				},
				BillingMode: types.BillingModePayPerRequest,
			})
			if createErr == nil {
				return nil
			}
			var inUse *types.ResourceInUseException
			if errors.As(createErr, &inUse) {
				return nil
			}
			if !isStartupRetryable(createErr) {
				return createErr
			}
			lastErr = createErr
		} else {
			if !isStartupRetryable(err) {
				return err
			}
			lastErr = err
		}

		if attempt == ensureTableMaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(ensureTableRetryDelay):
		}
	}
	return fmt.Errorf("ensure table %q: %w", table, lastErr)
}

// isStartupRetryable matches transport errors seen while a local endpoint boots.
func isStartupRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "request send failed") ||
		strings.Contains(msg, "connection reset by peer") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "eof")
}
