package dynamodata

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/goforj/datasource/dscore"
	"github.com/stretchr/testify/require"
)

type dynStub struct {
	items           map[string]map[string]types.AttributeValue
	exists          bool
	getErr          error
	batchWriteSizes []int
	describeErrs    []error
	createErrs      []error
	describeHits    int
	createHits      int
}

func newDynStub() *dynStub { return &dynStub{items: map[string]map[string]types.AttributeValue{}} }

func (d *dynStub) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if d.getErr != nil {
		return nil, d.getErr
	}
	item, ok := d.items[in.Key["k"].(*types.AttributeValueMemberS).Value]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: item}, nil
}

// PutItem understands the two condition expressions the adapter sends.
func (d *dynStub) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	key := in.Item["k"].(*types.AttributeValueMemberS).Value
	if in.ConditionExpression != nil {
		now, _ := strconv.ParseInt(in.ExpressionAttributeValues[":now"].(*types.AttributeValueMemberN).Value, 10, 64)
		existing, exists := d.items[key]
		live := exists
		if ea, ok := existing["ea"].(*types.AttributeValueMemberN); ok {
			at, _ := strconv.ParseInt(ea.Value, 10, 64)
			live = at >= now
		}
		wantLive := strings.HasPrefix(*in.ConditionExpression, "attribute_exists")
		if live != wantLive {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	d.items[key] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (d *dynStub) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	delete(d.items, in.Key["k"].(*types.AttributeValueMemberS).Value)
	return &dynamodb.DeleteItemOutput{}, nil
}

func (d *dynStub) BatchWriteItem(_ context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	for _, writes := range in.RequestItems {
		d.batchWriteSizes = append(d.batchWriteSizes, len(writes))
		for _, wr := range writes {
			delete(d.items, wr.DeleteRequest.Key["k"].(*types.AttributeValueMemberS).Value)
		}
	}
	return &dynamodb.BatchWriteItemOutput{}, nil
}

func (d *dynStub) Scan(context.Context, *dynamodb.ScanInput, ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	var items []map[string]types.AttributeValue
	for k := range d.items {
		items = append(items, map[string]types.AttributeValue{"k": &types.AttributeValueMemberS{Value: k}})
	}
	return &dynamodb.ScanOutput{Items: items}, nil
}

func (d *dynStub) CreateTable(context.Context, *dynamodb.CreateTableInput, ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	d.createHits++
	if len(d.createErrs) > 0 {
		err := d.createErrs[0]
		d.createErrs = d.createErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	d.exists = true
	return &dynamodb.CreateTableOutput{}, nil
}

func (d *dynStub) DescribeTable(context.Context, *dynamodb.DescribeTableInput, ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	d.describeHits++
	if len(d.describeErrs) > 0 {
		err := d.describeErrs[0]
		d.describeErrs = d.describeErrs[1:]
		if err != nil {
			return nil, err
		}
		return &dynamodb.DescribeTableOutput{}, nil
	}
	if d.exists {
		return &dynamodb.DescribeTableOutput{}, nil
	}
	return nil, &types.ResourceNotFoundException{}
}

func TestSetStateEnsuresTable(t *testing.T) {
	assert := require.New(t)
	ctx := context.Background()
	stub := newDynStub()
	link := NewLink(stub)

	err := link.SetState(ctx, dscore.State{"tbl", "off"})
	assert.ErrorIs(err, dscore.StatusStateNotEstablished)
	assert.Equal(0, stub.createHits)
	assert.Equal("", link.Table())

	assert.NoError(link.SetState(ctx, dscore.State{"tbl", "on"}))
	assert.Equal(1, stub.createHits)
	assert.Equal("tbl", link.Table())

	assert.ErrorIs(link.SetState(ctx, dscore.State{"", "on"}), dscore.StatusStateNotEstablished)
	assert.NoError(link.Close())
	assert.ErrorIs(link.SetState(ctx, dscore.State{"tbl", "on"}), dscore.StatusConnectionNotInit)
}

func TestEnsureTableRetriesStartupErrors(t *testing.T) {
	assert := require.New(t)
	stub := newDynStub()
	stub.describeErrs = []error{
		errors.New("request send failed: connection reset by peer"),
		&types.ResourceNotFoundException{},
	}
	stub.createErrs = []error{&types.ResourceInUseException{}}

	assert.NoError(ensureTable(context.Background(), stub, "tbl"))
	assert.Equal(2, stub.describeHits)
	assert.Equal(1, stub.createHits)

	stub = newDynStub()
	stub.describeErrs = []error{errors.New("AccessDenied")}
	assert.Error(ensureTable(context.Background(), stub, "tbl"))
	assert.Equal(1, stub.describeHits)
}

func TestHashOperations(t *testing.T) {
	assert := require.New(t)
	ctx := context.Background()
	stub := newDynStub()
	stub.exists = true
	link := NewLink(stub)
	drv := NewDriver()
	assert.Equal(dscore.TypeDynamo, drv.Type())

	_, _, err := drv.GetData(ctx, link, "a")
	assert.ErrorIs(err, dscore.StatusConnectionNotInit)
	assert.NoError(link.SetState(ctx, dscore.State{"tbl", "off"}))

	added, err := drv.AddData(ctx, link, "a", []byte("1"), 0)
	assert.NoError(err)
	assert.True(added)
	added, err = drv.AddData(ctx, link, "a", []byte("2"), 0)
	assert.NoError(err)
	assert.False(added)
	assert.NotContains(stub.items["a"], "ea")

	replaced, err := drv.ReplaceData(ctx, link, "b", []byte("x"), 0)
	assert.NoError(err)
	assert.False(replaced)
	replaced, err = drv.ReplaceData(ctx, link, "a", []byte("3"), time.Hour)
	assert.NoError(err)
	assert.True(replaced)
	assert.Contains(stub.items["a"], "ea")

	value, ok, err := drv.GetData(ctx, link, "a")
	assert.NoError(err)
	assert.True(ok)
	assert.Equal("3", string(value))

	assert.NoError(drv.DeleteData(ctx, link, "a"))
	_, ok, err = drv.GetData(ctx, link, "a")
	assert.NoError(err)
	assert.False(ok)
}

func TestExpiredItemsAreReplaceableByAdd(t *testing.T) {
	assert := require.New(t)
	ctx := context.Background()
	stub := newDynStub()
	stub.exists = true
	link := NewLink(stub)
	drv := NewDriver()
	assert.NoError(link.SetState(ctx, dscore.State{"tbl", "off"}))

	stub.items["old"] = map[string]types.AttributeValue{
		"k":  &types.AttributeValueMemberS{Value: "old"},
		"v":  &types.AttributeValueMemberB{Value: []byte("stale")},
		"ea": &types.AttributeValueMemberN{Value: strconv.FormatInt(time.Now().Add(-time.Minute).UnixMilli(), 10)},
	}
	replaced, err := drv.ReplaceData(ctx, link, "old", []byte("x"), 0)
	assert.NoError(err)
	assert.False(replaced)

	added, err := drv.AddData(ctx, link, "old", []byte("fresh"), 0)
	assert.NoError(err)
	assert.True(added)

	stub.items["gone"] = map[string]types.AttributeValue{
		"k":  &types.AttributeValueMemberS{Value: "gone"},
		"v":  &types.AttributeValueMemberB{Value: []byte("stale")},
		"ea": &types.AttributeValueMemberN{Value: "1"},
	}
	_, ok, err := drv.GetData(ctx, link, "gone")
	assert.NoError(err)
	assert.False(ok)
	assert.NotContains(stub.items, "gone")
}

func TestFlushBatchesDeletes(t *testing.T) {
	assert := require.New(t)
	ctx := context.Background()
	stub := newDynStub()
	stub.exists = true
	link := NewLink(stub)
	drv := NewDriver()
	assert.NoError(link.SetState(ctx, dscore.State{"tbl", "off"}))

	for i := 0; i < 60; i++ {
		assert.NoError(drv.SetData(ctx, link, fmt.Sprintf("k%02d", i), []byte("v"), 0))
	}
	assert.NoError(drv.FlushData(ctx, link))
	assert.Empty(stub.items)
	assert.Equal([]int{25, 25, 10}, stub.batchWriteSizes)

	stub.getErr = errors.New("ProvisionedThroughputExceeded")
	_, _, err := drv.GetData(ctx, link, "k01")
	assert.ErrorIs(err, dscore.StatusQueryFailed)
}

func TestOpenUsesClientFactory(t *testing.T) {
	assert := require.New(t)
	orig := newClient
	t.Cleanup(func() { newClient = orig })

	var region string
	newClient = func(_ context.Context, cfg *dscore.Config) (API, error) {
		region = cfg.Get("region")
		return newDynStub(), nil
	}
	cfg := dscore.NewConfig(Spec(), "dynamodb")
	assert.NoError(cfg.Set("host", "eu-west-1"))
	assert.NoError(cfg.Set("db", "sessions"))
	link, err := Open(context.Background(), cfg)
	assert.NoError(err)
	assert.Equal("eu-west-1", region)
	assert.Equal(dscore.State{"sessions", "on"}, cfg.StateID())
	assert.NoError(link.Close())

	newClient = func(context.Context, *dscore.Config) (API, error) {
		return nil, errors.New("no shared config profile")
	}
	_, err = Open(context.Background(), cfg)
	assert.ErrorIs(err, dscore.StatusConnectionRefused)
}
