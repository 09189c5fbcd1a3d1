package dynamodata

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/goforj/datasource/dscore"
)

// BatchWriteItem accepts at most 25 requests.
const batchLimit = 25

const (
	condAbsent = "attribute_not_exists(k) OR ea < :now"
	condLive   = "attribute_exists(k) AND (attribute_not_exists(ea) OR ea >= :now)"
)

// Driver adapts dynamodb links to the hash capability set.
type Driver struct{}

// NewDriver returns the dynamodb adapter.
func NewDriver() *Driver { return &Driver{} }

func (*Driver) Type() dscore.Type { return dscore.TypeDynamo }

func (*Driver) AddData(ctx context.Context, link dscore.Link, key string, value []byte, expire time.Duration) (bool, error) {
	return put(ctx, link, key, value, expire, condAbsent)
}

func (*Driver) GetData(ctx context.Context, link dscore.Link, key string) ([]byte, bool, error) {
	client, table, err := targetOf(link)
	if err != nil {
		return nil, false, err
	}
	out, err := client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(table),
		Key:            itemKey(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, false, failed(err, "get %s", key)
	}
	if out.Item == nil {
		return nil, false, nil
	}
	if expired(out.Item) {
		_, _ = client.DeleteItem(ctx, &dynamodb.DeleteItemInput{TableName: aws.String(table), Key: itemKey(key)})
		return nil, false, nil
	}
	v, ok := out.Item["v"].(*types.AttributeValueMemberB)
	if !ok {
		return nil, false, failed(errors.New("item missing binary value"), "get %s", key)
	}
	return v.Value, true, nil
}

func (*Driver) SetData(ctx context.Context, link dscore.Link, key string, value []byte, expire time.Duration) error {
	_, err := put(ctx, link, key, value, expire, "")
	return err
}

func (*Driver) ReplaceData(ctx context.Context, link dscore.Link, key string, value []byte, expire time.Duration) (bool, error) {
	return put(ctx, link, key, value, expire, condLive)
}

func (*Driver) DeleteData(ctx context.Context, link dscore.Link, key string) error {
	client, table, err := targetOf(link)
	if err != nil {
		return err
	}
	_, err = client.DeleteItem(ctx, &dynamodb.DeleteItemInput{TableName: aws.String(table), Key: itemKey(key)})
	return failed(err, "delete %s", key)
}

// FlushData removes every item of the selected table.
func (*Driver) FlushData(ctx context.Context, link dscore.Link) error {
	client, table, err := targetOf(link)
	if err != nil {
		return err
	}
	var start map[string]types.AttributeValue
	for {
		out, err := client.Scan(ctx, &dynamodb.ScanInput{
			TableName:            aws.String(table),
			ProjectionExpression: aws.String("k"),
			ExclusiveStartKey:    start,
		})
		if err != nil {
			return failed(err, "flush %s", table)
		}
		writes := make([]types.WriteRequest, 0, len(out.Items))
		for _, item := range out.Items {
			if k, ok := item["k"].(*types.AttributeValueMemberS); ok {
				writes = append(writes, types.WriteRequest{
					DeleteRequest: &types.DeleteRequest{Key: itemKey(k.Value)},
				})
			}
		}
		for len(writes) > 0 {
			n := min(len(writes), batchLimit)
			_, err := client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
				RequestItems: map[string][]types.WriteRequest{table: writes[:n]},
			})
			if err != nil {
				return failed(err, "flush %s", table)
			}
			writes = writes[n:]
		}
		if len(out.LastEvaluatedKey) == 0 {
			return nil
		}
		start = out.LastEvaluatedKey
	}
}

// put writes an item, reporting false when the condition rejects it.
func put(ctx context.Context, link dscore.Link, key string, value []byte, expire time.Duration, cond string) (bool, error) {
	client, table, err := targetOf(link)
	if err != nil {
		return false, err
	}
	now := time.Now()
	item := map[string]types.AttributeValue{
		"k": &types.AttributeValueMemberS{Value: key},
		"v": &types.AttributeValueMemberB{Value: value},
	}
	if expire > 0 {
		item["ea"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Add(expire).UnixMilli(), 10)}
	}
	in := &dynamodb.PutItemInput{TableName: aws.String(table), Item: item}
	if cond != "" {
		in.ConditionExpression = aws.String(cond)
		in.ExpressionAttributeValues = map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.UnixMilli(), 10)},
		}
	}
	if _, err := client.PutItem(ctx, in); err != nil {
		var cce *types.ConditionalCheckFailedException
		if errors.As(err, &cce) {
			return false, nil
		}
		return false, failed(err, "put %s", key)
	}
	return true, nil
}

func itemKey(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"k": &types.AttributeValueMemberS{Value: key}}
}

func expired(item map[string]types.AttributeValue) bool {
	av, ok := item["ea"].(*types.AttributeValueMemberN)
	if !ok {
		return false
	}
	exp, err := strconv.ParseInt(av.Value, 10, 64)
	if err != nil {
		return false
	}
	return time.Now().UnixMilli() > exp
}

func targetOf(link dscore.Link) (API, string, error) {
	l, ok := link.(*Link)
	if !ok || l == nil {
		return nil, "", dscore.NewFail(dscore.StatusConnectionNotInit, "link %T is not a dynamodb link", link)
	}
	return l.target()
}

func failed(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	logger.Warningf("dynamodb: %v", err)
	return dscore.WrapFail(dscore.StatusQueryFailed, err, format, args...)
}
