package dynamo

import (
	"context"
	"errors"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"docscan-backend/internal/shared/errs"
	"docscan-backend/internal/shared/storage/record"
)

type dynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Store implements record.Store on DynamoDB.
type Store struct {
	client dynamoAPI
}

// New builds a store from an AWS config. endpoint overrides the service URL
// (DynamoDB Local) when non-empty.
func New(cfg aws.Config, endpoint string) *Store {
	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return &Store{client: client}
}

// Get reads one item with a consistent read.
func (s *Store) Get(ctx context.Context, t record.Table, k record.Key) (record.Item, error) {
	if err := t.Check(k); err != nil {
		return nil, err
	}
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(t.Name),
		Key:            keyAV(t, k),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, errs.Remote("dynamodb get item", t.Name, err)
	}
	if len(out.Item) == 0 {
		return nil, record.NotFound(t, k)
	}
	return decodeItem(out.Item)
}

// Put writes the full item.
func (s *Store) Put(ctx context.Context, t record.Table, item record.Item) error {
	if _, err := t.KeyOf(item); err != nil {
		return err
	}
	av, err := encodeItem(item)
	if err != nil {
		return errs.Invalid("encode %s item: %v", t.Name, err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(t.Name),
		Item:      av,
	}); err != nil {
		return errs.Remote("dynamodb put item", t.Name, err)
	}
	return nil
}

// Update sets the patch attributes on an existing item. Empty sets are removed.
func (s *Store) Update(ctx context.Context, t record.Table, k record.Key, patch record.Item) error {
	if err := t.Check(k); err != nil {
		return err
	}
	patch = t.Settable(patch)
	if len(patch) == 0 {
		return nil
	}

	names := make([]string, 0, len(patch))
	for name := range patch {
		names = append(names, name)
	}
	sort.Strings(names)

	var upd expression.UpdateBuilder
	for _, name := range names {
		v := patch[name]
		if set, ok := v.(record.StringSet); ok && len(set) == 0 {
			upd = upd.Remove(expression.Name(name))
			continue
		}
		upd = upd.Set(expression.Name(name), expression.Value(encodable(v)))
	}
	expr, err := expression.NewBuilder().
		WithUpdate(upd).
		WithCondition(expression.AttributeExists(expression.Name(t.PartitionKey))).
		Build()
	if err != nil {
		return errs.Invalid("build update for %s: %v", t.Name, err)
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(t.Name),
		Key:                       keyAV(t, k),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return record.NotFound(t, k)
		}
		return errs.Remote("dynamodb update item", t.Name, err)
	}
	return nil
}

// Append uses list_append so concurrent writers cannot overwrite each other.
func (s *Store) Append(ctx context.Context, t record.Table, k record.Key, name string, values []string) error {
	ok, err := t.CheckAppend(k, name, values)
	if err != nil || !ok {
		return err
	}
	attr := expression.Name(name)
	upd := expression.Set(attr, expression.ListAppend(
		expression.IfNotExists(attr, expression.Value(stringList{})),
		expression.Value(stringList(values)),
	))
	expr, err := expression.NewBuilder().
		WithUpdate(upd).
		WithCondition(expression.AttributeExists(expression.Name(t.PartitionKey))).
		Build()
	if err != nil {
		return errs.Invalid("build append for %s: %v", t.Name, err)
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(t.Name),
		Key:                       keyAV(t, k),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return record.NotFound(t, k)
		}
		return errs.Remote("dynamodb append", t.Name, err)
	}
	return nil
}

// Delete removes the item; deleting a missing item succeeds.
func (s *Store) Delete(ctx context.Context, t record.Table, k record.Key) error {
	if err := t.Check(k); err != nil {
		return err
	}
	if _, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(t.Name),
		Key:       keyAV(t, k),
	}); err != nil {
		return errs.Remote("dynamodb delete item", t.Name, err)
	}
	return nil
}

// Query pages through every item under partition.
func (s *Store) Query(ctx context.Context, t record.Table, partition string) ([]record.Item, error) {
	if err := t.Check(record.Key{Partition: partition, Sort: "-"}); err != nil {
		return nil, err
	}
	keyCond := expression.Key(t.PartitionKey).Equal(expression.Value(partition))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, errs.Invalid("build query for %s: %v", t.Name, err)
	}

	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:                 aws.String(t.Name),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	var out []record.Item
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, errs.Remote("dynamodb query", t.Name, err)
		}
		for _, raw := range page.Items {
			item, err := decodeItem(raw)
			if err != nil {
				return nil, err
			}
			out = append(out, item)
		}
	}
	return out, nil
}

func keyAV(t record.Table, k record.Key) map[string]types.AttributeValue {
	key := map[string]types.AttributeValue{
		t.PartitionKey: &types.AttributeValueMemberS{Value: k.Partition},
	}
	if t.SortKey != "" {
		key[t.SortKey] = &types.AttributeValueMemberS{Value: k.Sort}
	}
	return key
}

var _ record.Store = (*Store)(nil)
var _ dynamodb.QueryAPIClient = (dynamoAPI)(nil)
