package dynamo

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"docscan-backend/internal/shared/errs"
	"docscan-backend/internal/shared/storage/record"
)

var docs = record.Table{Name: "documents", PartitionKey: "userId", SortKey: "documentId"}

type fakeDynamo struct {
	calls     int
	lastPut   *dynamodb.PutItemInput
	lastUpd   *dynamodb.UpdateItemInput
	getItem   map[string]types.AttributeValue
	updateErr error
	pages     [][]map[string]types.AttributeValue
}

func (f *fakeDynamo) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.calls++
	return &dynamodb.GetItemOutput{Item: f.getItem}, nil
}

func (f *fakeDynamo) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.calls++
	f.lastPut = params
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.calls++
	f.lastUpd = params
	return &dynamodb.UpdateItemOutput{}, f.updateErr
}

func (f *fakeDynamo) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.calls++
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeDynamo) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	page := f.pages[f.calls]
	f.calls++
	out := &dynamodb.QueryOutput{Items: page}
	if f.calls < len(f.pages) {
		out.LastEvaluatedKey = map[string]types.AttributeValue{"userId": &types.AttributeValueMemberS{Value: "u1"}}
	}
	return out, nil
}

func TestEmptyUpdateMakesNoCall(t *testing.T) {
	fake := &fakeDynamo{}
	s := &Store{client: fake}
	key := record.Key{Partition: "u1", Sort: "d1"}

	if err := s.Update(context.Background(), docs, key, record.Item{}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := s.Update(context.Background(), docs, key, record.Item{"userId": "u1"}); err != nil {
		t.Fatalf("update with key only: %v", err)
	}
	if fake.calls != 0 {
		t.Fatalf("expected zero remote calls, got %d", fake.calls)
	}
}

func TestMissingKeyFailsBeforeCall(t *testing.T) {
	fake := &fakeDynamo{}
	s := &Store{client: fake}
	_, err := s.Get(context.Background(), docs, record.Key{Partition: "u1"})
	if !errors.Is(err, record.ErrInvalidKey) {
		t.Fatalf("expected invalid key, got %v", err)
	}
	if err := s.Put(context.Background(), docs, record.Item{"documentId": "d1"}); !errors.Is(err, record.ErrInvalidKey) {
		t.Fatalf("expected invalid key on put, got %v", err)
	}
	if fake.calls != 0 {
		t.Fatalf("expected zero remote calls, got %d", fake.calls)
	}
}

func TestUpdateIsConditionalAndSparse(t *testing.T) {
	fake := &fakeDynamo{}
	s := &Store{client: fake}
	err := s.Update(context.Background(), docs, record.Key{Partition: "u1", Sort: "d1"}, record.Item{
		"status": "cleaned",
		"tags":   record.StringSet{"tax", "2025"},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if fake.lastUpd == nil || aws.ToString(fake.lastUpd.ConditionExpression) == "" {
		t.Fatalf("expected conditional update")
	}
	if !strings.HasPrefix(aws.ToString(fake.lastUpd.UpdateExpression), "SET ") {
		t.Fatalf("unexpected update expression %q", aws.ToString(fake.lastUpd.UpdateExpression))
	}
	if len(fake.lastUpd.ExpressionAttributeValues) != 2 {
		t.Fatalf("expected only patched values, got %d", len(fake.lastUpd.ExpressionAttributeValues))
	}
	var sawSet bool
	for _, v := range fake.lastUpd.ExpressionAttributeValues {
		if _, ok := v.(*types.AttributeValueMemberSS); ok {
			sawSet = true
		}
	}
	if !sawSet {
		t.Fatalf("tags should be written as a string set")
	}
}

func TestUpdateMissingRecordIsNotFound(t *testing.T) {
	fake := &fakeDynamo{updateErr: &types.ConditionalCheckFailedException{Message: aws.String("failed")}}
	s := &Store{client: fake}
	err := s.Update(context.Background(), docs, record.Key{Partition: "u1", Sort: "gone"}, record.Item{"status": "failed"})
	if !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRemoteErrorsCarryTable(t *testing.T) {
	fake := &fakeDynamo{updateErr: errors.New("throttled")}
	s := &Store{client: fake}
	err := s.Update(context.Background(), docs, record.Key{Partition: "u1", Sort: "d1"}, record.Item{"status": "failed"})
	if !errors.Is(err, errs.ErrRemote) || !strings.Contains(err.Error(), "documents") {
		t.Fatalf("expected remote error naming table, got %v", err)
	}
}

func TestPutAndGetStringSets(t *testing.T) {
	fake := &fakeDynamo{}
	s := &Store{client: fake}
	err := s.Put(context.Background(), docs, record.Item{
		"userId":     "u1",
		"documentId": "d1",
		"tags":       record.StringSet{"a"},
		"empty":      record.StringSet{},
		"fileSize":   int64(2048),
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, ok := fake.lastPut.Item["tags"].(*types.AttributeValueMemberSS); !ok {
		t.Fatalf("expected SS for tags, got %T", fake.lastPut.Item["tags"])
	}
	if _, ok := fake.lastPut.Item["empty"]; ok {
		t.Fatalf("empty set must be omitted")
	}

	fake.getItem = fake.lastPut.Item
	got, err := s.Get(context.Background(), docs, record.Key{Partition: "u1", Sort: "d1"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if tags := got.Strings("tags"); len(tags) != 1 || tags[0] != "a" {
		t.Fatalf("unexpected tags %v", tags)
	}
	if got.Int64("fileSize") != 2048 {
		t.Fatalf("unexpected fileSize %v", got["fileSize"])
	}
}

func TestGetMissingIsNotFound(t *testing.T) {
	s := &Store{client: &fakeDynamo{}}
	if _, err := s.Get(context.Background(), docs, record.Key{Partition: "u1", Sort: "x"}); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestQueryFollowsPages(t *testing.T) {
	item := func(id string) map[string]types.AttributeValue {
		return map[string]types.AttributeValue{
			"userId":     &types.AttributeValueMemberS{Value: "u1"},
			"documentId": &types.AttributeValueMemberS{Value: id},
		}
	}
	fake := &fakeDynamo{pages: [][]map[string]types.AttributeValue{{item("a"), item("b")}, {item("c")}}}
	s := &Store{client: fake}
	items, err := s.Query(context.Background(), docs, "u1")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(items) != 3 || items[2].String("documentId") != "c" {
		t.Fatalf("unexpected items %v", items)
	}
}

func TestAppendUsesListAppend(t *testing.T) {
	fake := &fakeDynamo{}
	s := &Store{client: fake}
	texts := record.Table{Name: "extracted_texts", PartitionKey: "extractedTextId"}

	err := s.Append(context.Background(), texts, record.Key{Partition: "t1"}, "questionsId", []string{"q_1", "q_2"})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	expr := aws.ToString(fake.lastUpd.UpdateExpression)
	if !strings.Contains(expr, "list_append(if_not_exists(") {
		t.Fatalf("expected list_append update, got %q", expr)
	}
	if aws.ToString(fake.lastUpd.ConditionExpression) == "" {
		t.Fatalf("append must be conditional on the record existing")
	}
	var appended *types.AttributeValueMemberL
	for _, v := range fake.lastUpd.ExpressionAttributeValues {
		if l, ok := v.(*types.AttributeValueMemberL); ok && len(l.Value) == 2 {
			appended = l
		}
	}
	if appended == nil {
		t.Fatalf("expected the two ids as a list value, got %v", fake.lastUpd.ExpressionAttributeValues)
	}

	fake.calls = 0
	if err := s.Append(context.Background(), texts, record.Key{Partition: "t1"}, "questionsId", nil); err != nil {
		t.Fatalf("empty append: %v", err)
	}
	if err := s.Append(context.Background(), texts, record.Key{Partition: "t1"}, "extractedTextId", []string{"x"}); !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("expected invalid input for key attribute, got %v", err)
	}
	if fake.calls != 0 {
		t.Fatalf("expected zero remote calls, got %d", fake.calls)
	}
}

func TestAppendMissingRecordIsNotFound(t *testing.T) {
	fake := &fakeDynamo{updateErr: &types.ConditionalCheckFailedException{Message: aws.String("failed")}}
	s := &Store{client: fake}
	texts := record.Table{Name: "extracted_texts", PartitionKey: "extractedTextId"}
	err := s.Append(context.Background(), texts, record.Key{Partition: "gone"}, "questionsId", []string{"q_1"})
	if !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
