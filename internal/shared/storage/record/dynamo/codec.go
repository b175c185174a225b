package dynamo

import (
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"docscan-backend/internal/shared/storage/record"
)

// stringSet marshals as a DynamoDB SS attribute.
type stringSet []string

func (s stringSet) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	return &types.AttributeValueMemberSS{Value: append([]string(nil), s...)}, nil
}

// stringList marshals as a DynamoDB L attribute, empty lists included.
type stringList []string

func (l stringList) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	out := make([]types.AttributeValue, 0, len(l))
	for _, v := range l {
		out = append(out, &types.AttributeValueMemberS{Value: v})
	}
	return &types.AttributeValueMemberL{Value: out}, nil
}

// encodable maps record values onto types attributevalue marshals the way
// the tables expect.
func encodable(v any) any {
	switch tv := v.(type) {
	case record.StringSet:
		return stringSet(tv)
	case time.Time:
		return record.FormatTime(tv)
	default:
		return v
	}
}

func encodeItem(item record.Item) (map[string]types.AttributeValue, error) {
	out := make(map[string]types.AttributeValue, len(item))
	for name, v := range item {
		if set, ok := v.(record.StringSet); ok && len(set) == 0 {
			// DynamoDB rejects empty sets.
			continue
		}
		av, err := attributevalue.Marshal(encodable(v))
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", name, err)
		}
		out[name] = av
	}
	return out, nil
}

func decodeItem(raw map[string]types.AttributeValue) (record.Item, error) {
	item := make(record.Item, len(raw))
	for name, av := range raw {
		if ss, ok := av.(*types.AttributeValueMemberSS); ok {
			item[name] = record.StringSet(append([]string(nil), ss.Value...))
			continue
		}
		var v any
		if err := attributevalue.Unmarshal(av, &v); err != nil {
			return nil, fmt.Errorf("decode attribute %s: %w", name, err)
		}
		item[name] = v
	}
	return item, nil
}
