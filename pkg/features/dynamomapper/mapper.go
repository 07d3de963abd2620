package dynamomapper

import (
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sirupsen/logrus"
)

// SimplifyDynamoDBItem flattens a raw DynamoDB item into plain Go values.
// Numbers stay strings so no precision is lost.
func SimplifyDynamoDBItem(item map[string]types.AttributeValue) map[string]interface{} {
	result := make(map[string]interface{}, len(item))
	for key, value := range item {
		result[key] = SimplifyValue(value)
	}
	return result
}

func SimplifyValue(value types.AttributeValue) interface{} {
	switch v := value.(type) {
	case *types.AttributeValueMemberS:
		return v.Value
	case *types.AttributeValueMemberN:
		return v.Value
	case *types.AttributeValueMemberBOOL:
		return v.Value
	case *types.AttributeValueMemberNULL:
		return nil
	case *types.AttributeValueMemberSS:
		return v.Value
	case *types.AttributeValueMemberNS:
		return v.Value
	case *types.AttributeValueMemberM:
		return SimplifyDynamoDBItem(v.Value)
	case *types.AttributeValueMemberL:
		list := make([]interface{}, 0, len(v.Value))
		for _, subValue := range v.Value {
			list = append(list, SimplifyValue(subValue))
		}
		return list
	default:
		return nil
	}
}

// Fields turns an item into log fields, prefixing every attribute name.
func Fields(prefix string, item map[string]types.AttributeValue) logrus.Fields {
	fields := logrus.Fields{}
	for key, value := range SimplifyDynamoDBItem(item) {
		fields[prefix+key] = value
	}
	return fields
}
