package dynamomapper_test

import (
	"reflect"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sirupsen/logrus"

	"github.com/Slimo300/Session-Reminder-Serverless-Go/pkg/features/dynamomapper"
)

func TestSimplifyDynamoDBItem(t *testing.T) {
	testCases := []struct {
		name           string
		item           map[string]types.AttributeValue
		expectedResult map[string]interface{}
	}{
		{
			name: "session attributes",
			item: map[string]types.AttributeValue{
				"summary":  &types.AttributeValueMemberS{Value: "Alice Tutoring"},
				"utcStart": &types.AttributeValueMemberS{Value: "2026-10-18T10:00:00+00:00"},
			},
			expectedResult: map[string]interface{}{
				"summary":  "Alice Tutoring",
				"utcStart": "2026-10-18T10:00:00+00:00",
			},
		},
		{
			name: "contact number",
			item: map[string]types.AttributeValue{
				"number1": &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
					"phoneNumber": &types.AttributeValueMemberS{Value: "+15550001111"},
					"smsEnabled":  &types.AttributeValueMemberBOOL{Value: true},
				}},
			},
			expectedResult: map[string]interface{}{
				"number1": map[string]interface{}{
					"phoneNumber": "+15550001111",
					"smsEnabled":  true,
				},
			},
		},
		{
			name: "number and null",
			item: map[string]types.AttributeValue{
				"expireAt": &types.AttributeValueMemberN{Value: "1760000000"},
				"docUrl":   &types.AttributeValueMemberNULL{Value: true},
			},
			expectedResult: map[string]interface{}{
				"expireAt": "1760000000",
				"docUrl":   nil,
			},
		},
		{
			name: "list type",
			item: map[string]types.AttributeValue{
				"tags": &types.AttributeValueMemberL{Value: []types.AttributeValue{
					&types.AttributeValueMemberS{Value: "algebra"}, &types.AttributeValueMemberS{Value: "geometry"},
				}},
			},
			expectedResult: map[string]interface{}{
				"tags": []interface{}{"algebra", "geometry"},
			},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			result := dynamomapper.SimplifyDynamoDBItem(testCase.item)

			if !reflect.DeepEqual(result, testCase.expectedResult) {
				t.Errorf("Expected response: %v is different than actual one: %v", testCase.expectedResult, result)
			}
		})
	}
}

func TestFields(t *testing.T) {
	fields := dynamomapper.Fields("item.", map[string]types.AttributeValue{
		"sessionId": &types.AttributeValueMemberS{Value: "s-1"},
	})

	expected := logrus.Fields{"item.sessionId": "s-1"}
	if !reflect.DeepEqual(fields, expected) {
		t.Errorf("Expected fields: %v, got: %v", expected, fields)
	}
}
