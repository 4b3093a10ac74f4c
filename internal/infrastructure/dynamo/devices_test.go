package dynamo

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnabledDevicesQuery_ListsWholeRows(t *testing.T) {
	in := enabledDevicesQuery("devices", "u1", false)
	assert.Equal(t, deviceUserIndex, aws.ToString(in.IndexName))
	assert.Equal(t, "#en = :t", aws.ToString(in.FilterExpression))
	assert.Nil(t, in.ProjectionExpression)
	assert.Equal(t, &types.AttributeValueMemberS{Value: "u1"}, in.ExpressionAttributeValues[":uid"])
}

func TestEnabledDevicesQuery_TokensOnly(t *testing.T) {
	in := enabledDevicesQuery("devices", "u1", true)
	assert.Contains(t, aws.ToString(in.FilterExpression), "attribute_type(#tok, :s)")
	assert.Contains(t, aws.ToString(in.FilterExpression), "size(#tok) > :zero")
	assert.Equal(t, "#tok", aws.ToString(in.ProjectionExpression))
	assert.Equal(t, fieldToken, in.ExpressionAttributeNames["#tok"])
	assert.Equal(t, &types.AttributeValueMemberS{Value: "S"}, in.ExpressionAttributeValues[":s"])
}

func TestUnmarshalDevice(t *testing.T) {
	_, err := unmarshalDevice(nil)
	assert.ErrorContains(t, err, "not found")

	d, err := unmarshalDevice(map[string]types.AttributeValue{
		"device_id": &types.AttributeValueMemberS{Value: "d1"},
		"user_id":   &types.AttributeValueMemberS{Value: "u1"},
		"token":     &types.AttributeValueMemberS{Value: "arn:endpoint"},
		"enable":    &types.AttributeValueMemberBOOL{Value: true},
	})
	require.NoError(t, err)
	assert.Equal(t, "d1", d.DeviceID)
	assert.True(t, d.Deliverable())
}
