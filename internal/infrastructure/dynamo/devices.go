package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-market-notify/internal/domain"
)

const (
	deviceUUIDIndex = "device_uuid-index"
	deviceUserIndex = "user_id-index"
	fieldToken      = "token"
)

// DeviceRepo stores push endpoints. Device rows are keyed by device_id and reachable by
// device UUID (one physical client) and by owner.
type DeviceRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewDeviceRepo(client *dynamodb.Client, tableName string) *DeviceRepo {
	return &DeviceRepo{client: client, tableName: tableName}
}

// Create writes a new device. An existing device_id fails with domain.ErrConflict.
func (r *DeviceRepo) Create(ctx context.Context, d *domain.Device) error {
	item, err := attributevalue.MarshalMap(d)
	if err != nil {
		return fmt.Errorf("marshal device: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(device_id)"),
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return fmt.Errorf("device %s: %w", d.DeviceID, domain.ErrConflict)
	}
	return err
}

func (r *DeviceRepo) Get(ctx context.Context, deviceID string) (*domain.Device, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("device_id", deviceID),
	})
	if err != nil {
		return nil, err
	}
	return unmarshalDevice(out.Item)
}

// GetByUUID finds the device registered for one physical client.
func (r *DeviceRepo) GetByUUID(ctx context.Context, uuid string) (*domain.Device, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(deviceUUIDIndex),
		KeyConditionExpression: aws.String("device_uuid = :u"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":u": &types.AttributeValueMemberS{Value: uuid},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("device not found: %w", domain.ErrNotFound)
	}
	return unmarshalDevice(out.Items[0])
}

// ListByUser returns the enabled devices of one user, with or without a token.
func (r *DeviceRepo) ListByUser(ctx context.Context, userID string) ([]domain.Device, error) {
	items, err := queryAll(ctx, r.client, enabledDevicesQuery(r.tableName, userID, false))
	if err != nil {
		return nil, fmt.Errorf("devices of %s: %w", userID, err)
	}
	var devices []domain.Device
	if err := attributevalue.UnmarshalListOfMaps(items, &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

// DeliverableTokens returns the endpoint tokens of one user's enabled devices.
// Devices without a token are filtered out by DynamoDB and only the token is read.
func (r *DeviceRepo) DeliverableTokens(ctx context.Context, userID string) ([]string, error) {
	items, err := queryAll(ctx, r.client, enabledDevicesQuery(r.tableName, userID, true))
	if err != nil {
		return nil, fmt.Errorf("tokens of %s: %w", userID, err)
	}
	var rows []struct {
		Token string `dynamodbav:"token"`
	}
	if err := attributevalue.UnmarshalListOfMaps(items, &rows); err != nil {
		return nil, err
	}
	tokens := make([]string, 0, len(rows))
	for _, row := range rows {
		tokens = append(tokens, row.Token)
	}
	return tokens, nil
}

func (r *DeviceRepo) Update(ctx context.Context, deviceID string, updates map[string]interface{}) error {
	updates[fieldUpdatedAt] = time.Now().UTC().Format(time.RFC3339)
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("device_id", deviceID),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	return err
}

// SoftDelete disables the device; it keeps its row so a re-registration can reuse it.
func (r *DeviceRepo) SoftDelete(ctx context.Context, deviceID string) error {
	return r.Update(ctx, deviceID, map[string]interface{}{fieldEnable: false})
}

// enabledDevicesQuery selects a user's enabled devices through the owner index.
// withToken also drops devices with a missing or empty token and projects the token alone.
func enabledDevicesQuery(table, userID string, withToken bool) *dynamodb.QueryInput {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(table),
		IndexName:              aws.String(deviceUserIndex),
		KeyConditionExpression: aws.String("user_id = :uid"),
		FilterExpression:       aws.String("#en = :t"),
		ExpressionAttributeNames: map[string]string{
			"#en": fieldEnable,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
			":t":   &types.AttributeValueMemberBOOL{Value: true},
		},
	}
	if withToken {
		in.FilterExpression = aws.String("#en = :t AND attribute_type(#tok, :s) AND size(#tok) > :zero")
		in.ProjectionExpression = aws.String("#tok")
		in.ExpressionAttributeNames["#tok"] = fieldToken
		in.ExpressionAttributeValues[":s"] = &types.AttributeValueMemberS{Value: "S"}
		in.ExpressionAttributeValues[":zero"] = &types.AttributeValueMemberN{Value: "0"}
	}
	return in
}

func unmarshalDevice(item map[string]types.AttributeValue) (*domain.Device, error) {
	if item == nil {
		return nil, fmt.Errorf("device not found: %w", domain.ErrNotFound)
	}
	var d domain.Device
	if err := attributevalue.UnmarshalMap(item, &d); err != nil {
		return nil, fmt.Errorf("unmarshal device: %w", err)
	}
	return &d, nil
}
