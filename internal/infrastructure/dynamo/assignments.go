package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-market-notify/internal/domain"
)

// AssignmentRepo stores which delivery agents work for which seller.
// Table key: seller_id (hash) + agent_id (range).
type AssignmentRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewAssignmentRepo(client *dynamodb.Client, tableName string) *AssignmentRepo {
	return &AssignmentRepo{client: client, tableName: tableName}
}

func (r *AssignmentRepo) Put(ctx context.Context, a *domain.DeliveryAssignment) error {
	item, err := attributevalue.MarshalMap(a)
	if err != nil {
		return fmt.Errorf("marshal delivery assignment: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *AssignmentRepo) Delete(ctx context.Context, sellerID, agentID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       compositeKey("seller_id", sellerID, "agent_id", agentID),
	})
	return err
}

// ListActive returns the active assignments of one seller.
func (r *AssignmentRepo) ListActive(ctx context.Context, sellerID string) ([]domain.DeliveryAssignment, error) {
	items, err := queryAll(ctx, r.client, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("seller_id = :s"),
		FilterExpression:       aws.String("#a = :t"),
		ExpressionAttributeNames: map[string]string{
			"#a": fieldActive,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":s": &types.AttributeValueMemberS{Value: sellerID},
			":t": &types.AttributeValueMemberBOOL{Value: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("query assignments of %s: %w", sellerID, err)
	}
	var out []domain.DeliveryAssignment
	if err := attributevalue.UnmarshalListOfMaps(items, &out); err != nil {
		return nil, err
	}
	return out, nil
}
