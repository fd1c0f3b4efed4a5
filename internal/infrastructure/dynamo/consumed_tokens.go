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
	"github.com/verify-emails/internal/domain"
)

type ledgerTableAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// ConsumedTokenRepo records redeemed verification tokens so a token can only be redeemed once.
// PK: token_hash. Items expire (DynamoDB TTL) when the token itself would have expired.
type ConsumedTokenRepo struct {
	client    ledgerTableAPI
	tableName string
}

func NewConsumedTokenRepo(client ledgerTableAPI, tableName string) *ConsumedTokenRepo {
	return &ConsumedTokenRepo{client: client, tableName: tableName}
}

// Consume atomically marks rawToken as used. It returns domain.ErrTokenConsumed
// when the token was already redeemed.
func (r *ConsumedTokenRepo) Consume(ctx context.Context, rawToken, accountID string, expiresAt time.Time) error {
	item, err := attributevalue.MarshalMap(domain.ConsumedToken{
		TokenHash:  TokenHash(rawToken),
		AccountID:  accountID,
		ConsumedAt: time.Now().Unix(),
		ExpiresAt:  expiresAt.Unix(),
	})
	if err != nil {
		return fmt.Errorf("marshal consumed token: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(token_hash)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return domain.ErrTokenConsumed
		}
		return fmt.Errorf("put consumed token: %w", err)
	}
	return nil
}
