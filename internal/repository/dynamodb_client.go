package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"medibridge-assistant/internal/domain"
)

const (
	skPrefixMsg = "MSG#"
	skMeta      = "META#"
	ttlDuration = 30 * 24 * time.Hour
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
type dynamodbAPI interface {
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Client writes the responder's exchange log to a single DynamoDB table.
type Client struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName, now: time.Now}, nil
}

func sessionPK(sessionID string) string {
	return "SESSION#" + sessionID
}

func msgSK(ts time.Time) string {
	return skPrefixMsg + ts.UTC().Format(time.RFC3339Nano)
}

func ttlValue(now time.Time) int64 {
	return now.Add(ttlDuration).Unix()
}

// RecordExchange persists one answered message and bumps the session counter.
func (c *Client) RecordExchange(ctx context.Context, sessionID, message, reply, nodeID string, matched bool) error {
	if strings.TrimSpace(sessionID) == "" {
		return errors.New("repository: RecordExchange: session id is required")
	}
	now := c.now().UTC()
	ex := NewExchange(sessionID, message, reply, nodeID, matched, now)
	if err := c.SaveExchange(ctx, ex, now); err != nil {
		return fmt.Errorf("repository: RecordExchange: %w", err)
	}
	return nil
}

// SaveExchange writes the exchange and updates the session metadata in one
// transaction. The exchange write fails if its key already exists.
func (c *Client) SaveExchange(ctx context.Context, ex domain.Exchange, now time.Time) error {
	if ex.PK == "" || ex.SK == "" {
		return errors.New("repository: SaveExchange: PK and SK are required")
	}

	_, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           aws.String(c.tableName),
					Item:                exchangeItem(ex),
					ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
				},
			},
			{
				Update: metaUpdate(c.tableName, ex.SessionID, now),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: SaveExchange: %w", err)
	}
	return nil
}

// NewExchange constructs an Exchange with keys and TTL derived from now.
func NewExchange(sessionID, message, reply, nodeID string, matched bool, now time.Time) domain.Exchange {
	return domain.Exchange{
		PK:        sessionPK(sessionID),
		SK:        msgSK(now),
		SessionID: sessionID,
		Message:   message,
		Reply:     reply,
		NodeID:    nodeID,
		Matched:   matched,
		TTL:       ttlValue(now),
	}
}

func metaUpdate(table, sessionID string, now time.Time) *types.Update {
	return &types.Update{
		TableName: aws.String(table),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
			"SK": &types.AttributeValueMemberS{Value: skMeta},
		},
		// ttl is a DynamoDB reserved word.
		UpdateExpression: aws.String("SET sessionId = :sid, lastActivity = :la, #ttl = :ttl ADD exchanges :one"),
		ExpressionAttributeNames: map[string]string{
			"#ttl": "ttl",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":sid": &types.AttributeValueMemberS{Value: sessionID},
			":la":  &types.AttributeValueMemberS{Value: now.UTC().Format(time.RFC3339)},
			":ttl": &types.AttributeValueMemberN{Value: strconv.FormatInt(ttlValue(now), 10)},
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
	}
}

func exchangeItem(ex domain.Exchange) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: ex.PK},
		"SK":        &types.AttributeValueMemberS{Value: ex.SK},
		"sessionId": &types.AttributeValueMemberS{Value: ex.SessionID},
		"message":   &types.AttributeValueMemberS{Value: ex.Message},
		"reply":     &types.AttributeValueMemberS{Value: ex.Reply},
		"node":      &types.AttributeValueMemberS{Value: ex.NodeID},
		"matched":   &types.AttributeValueMemberBOOL{Value: ex.Matched},
		"ttl":       &types.AttributeValueMemberN{Value: strconv.FormatInt(ex.TTL, 10)},
	}
}
