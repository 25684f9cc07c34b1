package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"medibridge-assistant/internal/domain"
)

type fakeDynamo struct {
	txErr       error
	lastTxInput *dynamodb.TransactWriteItemsInput
	calls       int
}

func (f *fakeDynamo) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.calls++
	f.lastTxInput = in
	return &dynamodb.TransactWriteItemsOutput{}, f.txErr
}

var fixedNow = time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)

func mustNewClient(t *testing.T, db *fakeDynamo) *Client {
	t.Helper()
	c, err := New(db, "test-table")
	require.NoError(t, err)
	c.now = func() time.Time { return fixedNow }
	return c
}

func sAttr(t *testing.T, item map[string]types.AttributeValue, key string) string {
	t.Helper()
	v, ok := item[key].(*types.AttributeValueMemberS)
	require.True(t, ok, "attribute %q is not a string", key)
	return v.Value
}

func nAttr(t *testing.T, item map[string]types.AttributeValue, key string) string {
	t.Helper()
	v, ok := item[key].(*types.AttributeValueMemberN)
	require.True(t, ok, "attribute %q is not a number", key)
	return v.Value
}

func TestNew_Validates(t *testing.T) {
	_, err := New(nil, "t")
	require.Error(t, err)

	_, err = New(&fakeDynamo{}, "  ")
	require.Error(t, err)
}

func TestRecordExchange_WritesExchangeAndMeta(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)

	err := c.RecordExchange(context.Background(), "sess-1", "blood", "Blood donations...", "blood", true)
	require.NoError(t, err)
	require.Equal(t, 1, db.calls)

	items := db.lastTxInput.TransactItems
	require.Len(t, items, 2)

	put := items[0].Put
	require.NotNil(t, put)
	require.Equal(t, "test-table", *put.TableName)
	require.Equal(t, "attribute_not_exists(PK) AND attribute_not_exists(SK)", *put.ConditionExpression)
	require.Equal(t, "SESSION#sess-1", sAttr(t, put.Item, "PK"))
	require.Equal(t, "MSG#2026-03-01T12:30:00Z", sAttr(t, put.Item, "SK"))
	require.Equal(t, "blood", sAttr(t, put.Item, "message"))
	require.Equal(t, "Blood donations...", sAttr(t, put.Item, "reply"))
	require.Equal(t, "blood", sAttr(t, put.Item, "node"))
	matched, ok := put.Item["matched"].(*types.AttributeValueMemberBOOL)
	require.True(t, ok)
	require.True(t, matched.Value)
	require.Equal(t, "1774960200", nAttr(t, put.Item, "ttl"))

	upd := items[1].Update
	require.NotNil(t, upd)
	require.Equal(t, "SESSION#sess-1", sAttr(t, upd.Key, "PK"))
	require.Equal(t, "META#", sAttr(t, upd.Key, "SK"))
	require.Contains(t, *upd.UpdateExpression, "ADD exchanges :one")
	require.Equal(t, "ttl", upd.ExpressionAttributeNames["#ttl"])
	require.Equal(t, "2026-03-01T12:30:00Z", sAttr(t, upd.ExpressionAttributeValues, ":la"))
	require.Equal(t, "1", nAttr(t, upd.ExpressionAttributeValues, ":one"))
}

func TestRecordExchange_RequiresSessionID(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)
	err := c.RecordExchange(context.Background(), " ", "hi", "hello", "menu", true)
	require.Error(t, err)
	require.Equal(t, 0, db.calls)
}

func TestRecordExchange_WrapsError(t *testing.T) {
	db := &fakeDynamo{txErr: errors.New("TransactionCanceledException")}
	c := mustNewClient(t, db)
	err := c.RecordExchange(context.Background(), "sess-1", "hi", "hello", "menu", true)
	require.Error(t, err)
	require.Contains(t, err.Error(), "RecordExchange")
	require.Contains(t, err.Error(), "TransactionCanceledException")
}

func TestSaveExchange_RequiresKeys(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{})
	err := c.SaveExchange(context.Background(), domain.Exchange{SessionID: "s"}, fixedNow)
	require.Error(t, err)
	require.Contains(t, err.Error(), "PK and SK")
}

func TestNewExchange(t *testing.T) {
	ex := NewExchange("abc", "money", "Monetary...", "money", false, fixedNow)
	require.Equal(t, "SESSION#abc", ex.PK)
	require.Equal(t, "MSG#2026-03-01T12:30:00Z", ex.SK)
	require.Equal(t, "abc", ex.SessionID)
	require.False(t, ex.Matched)
	require.Equal(t, fixedNow.Add(30*24*time.Hour).Unix(), ex.TTL)
}
