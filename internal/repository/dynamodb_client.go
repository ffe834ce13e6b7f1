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

	"oneinbox/internal/domain"
)

const (
	skPrefixMsg     = "MSG#"
	skMeta          = "META#"
	ttlDuration     = 30 * 24 * time.Hour // 30-day TTL
	defaultHistory  = 50
	condNewMessage  = "attribute_not_exists(PK) AND attribute_not_exists(SK)"
	updateMetaExprn = "SET lastActivity = :now, platform = :platform, #user = :user, intent = :intent, #ttl = :ttl"
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Archive is the read/write surface shared by the DynamoDB and SQL archives.
type Archive interface {
	SaveTurn(ctx context.Context, turn domain.ArchivedTurn) error
	GetHistory(ctx context.Context, threadID string, limit int) ([]domain.Message, error)
	GetTurnCount(ctx context.Context, threadID string) (int, error)
}

// Client archives inbox turns in a single DynamoDB table.
type Client struct {
	api       dynamodbAPI
	tableName string
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName}, nil
}

// threadPK returns the DynamoDB partition key for a thread.
func threadPK(threadID string) string {
	return "THREAD#" + threadID
}

// msgSK orders messages by timestamp, then sequence; the id keeps keys
// unique across store resets.
func msgSK(msg domain.Message) string {
	return fmt.Sprintf("%s%s#%010d#%s", skPrefixMsg, msg.Timestamp, msg.Seq, msg.ID)
}

// ttlValue returns a Unix timestamp 30 days after now.
func ttlValue(now time.Time) int64 {
	return now.Add(ttlDuration).Unix()
}

var nowFunc = time.Now

// SaveTurn writes the inbound message, the reply and the thread metadata
// in one transaction.
func (c *Client) SaveTurn(ctx context.Context, turn domain.ArchivedTurn) error {
	if turn.Inbound.ThreadID == "" || turn.Inbound.ID == "" || turn.Reply.ID == "" {
		return errors.New("repository: SaveTurn: thread and message ids are required")
	}
	if turn.Reply.ThreadID != turn.Inbound.ThreadID {
		return errors.New("repository: SaveTurn: reply belongs to another thread")
	}
	ts := nowFunc()
	ttl := ttlValue(ts)

	values := map[string]types.AttributeValue{
		":now":      &types.AttributeValueMemberS{Value: ts.UTC().Format(time.RFC3339)},
		":platform": &types.AttributeValueMemberS{Value: string(turn.Inbound.Platform)},
		":user":     &types.AttributeValueMemberS{Value: turn.Inbound.User},
		":intent":   &types.AttributeValueMemberS{Value: turn.Intent},
		":ttl":      &types.AttributeValueMemberN{Value: strconv.FormatInt(ttl, 10)},
		":one":      &types.AttributeValueMemberN{Value: "1"},
	}
	expr := updateMetaExprn
	// Keep the last issued ticket when this turn carries none.
	if turn.Ticket != "" {
		expr += ", ticket = :ticket"
		values[":ticket"] = &types.AttributeValueMemberS{Value: turn.Ticket}
	}
	expr += " ADD turns :one"

	_, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           aws.String(c.tableName),
					Item:                messageItem(turn.Inbound, ttl),
					ConditionExpression: aws.String(condNewMessage),
				},
			},
			{
				Put: &types.Put{
					TableName:           aws.String(c.tableName),
					Item:                messageItem(turn.Reply, ttl),
					ConditionExpression: aws.String(condNewMessage),
				},
			},
			{
				Update: &types.Update{
					TableName: aws.String(c.tableName),
					Key: map[string]types.AttributeValue{
						"PK": &types.AttributeValueMemberS{Value: threadPK(turn.Inbound.ThreadID)},
						"SK": &types.AttributeValueMemberS{Value: skMeta},
					},
					UpdateExpression:          aws.String(expr),
					ExpressionAttributeNames:  map[string]string{"#user": "user", "#ttl": "ttl"},
					ExpressionAttributeValues: values,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: SaveTurn: %w", err)
	}
	return nil
}

// GetHistory returns up to limit of the most recent messages of a thread
// in chronological order.
func (c *Client) GetHistory(ctx context.Context, threadID string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = defaultHistory
	}
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: threadPK(threadID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixMsg},
		},
		// Read newest first so LIMIT keeps the most recent messages.
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	}

	out, err := c.api.Query(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("repository: GetHistory query: %w", err)
	}

	msgs := make([]domain.Message, 0, len(out.Items))
	for _, item := range out.Items {
		msg, err := itemToMessage(item)
		if err != nil {
			return nil, fmt.Errorf("repository: GetHistory unmarshal: %w", err)
		}
		msgs = append(msgs, msg)
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// GetTurnCount returns the number of archived turns of a thread.
func (c *Client) GetTurnCount(ctx context.Context, threadID string) (int, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: threadPK(threadID)},
			"SK": &types.AttributeValueMemberS{Value: skMeta},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return 0, fmt.Errorf("repository: GetTurnCount get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return 0, nil
	}

	turns, err := intAttr(out.Item, "turns")
	if err != nil {
		return 0, fmt.Errorf("repository: GetTurnCount decode turns: %w", err)
	}
	return int(turns), nil
}

func messageItem(msg domain.Message, ttl int64) map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: threadPK(msg.ThreadID)},
		"SK":        &types.AttributeValueMemberS{Value: msgSK(msg)},
		"id":        &types.AttributeValueMemberS{Value: msg.ID},
		"seq":       &types.AttributeValueMemberN{Value: strconv.FormatInt(msg.Seq, 10)},
		"threadId":  &types.AttributeValueMemberS{Value: msg.ThreadID},
		"platform":  &types.AttributeValueMemberS{Value: string(msg.Platform)},
		"role":      &types.AttributeValueMemberS{Value: string(msg.Role)},
		"user":      &types.AttributeValueMemberS{Value: msg.User},
		"text":      &types.AttributeValueMemberS{Value: msg.Text},
		"timestamp": &types.AttributeValueMemberS{Value: msg.Timestamp},
		"ttl":       &types.AttributeValueMemberN{Value: strconv.FormatInt(ttl, 10)},
	}
	if msg.ReplyTo != "" {
		item["replyTo"] = &types.AttributeValueMemberS{Value: msg.ReplyTo}
	}
	return item
}

// itemToMessage converts a DynamoDB attribute map to a Message.
func itemToMessage(item map[string]types.AttributeValue) (domain.Message, error) {
	var msg domain.Message
	var err error
	fields := []struct {
		key string
		dst *string
	}{
		{"id", &msg.ID},
		{"threadId", &msg.ThreadID},
		{"user", &msg.User},
		{"text", &msg.Text},
		{"timestamp", &msg.Timestamp},
	}
	for _, f := range fields {
		if *f.dst, err = strAttr(item, f.key); err != nil {
			return domain.Message{}, err
		}
	}
	platform, err := strAttr(item, "platform")
	if err != nil {
		return domain.Message{}, err
	}
	role, err := strAttr(item, "role")
	if err != nil {
		return domain.Message{}, err
	}
	seq, err := intAttr(item, "seq")
	if err != nil {
		return domain.Message{}, err
	}
	msg.ReplyTo, _ = strAttr(item, "replyTo") // absent on inbound messages
	msg.Platform = domain.Platform(platform)
	msg.Role = domain.Role(role)
	msg.Seq = seq
	return msg, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func intAttr(item map[string]types.AttributeValue, key string) (int64, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
