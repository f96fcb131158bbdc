package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"
)

const (
	pkPrefix      = "SESSION#"
	skRestoration = "RESTORATION#"
)

// DynamoAPI is the subset of *dynamodb.Client used by DynamoStore.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DynamoStore implements RecordStore on a DynamoDB table.
type DynamoStore struct {
	client    DynamoAPI
	tableName string
	now       func() time.Time
}

var _ RecordStore = (*DynamoStore)(nil)

// NewDynamoStore creates a DynamoStore for the given table.
func NewDynamoStore(client DynamoAPI, tableName string) *DynamoStore {
	return &DynamoStore{
		client:    client,
		tableName: tableName,
		now:       time.Now,
	}
}

func sessionPK(sessionID string) string {
	return pkPrefix + sessionID
}

// restorationSK zero-pads the attempt so sort keys order numerically.
func restorationSK(attempt uint64) string {
	return fmt.Sprintf("%s%08d", skRestoration, attempt)
}

// putItem marshals data and writes it with PK, SK and the expiresAt TTL.
func (s *DynamoStore) putItem(ctx context.Context, pk, sk string, data interface{}) error {
	item, err := attributevalue.MarshalMap(data)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	item["PK"] = &types.AttributeValueMemberS{Value: pk}
	item["SK"] = &types.AttributeValueMemberS{Value: sk}
	item["expiresAt"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(s.now().Add(RecordTTL).Unix(), 10)}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("PutItem PK=%s SK=%s: %w", pk, sk, err)
	}
	return nil
}

// getItem reads one item into out. It returns false when the item does not exist.
func (s *DynamoStore) getItem(ctx context.Context, pk, sk string, out interface{}) (bool, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk},
			"SK": &types.AttributeValueMemberS{Value: sk},
		},
	})
	if err != nil {
		return false, fmt.Errorf("GetItem PK=%s SK=%s: %w", pk, sk, err)
	}
	if result.Item == nil {
		return false, nil
	}
	if err := attributevalue.UnmarshalMap(result.Item, out); err != nil {
		return false, fmt.Errorf("unmarshal PK=%s SK=%s: %w", pk, sk, err)
	}
	return true, nil
}

// queryBySKPrefix returns every item of a session whose SK begins with skPrefix,
// following pagination.
func (s *DynamoStore) queryBySKPrefix(ctx context.Context, sessionID, skPrefix string) ([]map[string]types.AttributeValue, error) {
	pk := sessionPK(sessionID)

	input := &dynamodb.QueryInput{
		TableName:              &s.tableName,
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :skPrefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":       &types.AttributeValueMemberS{Value: pk},
			":skPrefix": &types.AttributeValueMemberS{Value: skPrefix},
		},
	}

	var allItems []map[string]types.AttributeValue
	for {
		result, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("Query PK=%s SK prefix=%s: %w", pk, skPrefix, err)
		}
		allItems = append(allItems, result.Items...)

		if result.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}
	return allItems, nil
}

func (s *DynamoStore) PutRestoration(ctx context.Context, rec *Restoration) error {
	if rec.CreatedAt == 0 {
		rec.CreatedAt = s.now().Unix()
	}
	if err := s.putItem(ctx, sessionPK(rec.SessionID), restorationSK(rec.Attempt), rec); err != nil {
		return err
	}
	log.Debug().
		Str("session", rec.SessionID).
		Uint64("attempt", rec.Attempt).
		Msg("Restoration record stored")
	return nil
}

func (s *DynamoStore) GetRestoration(ctx context.Context, sessionID string, attempt uint64) (*Restoration, error) {
	var rec Restoration
	found, err := s.getItem(ctx, sessionPK(sessionID), restorationSK(attempt), &rec)
	if err != nil || !found {
		return nil, err
	}
	return &rec, nil
}

// ListRestorations returns a session's records ordered by attempt.
func (s *DynamoStore) ListRestorations(ctx context.Context, sessionID string) ([]*Restoration, error) {
	items, err := s.queryBySKPrefix(ctx, sessionID, skRestoration)
	if err != nil {
		return nil, err
	}

	recs := make([]*Restoration, 0, len(items))
	for _, item := range items {
		var rec Restoration
		if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
			return nil, fmt.Errorf("unmarshal restoration: %w", err)
		}
		recs = append(recs, &rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Attempt < recs[j].Attempt })
	return recs, nil
}
