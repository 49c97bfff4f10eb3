package links

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/imrishuroy/go-paymentlinks/internal/aws"
)

// DefaultQueryLimit bounds QueryByStatus when the caller passes limit <= 0.
const DefaultQueryLimit = 100

var (
	// ErrAlreadyExists is returned by Put when the id is taken.
	ErrAlreadyExists = errors.New("payment link already exists")
	// ErrNotFound is returned by updates against a missing id.
	ErrNotFound = errors.New("payment link not found")
)

// Store encapsulates operations on the payment links table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// Put writes a new record. It refuses to overwrite an existing id.
func (s *Store) Put(ctx context.Context, link *PaymentLink) error {
	item, err := attributevalue.MarshalMap(link)
	if err != nil {
		return fmt.Errorf("marshal payment link: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(payment_link_id)"),
	})
	if err != nil {
		if isConditionFailed(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("put item: %w", err)
	}
	return nil
}

// Get fetches a payment link by id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, id string) (*PaymentLink, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            keyOf(id),
		ConsistentRead: boolPtr(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var link PaymentLink
	if err := attributevalue.UnmarshalMap(out.Item, &link); err != nil {
		return nil, fmt.Errorf("unmarshal payment link: %w", err)
	}
	return &link, nil
}

// UpdateFields sets the given attributes plus updated_at and returns the full
// updated record. Nil values are skipped. Writes are last-write-wins.
func (s *Store) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) (*PaymentLink, error) {
	names := map[string]string{"#ua": AttrUpdatedAt}
	values := map[string]types.AttributeValue{
		":ua": timeValue(s.nowFunc()),
	}
	expr := "SET #ua = :ua"

	// stable ordering keeps expressions deterministic
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for i, k := range keys {
		v := fields[k]
		if isNil(v) || k == AttrUpdatedAt || k == AttrID {
			continue
		}
		av, err := attributevalue.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal field %s: %w", k, err)
		}
		n := fmt.Sprintf("#f%d", i)
		p := fmt.Sprintf(":f%d", i)
		names[n] = k
		values[p] = av
		expr += fmt.Sprintf(", %s = %s", n, p)
	}

	return s.update(ctx, id, expr, names, values)
}

// AppendHistory appends one entry to event_history.
func (s *Store) AppendHistory(ctx context.Context, id string, entry HistoryEntry) (*PaymentLink, error) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.nowFunc()
	}
	ev, err := attributevalue.Marshal([]HistoryEntry{entry})
	if err != nil {
		return nil, fmt.Errorf("marshal history entry: %w", err)
	}
	return s.update(ctx, id,
		"SET #h = list_append(if_not_exists(#h, :empty), :ev), #ua = :ua",
		map[string]string{"#h": AttrEventHistory, "#ua": AttrUpdatedAt},
		map[string]types.AttributeValue{
			":ev":    ev,
			":empty": &types.AttributeValueMemberL{Value: []types.AttributeValue{}},
			":ua":    timeValue(s.nowFunc()),
		})
}

// NotificationUpdate carries the channels to overwrite; nil channels are left alone.
type NotificationUpdate struct {
	SMS   *ChannelStatus
	Email *ChannelStatus
}

// UpdateNotificationStatus overwrites per-channel delivery state.
func (s *Store) UpdateNotificationStatus(ctx context.Context, id string, upd NotificationUpdate) (*PaymentLink, error) {
	names := map[string]string{"#ua": AttrUpdatedAt, "#ns": AttrNotificationStatus}
	values := map[string]types.AttributeValue{":ua": timeValue(s.nowFunc())}
	expr := "SET #ua = :ua"

	set := func(channel string, cs *ChannelStatus) error {
		if cs == nil {
			return nil
		}
		av, err := attributevalue.Marshal(cs)
		if err != nil {
			return fmt.Errorf("marshal %s status: %w", channel, err)
		}
		names["#"+channel] = channel
		values[":"+channel] = av
		expr += fmt.Sprintf(", #ns.#%s = :%s", channel, channel)
		return nil
	}
	if err := set("sms", upd.SMS); err != nil {
		return nil, err
	}
	if err := set("email", upd.Email); err != nil {
		return nil, err
	}

	return s.update(ctx, id, expr, names, values)
}

// QueryByStatus returns up to limit records currently in status.
func (s *Store) QueryByStatus(ctx context.Context, status Status, limit int) ([]PaymentLink, error) {
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	var (
		out   []PaymentLink
		start map[string]types.AttributeValue
	)
	for {
		res, err := s.client.Scan(ctx, &dyn.ScanInput{
			TableName:                &s.tableName,
			FilterExpression:         awsString("#s = :status"),
			ExpressionAttributeNames: map[string]string{"#s": AttrStatus},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":status": &types.AttributeValueMemberS{Value: string(status)},
			},
			ExclusiveStartKey: start,
		})
		if err != nil {
			return nil, fmt.Errorf("scan by status %s: %w", status, err)
		}

		var page []PaymentLink
		if err := attributevalue.UnmarshalListOfMaps(res.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal payment links: %w", err)
		}
		for _, l := range page {
			out = append(out, l)
			if len(out) >= limit {
				return out, nil
			}
		}

		if len(res.LastEvaluatedKey) == 0 {
			return out, nil
		}
		start = res.LastEvaluatedKey
	}
}

func (s *Store) update(ctx context.Context, id, expr string, names map[string]string, values map[string]types.AttributeValue) (*PaymentLink, error) {
	names["#pk"] = AttrID
	out, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                 &s.tableName,
		Key:                       keyOf(id),
		UpdateExpression:          &expr,
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ConditionExpression:       awsString("attribute_exists(#pk)"),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		if isConditionFailed(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update item: %w", err)
	}
	var link PaymentLink
	if err := attributevalue.UnmarshalMap(out.Attributes, &link); err != nil {
		return nil, fmt.Errorf("unmarshal payment link: %w", err)
	}
	return &link, nil
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "ConditionalCheckFailedException"
}

func keyOf(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		AttrID: &types.AttributeValueMemberS{Value: id},
	}
}

func timeValue(t time.Time) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: t.UTC().Format(time.RFC3339Nano)}
}

func isNil(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return true
	case *float64:
		return x == nil
	case *time.Time:
		return x == nil
	case *string:
		return x == nil
	}
	return false
}

func awsString(s string) *string { return &s }
func boolPtr(b bool) *bool       { return &b }
