// Package linkstest provides an in-memory DynamoDB double understanding the
// expressions issued by links.Store and idempotency.Store.
package linkstest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/go-paymentlinks/internal/links"
)

// FakeDynamo stores items per table keyed by the value of KeyAttr.
type FakeDynamo struct {
	mu      sync.Mutex
	KeyAttr map[string]string // table -> partition key attribute
	Tables  map[string]map[string]map[string]types.AttributeValue

	// PageSize > 0 splits Scan results into pages.
	PageSize int

	// Fail hooks return an error to inject for a call; nil means proceed.
	FailPut    func(in *dyn.PutItemInput) error
	FailGet    func(in *dyn.GetItemInput) error
	FailUpdate func(in *dyn.UpdateItemInput) error
	FailScan   func(in *dyn.ScanInput) error
	FailDelete func(in *dyn.DeleteItemInput) error

	PutCalls, GetCalls, UpdateCalls, ScanCalls, DeleteCalls int
}

func NewFakeDynamo() *FakeDynamo {
	return &FakeDynamo{
		KeyAttr: map[string]string{},
		Tables:  map[string]map[string]map[string]types.AttributeValue{},
	}
}

// NewStore returns a links.Store over a fresh fake with table "payment-links".
func NewStore() (*links.Store, *FakeDynamo) {
	f := NewFakeDynamo()
	f.KeyAttr["payment-links"] = links.AttrID
	return links.NewStore(f, "payment-links"), f
}

func (f *FakeDynamo) table(name string) map[string]map[string]types.AttributeValue {
	t, ok := f.Tables[name]
	if !ok {
		t = map[string]map[string]types.AttributeValue{}
		f.Tables[name] = t
	}
	return t
}

func (f *FakeDynamo) keyAttr(table string) string {
	if k, ok := f.KeyAttr[table]; ok {
		return k
	}
	return links.AttrID
}

func str(av types.AttributeValue) string {
	if s, ok := av.(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func (f *FakeDynamo) PutItem(ctx context.Context, in *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PutCalls++
	if f.FailPut != nil {
		if err := f.FailPut(in); err != nil {
			return nil, err
		}
	}
	tbl := *in.TableName
	ka := f.keyAttr(tbl)
	pk := str(in.Item[ka])
	if pk == "" {
		return nil, errors.New("missing key attribute " + ka)
	}
	if in.ConditionExpression != nil && strings.HasPrefix(*in.ConditionExpression, "attribute_not_exists") {
		if _, exists := f.table(tbl)[pk]; exists {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	f.table(tbl)[pk] = copyItem(in.Item)
	return &dyn.PutItemOutput{}, nil
}

func (f *FakeDynamo) GetItem(ctx context.Context, in *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.GetCalls++
	if f.FailGet != nil {
		if err := f.FailGet(in); err != nil {
			return nil, err
		}
	}
	tbl := *in.TableName
	item, ok := f.table(tbl)[str(in.Key[f.keyAttr(tbl)])]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: copyItem(item)}, nil
}

func (f *FakeDynamo) UpdateItem(ctx context.Context, in *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.UpdateCalls++
	if f.FailUpdate != nil {
		if err := f.FailUpdate(in); err != nil {
			return nil, err
		}
	}
	tbl := *in.TableName
	pk := str(in.Key[f.keyAttr(tbl)])
	item, exists := f.table(tbl)[pk]

	if in.ConditionExpression != nil {
		cond := *in.ConditionExpression
		switch {
		case strings.HasPrefix(cond, "attribute_exists"):
			if !exists {
				return nil, &types.ConditionalCheckFailedException{}
			}
		case strings.Contains(cond, "="):
			// "#n = :v"
			parts := strings.SplitN(cond, "=", 2)
			name := resolveName(strings.TrimSpace(parts[0]), in.ExpressionAttributeNames)
			want := in.ExpressionAttributeValues[strings.TrimSpace(parts[1])]
			if !exists || str(item[name]) != str(want) {
				return nil, &types.ConditionalCheckFailedException{}
			}
		}
	}
	if !exists {
		item = copyItem(in.Key)
	} else {
		item = copyItem(item)
	}

	expr := strings.TrimSpace(*in.UpdateExpression)
	if !strings.HasPrefix(expr, "SET ") {
		return nil, fmt.Errorf("unsupported update expression %q", expr)
	}
	for _, clause := range splitTopLevel(strings.TrimPrefix(expr, "SET ")) {
		lhsRhs := strings.SplitN(clause, "=", 2)
		if len(lhsRhs) != 2 {
			return nil, fmt.Errorf("bad clause %q", clause)
		}
		path := strings.Split(strings.TrimSpace(lhsRhs[0]), ".")
		val, err := evalValue(strings.TrimSpace(lhsRhs[1]), item, in.ExpressionAttributeNames, in.ExpressionAttributeValues)
		if err != nil {
			return nil, err
		}
		if err := setPath(item, path, val, in.ExpressionAttributeNames); err != nil {
			return nil, err
		}
	}

	f.table(tbl)[pk] = item
	return &dyn.UpdateItemOutput{Attributes: copyItem(item)}, nil
}

func (f *FakeDynamo) Scan(ctx context.Context, in *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ScanCalls++
	if f.FailScan != nil {
		if err := f.FailScan(in); err != nil {
			return nil, err
		}
	}
	tbl := *in.TableName
	ka := f.keyAttr(tbl)

	keys := make([]string, 0, len(f.table(tbl)))
	for k := range f.table(tbl) {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	startAfter := ""
	if in.ExclusiveStartKey != nil {
		startAfter = str(in.ExclusiveStartKey[ka])
	}

	var filterName string
	var filterVal types.AttributeValue
	if in.FilterExpression != nil {
		parts := strings.SplitN(*in.FilterExpression, "=", 2)
		filterName = resolveName(strings.TrimSpace(parts[0]), in.ExpressionAttributeNames)
		filterVal = in.ExpressionAttributeValues[strings.TrimSpace(parts[1])]
	}

	out := &dyn.ScanOutput{}
	examined := 0
	for _, k := range keys {
		if startAfter != "" && k <= startAfter {
			continue
		}
		if f.PageSize > 0 && examined == f.PageSize {
			out.LastEvaluatedKey = map[string]types.AttributeValue{ka: &types.AttributeValueMemberS{Value: keys[indexOf(keys, k)-1]}}
			break
		}
		examined++
		item := f.table(tbl)[k]
		if filterName != "" && str(item[filterName]) != str(filterVal) {
			continue
		}
		out.Items = append(out.Items, copyItem(item))
	}
	return out, nil
}

func (f *FakeDynamo) DeleteItem(ctx context.Context, in *dyn.DeleteItemInput, optFns ...func(*dyn.Options)) (*dyn.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DeleteCalls++
	if f.FailDelete != nil {
		if err := f.FailDelete(in); err != nil {
			return nil, err
		}
	}
	tbl := *in.TableName
	delete(f.table(tbl), str(in.Key[f.keyAttr(tbl)]))
	return &dyn.DeleteItemOutput{}, nil
}

// Item returns a copy of the stored item, or nil.
func (f *FakeDynamo) Item(table, key string) map[string]types.AttributeValue {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.table(table)[key]
	if !ok {
		return nil
	}
	return copyItem(item)
}

func indexOf(keys []string, k string) int {
	for i, v := range keys {
		if v == k {
			return i
		}
	}
	return -1
}

func resolveName(tok string, names map[string]string) string {
	if strings.HasPrefix(tok, "#") {
		if n, ok := names[tok]; ok {
			return n
		}
	}
	return tok
}

func splitTopLevel(s string) []string {
	var (
		out   []string
		depth int
		start int
	)
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return append(out, strings.TrimSpace(s[start:]))
}

func evalValue(expr string, item map[string]types.AttributeValue, names map[string]string, values map[string]types.AttributeValue) (types.AttributeValue, error) {
	switch {
	case strings.HasPrefix(expr, ":"):
		v, ok := values[expr]
		if !ok {
			return nil, fmt.Errorf("missing value %s", expr)
		}
		return v, nil
	case strings.HasPrefix(expr, "list_append(") && strings.HasSuffix(expr, ")"):
		args := splitTopLevel(expr[len("list_append(") : len(expr)-1])
		if len(args) != 2 {
			return nil, fmt.Errorf("bad list_append %q", expr)
		}
		a, err := evalValue(args[0], item, names, values)
		if err != nil {
			return nil, err
		}
		b, err := evalValue(args[1], item, names, values)
		if err != nil {
			return nil, err
		}
		la, okA := a.(*types.AttributeValueMemberL)
		lb, okB := b.(*types.AttributeValueMemberL)
		if !okA || !okB {
			return nil, errors.New("list_append on non-list")
		}
		merged := append(append([]types.AttributeValue{}, la.Value...), lb.Value...)
		return &types.AttributeValueMemberL{Value: merged}, nil
	case strings.HasPrefix(expr, "if_not_exists(") && strings.HasSuffix(expr, ")"):
		args := splitTopLevel(expr[len("if_not_exists(") : len(expr)-1])
		if len(args) != 2 {
			return nil, fmt.Errorf("bad if_not_exists %q", expr)
		}
		if cur, ok := item[resolveName(args[0], names)]; ok {
			return cur, nil
		}
		return evalValue(args[1], item, names, values)
	}
	return nil, fmt.Errorf("unsupported operand %q", expr)
}

func setPath(item map[string]types.AttributeValue, path []string, val types.AttributeValue, names map[string]string) error {
	top := resolveName(path[0], names)
	if len(path) == 1 {
		item[top] = val
		return nil
	}
	m, ok := item[top].(*types.AttributeValueMemberM)
	if !ok {
		return fmt.Errorf("document path %s does not exist", top)
	}
	inner := copyItem(m.Value)
	if err := setPath(inner, path[1:], val, names); err != nil {
		return err
	}
	item[top] = &types.AttributeValueMemberM{Value: inner}
	return nil
}

func copyItem(in map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
