package edge

import (
	"context"
	"sort"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
)

const (
	dynamoPK = "pk"
	dynamoValAttr = "val"
)

// DynamoKV implements adapter.KV against one DynamoDB table with a
// single string partition key ("pk") and one string value attribute
// ("val"). Listing by prefix uses a table scan with a FilterExpression,
// which is adequate for the gateway's admin/list routes but not meant
// for high-QPS production scans of very large tables.
type DynamoKV struct {
	svc   *dynamodb.DynamoDB
	table string
}

func NewDynamoKV(region, table string) (*DynamoKV, error) {
	sess, err := session.NewSessionWithOptions(session.Options{SharedConfigState: session.SharedConfigEnable})
	if err != nil {
		return nil, err
	}
	conf := &aws.Config{}
	if region != "" {
		conf.Region = aws.String(region)
	}
	return &DynamoKV{svc: dynamodb.New(sess, conf), table: table}, nil
}

func (d *DynamoKV) Get(ctx context.Context, key string) (string, bool, error) {
	out, err := d.svc.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.table),
		Key: map[string]*dynamodb.AttributeValue{
			dynamoPK: {S: aws.String(key)},
		},
	})
	if err != nil {
		return "", false, err
	}
	if out.Item == nil {
		return "", false, nil
	}
	v, ok := out.Item[dynamoValAttr]
	if !ok || v.S == nil {
		return "", false, nil
	}
	return *v.S, true, nil
}

func (d *DynamoKV) Put(ctx context.Context, key, value string) error {
	_, err := d.svc.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item: map[string]*dynamodb.AttributeValue{
			dynamoPK:      {S: aws.String(key)},
			dynamoValAttr: {S: aws.String(value)},
		},
	})
	return err
}

func (d *DynamoKV) Delete(ctx context.Context, key string) error {
	_, err := d.svc.DeleteItemWithContext(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.table),
		Key: map[string]*dynamodb.AttributeValue{
			dynamoPK: {S: aws.String(key)},
		},
	})
	return err
}

func (d *DynamoKV) List(ctx context.Context, prefix, cursor string, limit int) ([]string, string, error) {
	var keys []string
	in := &dynamodb.ScanInput{
		TableName:            aws.String(d.table),
		ProjectionExpression: aws.String(dynamoPK),
	}
	if prefix != "" {
		in.FilterExpression = aws.String("begins_with(#pk, :prefix)")
		in.ExpressionAttributeNames = map[string]*string{"#pk": aws.String(dynamoPK)}
		in.ExpressionAttributeValues = map[string]*dynamodb.AttributeValue{
			":prefix": {S: aws.String(prefix)},
		}
	}
	err := d.svc.ScanPagesWithContext(ctx, in, func(page *dynamodb.ScanOutput, lastPage bool) bool {
		for _, item := range page.Items {
			if v, ok := item[dynamoPK]; ok && v.S != nil {
				keys = append(keys, *v.S)
			}
		}
		return true
	})
	if err != nil {
		return nil, "", err
	}
	sort.Strings(keys)
	filtered := keys[:0]
	for _, k := range keys {
		if cursor == "" || k > cursor {
			filtered = append(filtered, k)
		}
	}
	keys = filtered
	if limit <= 0 || len(keys) <= limit {
		return keys, "", nil
	}
	return keys[:limit], keys[limit-1], nil
}
