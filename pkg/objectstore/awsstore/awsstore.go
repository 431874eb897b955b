// Package awsstore implements objectstore.Store on AWS: object bytes in
// S3, per-bucket/key metadata (size, creation time) in a DynamoDB table
// used to answer List without S3 ListObjectsV2 pagination.
package awsstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/cimkit/ipldstore/pkg/objectstore"
)

// keyItem is the DynamoDB projection of one stored key: partition key
// "bucket", sort key "objectkey".
type keyItem struct {
	Bucket    string `dynamodbav:"bucket"`
	ObjectKey string `dynamodbav:"objectkey"`
	Size      int    `dynamodbav:"size"`
	CreatedAt int64  `dynamodbav:"created_at"`
}

// Store backs objectstore.Store with a single physical S3 bucket (logical
// buckets are S3 key prefixes) and a DynamoDB table tracking which keys
// exist under each logical bucket.
type Store struct {
	s3Client  *s3.Client
	ddbClient *dynamodb.Client
	s3Bucket  string
	tableName string
}

// New returns a Store writing object bytes to s3Bucket and key metadata
// to the DynamoDB table tableName.
func New(s3Client *s3.Client, ddbClient *dynamodb.Client, s3Bucket, tableName string) *Store {
	return &Store{s3Client: s3Client, ddbClient: ddbClient, s3Bucket: s3Bucket, tableName: tableName}
}

var _ objectstore.Store = (*Store)(nil)

func s3Key(bucket, key string) string {
	return bucket + "/" + key
}

func (s *Store) Put(ctx context.Context, bucket, key string, data []byte) error {
	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.s3Bucket),
		Key:           aws.String(s3Key(bucket, key)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("s3 put: %w", err)
	}

	item, err := attributevalue.MarshalMap(keyItem{
		Bucket:    bucket,
		ObjectKey: key,
		Size:      len(data),
		CreatedAt: time.Now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("marshal metadata item: %w", err)
	}
	_, err = s.ddbClient.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("dynamodb put: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	out, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.s3Bucket),
		Key:    aws.String(s3Key(bucket, key)),
	})
	if err != nil {
		var noSuchKey *s3types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, objectstore.ErrNotFound
		}
		return nil, fmt.Errorf("s3 get: %w", err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (s *Store) Delete(ctx context.Context, bucket, key string) error {
	_, err := s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.s3Bucket),
		Key:    aws.String(s3Key(bucket, key)),
	})
	if err != nil {
		return fmt.Errorf("s3 delete: %w", err)
	}
	_, err = s.ddbClient.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]ddbtypes.AttributeValue{
			"bucket":    mustAttr(bucket),
			"objectkey": mustAttr(key),
		},
	})
	if err != nil {
		return fmt.Errorf("dynamodb delete: %w", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	keyCond := expression.Key("bucket").Equal(expression.Value(bucket))
	if prefix != "" {
		keyCond = keyCond.And(expression.Key("objectkey").BeginsWith(prefix))
	}
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("build query expression: %w", err)
	}

	var out []string
	paginator := dynamodb.NewQueryPaginator(s.ddbClient, &dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		KeyConditionExpression:    expr.KeyCondition(),
		ProjectionExpression:      expr.Projection(),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("dynamodb query: %w", err)
		}
		var items []keyItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("unmarshal query page: %w", err)
		}
		for _, it := range items {
			out = append(out, it.ObjectKey)
		}
	}
	return out, nil
}

func mustAttr(s string) ddbtypes.AttributeValue {
	v, err := attributevalue.Marshal(s)
	if err != nil {
		panic(err)
	}
	return v
}
