package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/dmitrymomot/sessionstore/core/session"
)

// Attribute names of the persisted record. The layout is shared with the
// predecessor system, so renaming any of these breaks existing tables.
const (
	attrKey    = "session_key"
	attrValue  = "session_value"
	attrExpiry = "session_expiry"
)

// Readiness wait policy for table provisioning.
const (
	defaultReadyInterval = 5 * time.Second
	defaultReadyAttempts = 20
)

// Compile-time check that Store implements session.Store.
var _ session.Store = (*Store)(nil)

// DynamoClient defines the DynamoDB operations used by Store.
type DynamoClient interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// ScanPaginator defines the interface for paginated scan operations.
type ScanPaginator interface {
	HasMorePages() bool
	NextPage(ctx context.Context, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// Store implements session.Store on DynamoDB. Stateless and safe for
// concurrent use; each call is a single request with no automatic retry
// beyond what the SDK itself does.
type Store struct {
	client           DynamoClient
	table            string
	index            string
	readyInterval    time.Duration
	readyAttempts    int
	paginatorFactory func(client DynamoClient, params *dynamodb.ScanInput) ScanPaginator
}

// Config contains DynamoDB store configuration. Credentials and region come
// from configuration or the ambient AWS credential chain, never from code.
type Config struct {
	Table       string `env:"SESSION_DYNAMODB_TABLE,required"`
	Region      string `env:"AWS_REGION" envDefault:"us-east-1"`
	AccessKeyID string `env:"AWS_ACCESS_KEY_ID"`
	SecretKey   string `env:"AWS_SECRET_ACCESS_KEY"`
	Endpoint    string `env:"SESSION_DYNAMODB_ENDPOINT"`                                  // For DynamoDB Local and compatible services
	ExpiryIndex string `env:"SESSION_DYNAMODB_EXPIRY_INDEX" envDefault:"session_expiry-index"` // GSI backing expired-record scans
}

// Option defines a function that configures Store.
type Option func(*options)

type options struct {
	client           DynamoClient
	configOptions    []func(*awsconfig.LoadOptions) error
	clientOptions    []func(*dynamodb.Options)
	paginatorFactory func(client DynamoClient, params *dynamodb.ScanInput) ScanPaginator
	readyInterval    time.Duration
	readyAttempts    int
}

// WithClient sets a custom pre-configured DynamoDB client.
// Primarily used for testing with mocks.
func WithClient(client DynamoClient) Option {
	return func(o *options) {
		o.client = client
	}
}

// WithConfigOption adds a custom AWS config option.
func WithConfigOption(option func(*awsconfig.LoadOptions) error) Option {
	return func(o *options) {
		o.configOptions = append(o.configOptions, option)
	}
}

// WithClientOption adds a custom DynamoDB client option.
func WithClientOption(option func(*dynamodb.Options)) Option {
	return func(o *options) {
		o.clientOptions = append(o.clientOptions, option)
	}
}

// WithPaginatorFactory sets a custom scan paginator factory.
// Essential for testing pagination behavior with mock clients.
func WithPaginatorFactory(factory func(client DynamoClient, params *dynamodb.ScanInput) ScanPaginator) Option {
	return func(o *options) {
		o.paginatorFactory = factory
	}
}

// WithReadyPolicy overrides the table readiness wait policy.
// Non-positive values keep the defaults (poll every 5s, give up after 20 attempts).
func WithReadyPolicy(interval time.Duration, attempts int) Option {
	return func(o *options) {
		if interval > 0 {
			o.readyInterval = interval
		}
		if attempts > 0 {
			o.readyAttempts = attempts
		}
	}
}

// New creates a DynamoDB-backed session store.
func New(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	if cfg.Table == "" || cfg.Region == "" {
		return nil, ErrInvalidConfig
	}

	o := &options{
		readyInterval: defaultReadyInterval,
		readyAttempts: defaultReadyAttempts,
	}
	for _, opt := range opts {
		opt(o)
	}

	client := o.client
	if client == nil {
		awsOptions := []func(*awsconfig.LoadOptions) error{
			awsconfig.WithRegion(cfg.Region),
		}

		// Static credentials if provided, IAM roles/env vars otherwise
		if cfg.AccessKeyID != "" && cfg.SecretKey != "" {
			awsOptions = append(awsOptions,
				awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
					cfg.AccessKeyID,
					cfg.SecretKey,
					"",
				)),
			)
		}

		awsOptions = append(awsOptions, o.configOptions...)

		awsConfig, err := awsconfig.LoadDefaultConfig(ctx, awsOptions...)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %v", err)
		}

		client = dynamodb.NewFromConfig(awsConfig, func(do *dynamodb.Options) {
			if cfg.Endpoint != "" {
				do.BaseEndpoint = aws.String(cfg.Endpoint)
			}
			for _, opt := range o.clientOptions {
				opt(do)
			}
		})
	}

	paginatorFactory := o.paginatorFactory
	if paginatorFactory == nil {
		paginatorFactory = func(c DynamoClient, params *dynamodb.ScanInput) ScanPaginator {
			return dynamodb.NewScanPaginator(c, params)
		}
	}

	index := cfg.ExpiryIndex
	if index == "" {
		index = attrExpiry + "-index"
	}

	return &Store{
		client:           client,
		table:            cfg.Table,
		index:            index,
		readyInterval:    o.readyInterval,
		readyAttempts:    o.readyAttempts,
		paginatorFactory: paginatorFactory,
	}, nil
}

// EnsureTable creates the session table if it does not exist and blocks
// until it reaches ACTIVE, polling DescribeTable on the configured wait
// policy. Idempotent; concurrent creation by another process is tolerated.
// On timeout the returned error wraps session.ErrProvisioning; callers log
// it and continue startup.
func (s *Store) EnsureTable(ctx context.Context) error {
	status, err := s.tableStatus(ctx)
	switch {
	case err == nil && status == types.TableStatusActive:
		return nil
	case err != nil && !isTableMissing(err):
		return fmt.Errorf("%w: describe table %q: %v", session.ErrProvisioning, s.table, err)
	case err != nil:
		if err := s.createTable(ctx); err != nil {
			return err
		}
	}

	for i := 0; i < s.readyAttempts; i++ {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", session.ErrProvisioning, ctx.Err())
		case <-time.After(s.readyInterval):
		}

		status, err := s.tableStatus(ctx)
		if err == nil && status == types.TableStatusActive {
			return nil
		}
	}

	return fmt.Errorf("%w: table %q not ready after %d attempts", session.ErrProvisioning, s.table, s.readyAttempts)
}

func (s *Store) tableStatus(ctx context.Context) (types.TableStatus, error) {
	out, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.table),
	})
	if err != nil {
		return "", err
	}
	return out.Table.TableStatus, nil
}

func (s *Store) createTable(ctx context.Context) error {
	_, err := s.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName:   aws.String(s.table),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(attrKey), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(attrExpiry), AttributeType: types.ScalarAttributeTypeN},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(attrKey), KeyType: types.KeyTypeHash},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			{
				IndexName: aws.String(s.index),
				KeySchema: []types.KeySchemaElement{
					{AttributeName: aws.String(attrExpiry), KeyType: types.KeyTypeHash},
				},
				Projection: &types.Projection{ProjectionType: types.ProjectionTypeKeysOnly},
			},
		},
	})
	if err != nil {
		// Another process won the creation race
		var inUse *types.ResourceInUseException
		if errors.As(err, &inUse) {
			return nil
		}
		return fmt.Errorf("%w: create table %q: %v", session.ErrProvisioning, s.table, err)
	}
	return nil
}

// Get returns the record stored under key, or session.ErrNotFound.
// The expiry attribute is decoded by hand because tables inherited from
// the predecessor system may carry non-numeric junk there; such values
// surface as zero and are healed by the engine.
func (s *Store) Get(ctx context.Context, key string) (*session.Record, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            keyAttr(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, classifyError(err, "get session")
	}
	if len(out.Item) == 0 {
		return nil, session.ErrNotFound
	}

	rec := &session.Record{Key: key}
	if v, ok := out.Item[attrValue].(*types.AttributeValueMemberS); ok {
		rec.Value = v.Value
	}
	if n, ok := out.Item[attrExpiry].(*types.AttributeValueMemberN); ok {
		if ts, err := strconv.ParseInt(n.Value, 10, 64); err == nil {
			rec.ExpiresAt = ts
		}
	}
	return rec, nil
}

type item struct {
	Key       string `dynamodbav:"session_key"`
	Value     string `dynamodbav:"session_value"`
	ExpiresAt int64  `dynamodbav:"session_expiry"`
}

// Put upserts the record, overwriting any existing item for its key.
// The engine validates before calling; the checks here are the adapter's
// own contract and reject records the backend must never hold.
func (s *Store) Put(ctx context.Context, rec session.Record) error {
	if rec.Key == "" {
		return fmt.Errorf("%w: record without a key", session.ErrBackend)
	}
	if rec.ExpiresAt <= 0 {
		return fmt.Errorf("%w: record with non-positive expiry", session.ErrBackend)
	}

	av, err := attributevalue.MarshalMap(item{
		Key:       rec.Key,
		Value:     rec.Value,
		ExpiresAt: rec.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("%w: marshal record: %v", session.ErrBackend, err)
	}

	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      av,
	}); err != nil {
		return classifyError(err, "put session")
	}
	return nil
}

// Delete removes the record under key. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key:       keyAttr(key),
	}); err != nil {
		return classifyError(err, "delete session")
	}
	return nil
}

// Touch updates only the expiry attribute of an existing record. The
// condition on the key prevents UpdateItem from materializing a payload-less
// item for keys that were never saved.
func (s *Store) Touch(ctx context.Context, key string, expiresAt int64) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.table),
		Key:                 keyAttr(key),
		UpdateExpression:    aws.String("SET #exp = :exp"),
		ConditionExpression: aws.String("attribute_exists(#key)"),
		ExpressionAttributeNames: map[string]string{
			"#exp": attrExpiry,
			"#key": attrKey,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":exp": &types.AttributeValueMemberN{Value: strconv.FormatInt(expiresAt, 10)},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return session.ErrNotFound
		}
		return classifyError(err, "touch session")
	}
	return nil
}

// ScanExpired returns the keys of all records whose expiry elapsed before
// now, collected across scan pages. The scan runs against the expiry index
// so only keys and timestamps are read, not payloads.
func (s *Store) ScanExpired(ctx context.Context, now time.Time) ([]string, error) {
	paginator := s.paginatorFactory(s.client, &dynamodb.ScanInput{
		TableName:            aws.String(s.table),
		IndexName:            aws.String(s.index),
		ProjectionExpression: aws.String(attrKey),
		FilterExpression:     aws.String("#exp < :now"),
		ExpressionAttributeNames: map[string]string{
			"#exp": attrExpiry,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
		},
	})

	var keys []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, classifyError(err, "scan expired sessions")
		}
		for _, it := range page.Items {
			if v, ok := it[attrKey].(*types.AttributeValueMemberS); ok {
				keys = append(keys, v.Value)
			}
		}
	}
	return keys, nil
}

func keyAttr(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrKey: &types.AttributeValueMemberS{Value: key},
	}
}

func isTableMissing(err error) bool {
	var rnf *types.ResourceNotFoundException
	return errors.As(err, &rnf)
}
