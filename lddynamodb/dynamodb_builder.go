package lddynamodb

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/launchdarkly/go-server-sdk-datasync/subsystems"
)

// StoreBuilder is a builder for configuring the DynamoDB-based persistent store core.
//
// Obtain an instance of this type by calling DataStore(). Builder calls can be chained, for example:
//
//	ldcomponents.LazyLoad().Store(lddynamodb.DataStore("tablename").Prefix("prefix"))
type StoreBuilder struct {
	client        *dynamodb.Client
	table         string
	prefix        string
	awsConfig     *aws.Config
	clientOptions []func(*dynamodb.Options)
}

// DataStore returns a configurable builder for a DynamoDB-backed persistent store core.
//
// The tableName parameter is required, and the table must already exist in DynamoDB.
func DataStore(tableName string) *StoreBuilder {
	return &StoreBuilder{
		table: tableName,
	}
}

// Prefix specifies a prefix for namespacing the data store's keys.
//
// Unlike the other database integrations, the prefix may be empty, since a DynamoDB table is
// rarely shared between applications.
func (b *StoreBuilder) Prefix(prefix string) *StoreBuilder {
	b.prefix = prefix
	return b
}

// ClientConfig specifies the AWS configuration for the DynamoDB client. If not specified, the
// configuration is loaded from the environment with the AWS SDK's default rules.
func (b *StoreBuilder) ClientConfig(config aws.Config) *StoreBuilder {
	b.awsConfig = &config
	return b
}

// ClientOptions adds functions that modify the DynamoDB client options, such as the endpoint
// resolver or the retry behavior.
func (b *StoreBuilder) ClientOptions(optFns ...func(*dynamodb.Options)) *StoreBuilder {
	b.clientOptions = append(b.clientOptions, optFns...)
	return b
}

// DynamoClient specifies an existing DynamoDB client instance. If you specify this option, then
// ClientConfig and ClientOptions are ignored.
func (b *StoreBuilder) DynamoClient(client *dynamodb.Client) *StoreBuilder {
	b.client = client
	return b
}

// Build is called internally to create the store core.
func (b *StoreBuilder) Build(clientContext subsystems.ClientContext) (subsystems.PersistentDataStoreCore, error) {
	if b.table == "" {
		return nil, errors.New("table name is required")
	}
	client := b.client
	if client == nil {
		var config aws.Config
		if b.awsConfig != nil {
			config = *b.awsConfig
		} else {
			var err error
			config, err = awsconfig.LoadDefaultConfig(context.Background())
			if err != nil {
				return nil, err
			}
		}
		client = dynamodb.NewFromConfig(config, b.clientOptions...)
	}
	return newDynamoDBStoreImpl(client, b.table, b.prefix, clientContext.GetLogging().Loggers), nil
}
