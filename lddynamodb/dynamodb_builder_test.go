package lddynamodb

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-server-sdk-datasync/subsystems"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext() subsystems.BasicClientContext {
	return subsystems.BasicClientContext{
		Logging: subsystems.LoggingConfiguration{Loggers: ldlog.NewDisabledLoggers()},
	}
}

func TestDataStoreBuilder(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		b := DataStore("t")
		assert.Nil(t, b.client)
		assert.Nil(t, b.awsConfig)
		assert.Len(t, b.clientOptions, 0)
		assert.Equal(t, "", b.prefix)
		assert.Equal(t, "t", b.table)
	})

	t.Run("ClientConfig", func(t *testing.T) {
		config := aws.Config{Region: "us-west-2"}
		b := DataStore("t").ClientConfig(config)
		require.NotNil(t, b.awsConfig)
		assert.Equal(t, "us-west-2", b.awsConfig.Region)
	})

	t.Run("ClientOptions", func(t *testing.T) {
		o1 := func(*dynamodb.Options) {}
		o2 := func(*dynamodb.Options) {}
		b := DataStore("t").ClientOptions(o1).ClientOptions(o2)
		assert.Len(t, b.clientOptions, 2) // functions can't be compared for equality
	})

	t.Run("DynamoClient", func(t *testing.T) {
		client := dynamodb.NewFromConfig(aws.Config{Region: "us-east-1"})
		b := DataStore("t").DynamoClient(client)
		assert.Equal(t, client, b.client)
	})

	t.Run("Prefix", func(t *testing.T) {
		b := DataStore("t").Prefix("p")
		assert.Equal(t, "p", b.prefix)

		b.Prefix("")
		assert.Equal(t, "", b.prefix)
	})

	t.Run("Build with explicit config", func(t *testing.T) {
		store, err := DataStore("t").ClientConfig(aws.Config{Region: "us-east-1"}).Build(testContext())
		require.NoError(t, err)
		assert.Equal(t, "DynamoDB (table t)", store.Identity())
		assert.NoError(t, store.Close())
	})

	t.Run("error for empty table name", func(t *testing.T) {
		store, err := DataStore("").Build(testContext())
		assert.Error(t, err)
		assert.Nil(t, store)
	})

	t.Run("error for invalid configuration", func(t *testing.T) {
		t.Setenv("AWS_CA_BUNDLE", "not a real CA file")

		store, err := DataStore("t").Build(testContext())
		assert.Error(t, err)
		assert.Nil(t, store)
	})
}
