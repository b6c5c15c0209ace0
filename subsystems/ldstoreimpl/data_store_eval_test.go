package ldstoreimpl

import (
	"testing"

	"github.com/launchdarkly/go-sdk-common/v3/ldcontext"
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	ldeval "github.com/launchdarkly/go-server-sdk-evaluation/v3"
	"github.com/launchdarkly/go-server-sdk-evaluation/v3/ldbuilders"
	"github.com/launchdarkly/go-server-sdk-evaluation/v3/ldmodel"

	"github.com/launchdarkly/go-server-sdk-datasync/internal/datastore"
	"github.com/launchdarkly/go-server-sdk-datasync/internal/sharedtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluatorUsesStoreData(t *testing.T) {
	segment := ldbuilders.NewSegmentBuilder("segment1").Version(1).Included("user-key").Build()
	flag := ldbuilders.NewFlagBuilder("flag1").Version(1).On(true).
		Variations(ldvalue.Bool(false), ldvalue.Bool(true)).
		FallthroughVariation(0).
		AddRule(ldbuilders.NewRuleBuilder().ID("rule1").Variation(1).
			Clauses(ldbuilders.Clause("", ldmodel.OperatorSegmentMatch, ldvalue.String(segment.Key)))).
		Build()

	store := datastore.NewInMemoryDataStore(ldlog.NewDisabledLoggers())
	defer store.Close()
	require.NoError(t, store.Init(sharedtest.NewDataSetBuilder().Flags(flag).Segments(segment).Build()))

	provider := NewDataStoreEvaluatorDataProvider(store, ldlog.NewDisabledLoggers())
	assert.Equal(t, 1, provider.GetFeatureFlag("flag1").Version)
	assert.Nil(t, provider.GetFeatureFlag("nope"))
	assert.Equal(t, 1, provider.GetSegment("segment1").Version)

	evaluator := ldeval.NewEvaluator(provider)
	included := evaluator.Evaluate(provider.GetFeatureFlag("flag1"), ldcontext.New("user-key"), nil)
	assert.Equal(t, ldvalue.Bool(true), included.Detail.Value)
	excluded := evaluator.Evaluate(provider.GetFeatureFlag("flag1"), ldcontext.New("other-key"), nil)
	assert.Equal(t, ldvalue.Bool(false), excluded.Detail.Value)
}
