package datastore

import (
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"github.com/launchdarkly/go-server-sdk-evaluation/v3/ldmodel"
)

// ValueResolver computes the value that a flag resolves to for the purpose of change notifications.
// It is called with nil for a flag that is absent or deleted.
type ValueResolver func(flag *ldmodel.FeatureFlag) ldvalue.Value

// StaticValueResolver resolves a flag without reference to any evaluation context: a flag that is off
// yields its off variation, a flag that is on yields its fallthrough variation if that is a fixed
// variation, and anything else yields a null value.
func StaticValueResolver(flag *ldmodel.FeatureFlag) ldvalue.Value {
	if flag == nil {
		return ldvalue.Null()
	}
	index := flag.OffVariation
	if flag.On {
		index = flag.Fallthrough.Variation
	}
	if i, ok := index.Get(); ok && i >= 0 && i < len(flag.Variations) {
		return flag.Variations[i]
	}
	return ldvalue.Null()
}
