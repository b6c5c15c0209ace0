// Package ldstoreimpl contains adapters for using the data system's stores with other LaunchDarkly
// components.
package ldstoreimpl

import (
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	ldeval "github.com/launchdarkly/go-server-sdk-evaluation/v3"

	"github.com/launchdarkly/go-server-sdk-datasync/internal/datastore"
	"github.com/launchdarkly/go-server-sdk-datasync/subsystems"
)

// NewDataStoreEvaluatorDataProvider provides an adapter for using a store with the Evaluator type
// in go-server-sdk-evaluation.
//
// The data system uses this internally for flag value change tracking. It is exported for
// applications that want to evaluate flags against the data system's store themselves.
func NewDataStoreEvaluatorDataProvider(store subsystems.ReadOnlyStore, loggers ldlog.Loggers) ldeval.DataProvider {
	return datastore.NewDataStoreEvaluatorDataProviderImpl(store, loggers)
}
