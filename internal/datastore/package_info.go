// Package datastore is an internal package containing the in-memory flag/segment store, the change
// notifier that wraps it, and related functionality. These types are not visible from outside of the
// module.
//
// This does not include the database integrations used by the lazy-load data system. Those are in the
// ldredis, ldconsul, and lddynamodb packages.
package datastore
