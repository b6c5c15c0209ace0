// Package datasync is the main package for the LaunchDarkly data synchronization core.
//
// This package contains the data system facade ([DataSystem]) and its overall configuration
// ([Config]). A DataSystem keeps a local copy of feature flags and segments current, by streaming
// or polling from LaunchDarkly, by reading files, or by loading items on demand from a persistent
// store, and reports changes to the data and to the status of the data source.
//
// Applications that need to change any configuration settings will use the package
// [github.com/launchdarkly/go-server-sdk-datasync/ldcomponents]. Persistent store integrations are in
// the ldredis, ldconsul, and lddynamodb packages; the file data source is in ldfiledata.
//
// Flags and segments are represented by the data model types in
// [github.com/launchdarkly/go-server-sdk-evaluation/v3/ldmodel].
package datasync
