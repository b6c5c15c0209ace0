// Package testhelpers contains types and functions that may be useful in testing data sync
// functionality or custom components.
//
// Its subpackage ldservices provides HTTP handlers that simulate the LaunchDarkly streaming and
// polling services.
package testhelpers
