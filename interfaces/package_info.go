// Package interfaces contains the public types that applications use to observe the data system:
// data source status, flag change events and listener handles.
package interfaces
