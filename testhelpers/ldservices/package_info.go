// Package ldservices provides HTTP handlers that simulate the behavior of LaunchDarkly service endpoints.
//
// This is mainly intended for use in this module's unit tests. It could also be useful in testing other
// applications that use the data system if it is desirable to use real HTTP rather than other kinds of
// test fixtures.
package ldservices
