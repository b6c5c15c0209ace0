// Package ldconsul provides a Consul-backed persistent store core for the lazy-load data system.
//
// Each item is stored under its own key, "{prefix}/{kind}/{item key}", with the serialized item as
// the value. The key "{prefix}/$inited" exists once a full data set has been written.
//
//	config := datasync.Config{
//	    DataSystem: ldcomponents.LazyLoad().Store(ldconsul.DataStore().Address("my-consul:8500")),
//	}
package ldconsul
