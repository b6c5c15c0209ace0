// Package lddynamodb provides a DynamoDB-backed persistent store core for the lazy-load data system.
//
// All data kinds share one table. The partition key attribute "namespace" holds the data kind's
// name, with the prefix and a colon before it if a prefix is configured; the sort key attribute
// "key" holds the item key. The "version" attribute holds the item version and "item" holds the
// serialized item. An item whose namespace and key are both "$inited" exists once a full data set
// has been written.
//
//	config := datasync.Config{
//	    DataSystem: ldcomponents.LazyLoad().Store(lddynamodb.DataStore("my-table")),
//	}
package lddynamodb
