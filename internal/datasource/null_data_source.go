package datasource

import "github.com/launchdarkly/go-server-sdk-datasync/subsystems"

// NewNullDataSource returns a stub implementation of DataSource. It is used when the application
// has said that some other process keeps the data up to date, so it is initialized from the start.
func NewNullDataSource() subsystems.DataSource {
	return nullDataSource{}
}

type nullDataSource struct{}

func (n nullDataSource) IsInitialized() bool {
	return true
}

func (n nullDataSource) Close() error {
	return nil
}

func (n nullDataSource) Start(closeWhenReady chan<- struct{}) {
	close(closeWhenReady)
}

func (n nullDataSource) ShutdownAsync(completion func()) {
	if completion != nil {
		completion()
	}
}

func (n nullDataSource) Identity() string {
	return "external updates only"
}
