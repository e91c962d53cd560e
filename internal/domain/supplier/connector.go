package supplier

import (
	"context"
)

// ---------------------------------------------------------------------------
// Connector Port
// ---------------------------------------------------------------------------

// RawPage is one batch of raw records as fetched from the upstream source.
type RawPage struct {
	// Number is the 1-based position of this page in the fetch sequence.
	Number int
	// Records holds the supplier-native records on this page.
	Records []RawRecord
}

// FetchOptions bound a fetch run.
type FetchOptions struct {
	// Limit caps the total number of records fetched; 0 means no cap.
	Limit int
	// FullSync asks the connector to ignore any incremental cursor and
	// fetch the complete catalog.
	FullSync bool
}

// SupplierInfo describes the connector's upstream source.
type SupplierInfo struct {
	Name string
	Type ConnectorType
}

// PageIterator lazily yields pages of raw records. Next returns a nil page
// when the sequence is exhausted. Page-level fetch errors (after connector
// internal retries) are returned as errors wrapping ErrPageRetriesExceeded
// or ErrTransport.
type PageIterator interface {
	Next(ctx context.Context) (*RawPage, error)
}

// Connector adapts one upstream source's protocol to raw records. Concrete
// implementations wrap an HTTP API client, a feed parser, or a headless
// browser session; all are stateless between invocations.
//
// Construction is where configuration errors surface: a connector that could
// be built has valid credentials and URLs. TestConnection must not return an
// error for ordinary network failures, only a false result.
type Connector interface {
	// TestConnection performs the cheapest possible upstream round trip.
	TestConnection(ctx context.Context) (bool, error)

	// FetchProducts starts a fetch run and returns a lazy page iterator.
	// A returned error is fatal for the run (engine unavailable, invalid
	// session) and is never page-level.
	FetchProducts(ctx context.Context, opts FetchOptions) (PageIterator, error)

	// SupplierInfo returns the upstream source description.
	SupplierInfo() SupplierInfo
}
