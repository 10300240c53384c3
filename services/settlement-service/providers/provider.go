package providers

import "context"

// PlaceDetails is what the enrichment service knows about a place listing.
// Either field may be empty.
type PlaceDetails struct {
	MID  string
	Name string
}

// EnrichmentProvider resolves a business listing URL to its merchant id and
// canonical display name.
type EnrichmentProvider interface {
	ResolvePlace(ctx context.Context, placeURL string) (PlaceDetails, error)
}
