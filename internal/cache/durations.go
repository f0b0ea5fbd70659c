package cache

import "time"

// Validity windows of the process caches.
const (
	TTLMarketData   = 60 * time.Second // Yahoo chart payloads, keyed by symbol
	TTLPageTitle    = 24 * time.Hour   // Scraped <title> strings, keyed by URL
	TTLMediaListing = 5 * time.Minute  // Scraped folder/directory listings, keyed by URL
)
