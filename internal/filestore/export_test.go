package filestore

var (
	ListingKey = listingKey
	IDKey      = idKey
	PathKey    = pathKey
)
