package domain

// UnboundedQuantity is the ceiling for open editions and editions with unknown stock.
const UnboundedQuantity = 999

// MaxQuantity returns how many units of the artwork a single cart line may hold.
func MaxQuantity(artwork Artwork) int {
	switch {
	case artwork.Type == ArtworkTypeOriginal:
		return 1
	case artwork.Type == ArtworkTypeLimited && artwork.EditionRemaining != nil:
		if *artwork.EditionRemaining < 0 {
			return 0
		}
		return *artwork.EditionRemaining
	default:
		return UnboundedQuantity
	}
}
