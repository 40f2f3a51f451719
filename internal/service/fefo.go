package service

import (
	"bytes"
	"sort"

	"dutyfree/internal/model"
)

// sortFEFO orders batches first-expire-first-out: earliest expiry first,
// batches without expiry last, ties broken by received date and then id.
func sortFEFO(batches []model.StockBatch) {
	sort.SliceStable(batches, func(i, j int) bool {
		a, b := batches[i], batches[j]
		switch {
		case a.ExpiryDate != nil && b.ExpiryDate == nil:
			return true
		case a.ExpiryDate == nil && b.ExpiryDate != nil:
			return false
		case a.ExpiryDate != nil && b.ExpiryDate != nil && !a.ExpiryDate.Equal(*b.ExpiryDate):
			return a.ExpiryDate.Before(*b.ExpiryDate)
		}
		if !a.ReceivedAt.Equal(b.ReceivedAt) {
			return a.ReceivedAt.Before(b.ReceivedAt)
		}
		return bytes.Compare(a.ID[:], b.ID[:]) < 0
	})
}
