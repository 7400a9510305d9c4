// Package freshness decides which fetched items have not been seen in the previous snapshot.
package freshness

import "github.com/m-mizutani/gleaner/pkg/model"

// Diff returns the items of current whose identity is absent from previous, in current order.
// Only identity is compared: an item whose content changed is not fresh. An identity repeated
// inside current is reported once. Nil entries are skipped.
func Diff(current, previous []*model.Item) []*model.Item {
	seen := make(map[model.ItemID]struct{}, len(previous)+len(current))
	for _, item := range previous {
		if item != nil {
			seen[item.ID] = struct{}{}
		}
	}

	var fresh []*model.Item
	for _, item := range current {
		if item == nil {
			continue
		}
		if _, ok := seen[item.ID]; ok {
			continue
		}
		seen[item.ID] = struct{}{}
		fresh = append(fresh, item)
	}

	return fresh
}

// IDs returns the identities of items in order
func IDs(items []*model.Item) []model.ItemID {
	ids := make([]model.ItemID, 0, len(items))
	for _, item := range items {
		if item != nil {
			ids = append(ids, item.ID)
		}
	}
	return ids
}
