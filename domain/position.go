package domain

import "sort"

// Positions are plain integers. Concurrent writers can leave two siblings on
// the same position; reads resolve that with a stable (position, createdAt)
// sort instead of renumbering, so no write ever touches a sibling row.

// PositionUpdate pairs an item id with its target position for batch reorders.
// Each update is applied as an independent single-row write; a batch is not
// atomic as a group.
type PositionUpdate struct {
	ID       string `json:"id"`
	Position int    `json:"position"`
}

// NextListPosition returns the position for a list appended to the end of a
// board: one past the maximum among non-archived lists, or 0 when the board
// has none.
func NextListPosition(lists []List) int {
	next := 0
	for _, l := range lists {
		if l.IsArchived {
			continue
		}
		if l.Position >= next {
			next = l.Position + 1
		}
	}
	return next
}

// NextCardPosition returns the position for a card appended to the end of a
// list: one past the maximum among non-archived cards, or 0 when the list is
// empty.
func NextCardPosition(cards []Card) int {
	next := 0
	for _, c := range cards {
		if c.IsArchived {
			continue
		}
		if c.Position >= next {
			next = c.Position + 1
		}
	}
	return next
}

// SortLists orders lists for display. The sort is stable on (position,
// createdAt) so duplicate positions still yield a deterministic total order.
func SortLists(lists []List) {
	sort.SliceStable(lists, func(i, j int) bool {
		if lists[i].Position != lists[j].Position {
			return lists[i].Position < lists[j].Position
		}
		return lists[i].CreatedAt.Before(lists[j].CreatedAt)
	})
}

// SortCards orders cards within a list, same tiebreak rule as SortLists.
func SortCards(cards []Card) {
	sort.SliceStable(cards, func(i, j int) bool {
		if cards[i].Position != cards[j].Position {
			return cards[i].Position < cards[j].Position
		}
		return cards[i].CreatedAt.Before(cards[j].CreatedAt)
	})
}
