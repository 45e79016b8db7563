package domain

import (
	"reflect"
	"testing"
	"time"
)

func TestNextListPosition(t *testing.T) {
	base := time.Now()
	cases := []struct {
		name  string
		lists []List
		want  int
	}{
		{name: "empty board", lists: nil, want: 0},
		{
			name: "appends past max",
			lists: []List{
				{ID: "a", Position: 0, CreatedAt: base},
				{ID: "b", Position: 4, CreatedAt: base},
				{ID: "c", Position: 2, CreatedAt: base},
			},
			want: 5,
		},
		{
			name: "ignores archived lists",
			lists: []List{
				{ID: "a", Position: 1},
				{ID: "b", Position: 9, IsArchived: true},
			},
			want: 2,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NextListPosition(tc.lists); got != tc.want {
				t.Fatalf("expected position %d, got %d", tc.want, got)
			}
		})
	}
}

func TestNextCardPosition(t *testing.T) {
	if got := NextCardPosition(nil); got != 0 {
		t.Fatalf("empty list should yield 0, got %d", got)
	}
	cards := []Card{{Position: 0}, {Position: 1}, {Position: 7, IsArchived: true}}
	if got := NextCardPosition(cards); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
}

func TestSortListsDeterministicUnderCollisions(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	lists := []List{
		{ID: "late", Position: 1, CreatedAt: base.Add(2 * time.Minute)},
		{ID: "first", Position: 0, CreatedAt: base},
		{ID: "early", Position: 1, CreatedAt: base.Add(time.Minute)},
	}
	SortLists(lists)
	got := []string{lists[0].ID, lists[1].ID, lists[2].ID}
	want := []string{"first", "early", "late"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected order: %v", got)
	}

	// Sorting an already sorted slice must not change it.
	again := append([]List(nil), lists...)
	SortLists(again)
	if !reflect.DeepEqual(again, lists) {
		t.Fatalf("sort is not stable: %v vs %v", again, lists)
	}
}

func TestSortCardsTiebreakByCreation(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	cards := []Card{
		{ID: "b", Position: 3, CreatedAt: base.Add(time.Second)},
		{ID: "a", Position: 3, CreatedAt: base},
		{ID: "z", Position: 0, CreatedAt: base.Add(time.Hour)},
	}
	SortCards(cards)
	got := []string{cards[0].ID, cards[1].ID, cards[2].ID}
	if !reflect.DeepEqual(got, []string{"z", "a", "b"}) {
		t.Fatalf("unexpected order: %v", got)
	}
}
