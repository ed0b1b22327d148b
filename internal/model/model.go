package model

import (
	"fmt"
	"regexp"
)

// AccountID is the 17-digit decimal identifier of a Steam account
type AccountID string

var accountIDPattern = regexp.MustCompile(`^\d{17}$`)

// Valid reports whether id has the canonical 17-digit form
func (id AccountID) Valid() bool {
	return accountIDPattern.MatchString(string(id))
}

func (id AccountID) String() string {
	return string(id)
}

// ListKind selects which per-account list is processed
type ListKind string

const (
	Wishlist ListKind = "wishlist"
	Library  ListKind = "library"
)

// ParseListKind maps user input onto a ListKind
func ParseListKind(s string) (ListKind, error) {
	switch ListKind(s) {
	case Wishlist, Library:
		return ListKind(s), nil
	}
	return "", fmt.Errorf("unknown list kind %q", s)
}

// ListEntry is one element of a wishlist or library.
// ItemID is always non-empty once an entry leaves the extractor.
type ListEntry struct {
	ItemID          string   `json:"item_id"`
	DisplayName     string   `json:"display_name"`
	Tags            []string `json:"tags,omitempty"`
	Description     string   `json:"description,omitempty"`
	Released        string   `json:"released,omitempty"`
	PlaytimeMinutes int      `json:"playtime_minutes,omitempty"`
}

// Placeholder names that are backfilled from the store
var placeholderNames = map[string]struct{}{
	"":             {},
	"Unknown":      {},
	"Unknown Game": {},
}

// HasPlaceholderName reports whether the display name needs backfilling
func (e ListEntry) HasPlaceholderName() bool {
	_, ok := placeholderNames[e.DisplayName]
	return ok
}

// PriceQuote is the store's price for an item in minor currency units
type PriceQuote struct {
	Currency         string `json:"currency"`
	InitialAmount    int64  `json:"initial_amount"`
	FinalAmount      int64  `json:"final_amount"`
	DiscountPercent  int    `json:"discount_percent"`
	InitialFormatted string `json:"initial_formatted"`
	FinalFormatted   string `json:"final_formatted"`
}

// DiscountedItem is a list entry joined with a quote whose discount is at least 1%
type DiscountedItem struct {
	Entry ListEntry  `json:"entry"`
	Quote PriceQuote `json:"quote"`
	URL   string     `json:"url"`
}

// ScoredDeal is a discounted item with its attractiveness score
type ScoredDeal struct {
	DiscountedItem
	Score int `json:"score"`
}

// AppURL returns the canonical store page for an item
func AppURL(itemID string) string {
	return fmt.Sprintf("https://store.steampowered.com/app/%s/", itemID)
}
