package steam

import (
	"net/url"
	"strings"

	"github.com/samber/lo"

	"sjsage522/steamdealworker/internal/model"
)

// State is the accessibility classification of a list page
type State string

const (
	Accessible   State = "accessible"
	Inaccessible State = "inaccessible"
	Unknown      State = "unknown"
)

// marker is one substring rule of the page classifier. Rules are checked in
// table order and the first hit decides the verdict. These strings are
// scraped from Steam's rendered pages and break whenever Steam rewords them.
type marker struct {
	name   string
	needle string
	kinds  []model.ListKind // nil applies to every kind
	state  State
	empty  bool
}

var pageMarkers = []marker{
	{name: "private_profile", needle: "This profile is private", state: Inaccessible},
	{name: "profile_not_found", needle: "The specified profile could not be found", state: Inaccessible},
	{name: "community_error", needle: "Community :: Error", state: Inaccessible},
	{name: "access_denied", needle: "Access Denied", state: Inaccessible},
	{name: "profile_not_set_up", needle: "This user has not yet set up their Steam Community profile", kinds: []model.ListKind{model.Library}, state: Inaccessible},

	{name: "wishlist_empty", needle: "Your Wishlist is empty", kinds: []model.ListKind{model.Wishlist}, state: Accessible, empty: true},
	{name: "wishlist_empty_other", needle: "wishlist is empty", kinds: []model.ListKind{model.Wishlist}, state: Accessible, empty: true},

	{name: "wishlist_row", needle: "wishlist_row", kinds: []model.ListKind{model.Wishlist}, state: Accessible},
	{name: "wishlist_ctn", needle: "wishlist_ctn", kinds: []model.ListKind{model.Wishlist}, state: Accessible},
	{name: "wishlist_data", needle: "g_rgWishlistData", kinds: []model.ListKind{model.Wishlist}, state: Accessible},
	{name: "library_row", needle: "gameListRow", kinds: []model.ListKind{model.Library}, state: Accessible},
	{name: "library_name", needle: "game_name", kinds: []model.ListKind{model.Library}, state: Accessible},
	{name: "library_data", needle: "rgGames", kinds: []model.ListKind{model.Library}, state: Accessible},
	{name: "library_config", needle: "gameslist_config", kinds: []model.ListKind{model.Library}, state: Accessible},

	// weak needle, so only consulted once no row marker matched
	{name: "library_empty", needle: "no games", kinds: []model.ListKind{model.Library}, state: Accessible, empty: true},
}

func (m marker) appliesTo(kind model.ListKind) bool {
	if m.kinds == nil {
		return true
	}
	return lo.Contains(m.kinds, kind)
}

// matchMarker returns the first rule whose needle occurs in body
func matchMarker(body string, kind model.ListKind) (marker, bool) {
	for _, m := range pageMarkers {
		if m.appliesTo(kind) && strings.Contains(body, m.needle) {
			return m, true
		}
	}
	return marker{}, false
}

// isPrivacyRedirect reports a redirect to a login page or to a host's home page
func isPrivacyRedirect(location string) bool {
	if location == "" {
		return false
	}
	u, err := url.Parse(location)
	if err != nil {
		return false
	}
	path := strings.ToLower(u.Path)
	if strings.Contains(path, "/login") {
		return true
	}
	return u.Host != "" && (path == "" || path == "/")
}
