package steam

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"sjsage522/steamdealworker/internal/model"
)

func TestProbe(t *testing.T) {
	wishlistPath := "/store/wishlist/profiles/" + testAccount.String() + "/"
	libraryPath := "/community/profiles/" + testAccount.String() + "/games/"

	tests := []struct {
		name        string
		kind        model.ListKind
		handler     http.HandlerFunc
		state       State
		reason      string
		rateLimited bool
		empty       bool
	}{
		{
			name:    "private profile",
			kind:    model.Wishlist,
			handler: htmlBody("<div class=\"profile_private_info\">This profile is private.</div>"),
			state:   Inaccessible,
			reason:  "private_profile",
		},
		{
			name:    "empty wishlist",
			kind:    model.Wishlist,
			handler: htmlBody("<h2>Your Wishlist is empty</h2>"),
			state:   Accessible,
			reason:  "wishlist_empty",
			empty:   true,
		},
		{
			name:    "wishlist rows",
			kind:    model.Wishlist,
			handler: htmlBody(`<div id="wishlist_ctn"><div class="wishlist_row" data-app-id="570"></div></div>`),
			state:   Accessible,
			reason:  "wishlist_row",
		},
		{
			name:    "redirect to login",
			kind:    model.Wishlist,
			handler: redirectTo("https://store.steampowered.com/login/?redir=wishlist"),
			state:   Inaccessible,
		},
		{
			name:    "redirect to community home",
			kind:    model.Wishlist,
			handler: redirectTo("https://steamcommunity.com/"),
			state:   Inaccessible,
		},
		{
			name:    "redirect elsewhere",
			kind:    model.Wishlist,
			handler: redirectTo("https://store.steampowered.com/wishlist/id/someone/"),
			state:   Unknown,
		},
		{
			name:    "forbidden",
			kind:    model.Wishlist,
			handler: statusOnly(http.StatusForbidden),
			state:   Inaccessible,
			reason:  "status 403",
		},
		{
			name:        "rate limited",
			kind:        model.Wishlist,
			handler:     statusOnly(http.StatusTooManyRequests),
			state:       Inaccessible,
			reason:      "rate limited",
			rateLimited: true,
		},
		{
			name:    "server error",
			kind:    model.Wishlist,
			handler: statusOnly(http.StatusBadGateway),
			state:   Unknown,
			reason:  "status 502",
		},
		{
			name:    "no marker",
			kind:    model.Wishlist,
			handler: htmlBody("<html><body>something new</body></html>"),
			state:   Unknown,
			reason:  "no known marker",
		},
		{
			name:    "library rows",
			kind:    model.Library,
			handler: htmlBody(`<div class="gameListRow" id="game_570"></div>`),
			state:   Accessible,
			reason:  "library_row",
		},
		{
			name:    "library profile not set up",
			kind:    model.Library,
			handler: htmlBody("This user has not yet set up their Steam Community profile."),
			state:   Inaccessible,
			reason:  "profile_not_set_up",
		},
		{
			name:    "library without games",
			kind:    model.Library,
			handler: htmlBody("<p>This profile has no games</p>"),
			state:   Accessible,
			reason:  "library_empty",
			empty:   true,
		},
		{
			name:    "wishlist markers do not apply to libraries",
			kind:    model.Library,
			handler: htmlBody(`<div class="wishlist_row"></div>`),
			state:   Unknown,
			reason:  "no known marker",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeSteam(t)
			path := wishlistPath
			if tt.kind == model.Library {
				path = libraryPath
			}
			f.handle(path, tt.handler)

			v := NewProber(f.client()).Probe(context.Background(), testAccount, tt.kind)

			assert.Equal(t, tt.state, v.State)
			if tt.reason != "" {
				assert.Equal(t, tt.reason, v.Reason)
			}
			assert.Equal(t, tt.rateLimited, v.RateLimited)
			assert.Equal(t, tt.empty, v.Empty)
			assert.Equal(t, 1, f.hitCount(path))
		})
	}
}

func TestProbeTransportFailureIsUnknown(t *testing.T) {
	f := newFakeSteam(t)
	c := f.client()
	f.server.Close()

	v := NewProber(c).Probe(context.Background(), testAccount, model.Wishlist)
	assert.Equal(t, Unknown, v.State)
	assert.NotEmpty(t, v.Reason)
}

func TestVerdictPrivacyBlocked(t *testing.T) {
	assert.True(t, Verdict{State: Inaccessible}.PrivacyBlocked())
	assert.False(t, Verdict{State: Inaccessible, RateLimited: true}.PrivacyBlocked())
	assert.False(t, Verdict{State: Unknown}.PrivacyBlocked())
	assert.False(t, Verdict{State: Accessible, Empty: true}.PrivacyBlocked())
}

func TestIsPrivacyRedirect(t *testing.T) {
	assert.True(t, isPrivacyRedirect("/login/home/?goto=wishlist"))
	assert.True(t, isPrivacyRedirect("https://steamcommunity.com"))
	assert.False(t, isPrivacyRedirect(""))
	assert.False(t, isPrivacyRedirect("/wishlist/id/someone/"))
}
