package steam

import (
	"context"
	"fmt"
	"net/http"

	"sjsage522/steamdealworker/helpers"
	"sjsage522/steamdealworker/internal/model"
	"sjsage522/steamdealworker/logger"
)

// Verdict is the prober's classification of a list page
type Verdict struct {
	State       State  `json:"state"`
	Reason      string `json:"reason"`
	RateLimited bool   `json:"rate_limited,omitempty"`
	Empty       bool   `json:"empty,omitempty"`
}

// PrivacyBlocked reports an Inaccessible verdict that is not caused by rate limiting
func (v Verdict) PrivacyBlocked() bool {
	return v.State == Inaccessible && !v.RateLimited
}

// Prober classifies whether an account's list page can be read anonymously
type Prober struct {
	client *Client
}

func NewProber(client *Client) *Prober {
	return &Prober{client: client}
}

// PageURL returns the human-facing page of a list
func PageURL(e Endpoints, id model.AccountID, kind model.ListKind) string {
	if kind == model.Library {
		return fmt.Sprintf("%s/profiles/%s/games/?tab=all", e.Community, id)
	}
	return fmt.Sprintf("%s/wishlist/profiles/%s/", e.Store, id)
}

// Probe fetches the list page once and classifies it. It never fails;
// anything it cannot classify is Unknown.
func (p *Prober) Probe(ctx context.Context, id model.AccountID, kind model.ListKind) Verdict {
	log := logger.ForSteam("probe").WithFields(logger.Fields{"account": id, "kind": kind})

	resp, err := p.client.Get(ctx, "probe", PageURL(p.client.Endpoints(), id, kind), nil,
		helpers.BrowserHeaders("", p.client.Language()))
	if err != nil {
		log.Debug().Err(err).Msg("probe request failed")
		return Verdict{State: Unknown, Reason: err.Error()}
	}

	v := classify(resp, kind)
	log.Debug().Str("state", string(v.State)).Str("reason", v.Reason).Msg("probe verdict")
	return v
}

func classify(resp *Response, kind model.ListKind) Verdict {
	switch {
	case resp.Status == http.StatusTooManyRequests:
		return Verdict{State: Inaccessible, Reason: "rate limited", RateLimited: true}
	case resp.Status == http.StatusForbidden || resp.Status == http.StatusNotFound:
		return Verdict{State: Inaccessible, Reason: fmt.Sprintf("status %d", resp.Status)}
	case resp.IsRedirect():
		if isPrivacyRedirect(resp.Location) {
			return Verdict{State: Inaccessible, Reason: "redirected to " + resp.Location}
		}
		return Verdict{State: Unknown, Reason: "redirected to " + resp.Location}
	case resp.Status != http.StatusOK:
		return Verdict{State: Unknown, Reason: fmt.Sprintf("status %d", resp.Status)}
	}

	m, ok := matchMarker(string(resp.Body), kind)
	if !ok {
		return Verdict{State: Unknown, Reason: "no known marker"}
	}
	return Verdict{State: m.state, Reason: m.name, Empty: m.empty}
}
