package steam

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"sjsage522/steamdealworker/helpers"
	"sjsage522/steamdealworker/internal/model"
	"sjsage522/steamdealworker/logger"
	"sjsage522/steamdealworker/pkg/errors"
)

// Ways a profile page embeds the 64-bit account id, tried in order
var steamIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`<steamID64>\s*(\d{17})\s*</steamID64>`),
	regexp.MustCompile(`"steamid":"(\d{17})"`),
	regexp.MustCompile(`g_steamID = "(\d{17})";`),
}

var vanityPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{2,32}$`)

// Resolver maps a profile URL, vanity name or account id onto an AccountID
type Resolver struct {
	client *Client
}

func NewResolver(client *Client) *Resolver {
	return &Resolver{client: client}
}

// Resolve returns the account id for raw. Canonical ids are returned as is
// without touching the network; vanity names cost one profile fetch.
func (r *Resolver) Resolve(ctx context.Context, raw string) (model.AccountID, error) {
	ident, isID, err := parseProfileInput(raw)
	if err != nil {
		return "", err
	}
	if isID {
		return model.AccountID(ident), nil
	}
	return r.resolveVanity(ctx, ident)
}

// parseProfileInput extracts the identifier from raw. isID is true when the
// identifier is already a canonical account id.
func parseProfileInput(raw string) (ident string, isID bool, err error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false, errors.NewNotResolvable(raw, "empty profile reference", nil)
	}

	if strings.Contains(s, "steamcommunity.com") || strings.Contains(s, "://") {
		if !strings.Contains(s, "://") {
			s = "https://" + s
		}
		u, perr := url.Parse(s)
		if perr != nil {
			return "", false, errors.NewNotResolvable(raw, "malformed profile url", perr)
		}
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) < 2 || parts[1] == "" {
			return "", false, errors.NewNotResolvable(raw, "profile url has no identifier", nil)
		}
		switch parts[0] {
		case "profiles":
			if !model.AccountID(parts[1]).Valid() {
				return "", false, errors.NewNotResolvable(raw, "profiles url without a 17-digit id", nil)
			}
			return parts[1], true, nil
		case "id":
			s = parts[1]
		default:
			return "", false, errors.NewNotResolvable(raw, "not a profile url", nil)
		}
	}

	if model.AccountID(s).Valid() {
		return s, true, nil
	}
	if helpers.IsNumeric(s) {
		return "", false, errors.NewNotResolvable(raw, "numeric id is not 17 digits", nil)
	}
	if !vanityPattern.MatchString(s) {
		return "", false, errors.NewNotResolvable(raw, "invalid vanity name", nil)
	}
	return s, false, nil
}

func (r *Resolver) resolveVanity(ctx context.Context, vanity string) (model.AccountID, error) {
	log := logger.ForSteam("resolve").WithField("vanity", vanity)

	endpoint := fmt.Sprintf("%s/id/%s/", r.client.Endpoints().Community, url.PathEscape(vanity))
	resp, err := r.client.Get(ctx, "resolve", endpoint, url.Values{"xml": {"1"}},
		helpers.BrowserHeaders("", r.client.Language()))
	if err != nil {
		return "", errors.NewNotResolvable(vanity, "profile fetch failed", err)
	}
	if resp.Status != http.StatusOK {
		return "", errors.NewNotResolvable(vanity, fmt.Sprintf("profile fetch returned %d", resp.Status), nil)
	}

	body := string(resp.Body)
	if strings.Contains(body, "The specified profile could not be found") {
		return "", errors.NewNotResolvable(vanity, "profile could not be found", nil)
	}

	for _, re := range steamIDPatterns {
		if m := re.FindStringSubmatch(body); m != nil {
			log.Debug().Str("account", m[1]).Msg("vanity resolved")
			return model.AccountID(m[1]), nil
		}
	}
	return "", errors.NewNotResolvable(vanity, "no account id in profile", nil)
}
