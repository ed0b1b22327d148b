package steam

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"

	"golang.org/x/net/html/charset"

	"sjsage522/steamdealworker/helpers"
	"sjsage522/steamdealworker/internal/model"
	"sjsage522/steamdealworker/logger"
	"sjsage522/steamdealworker/pkg/errors"
)

const legacyWishlistMaxPages = 20

var wishlistScriptPattern = regexp.MustCompile(`(?s)g_rgWishlistData\s*=\s*(\[.*?\]);`)

// wishlistAPI reads IWishlistService/GetWishlist. A response object without
// items is ambiguous (empty or private) and is settled by the item count.
func (e *Extractor) wishlistAPI(ctx context.Context, id model.AccountID) StageResult {
	api := e.client.Endpoints().API
	resp, err := e.client.Get(ctx, "wishlist_api", api+"/IWishlistService/GetWishlist/v1/",
		url.Values{"steamid": {id.String()}, "format": {"json"}}, nil)
	if err != nil {
		return failed(err)
	}
	if err := Expect200("wishlist_api", resp); err != nil {
		return failed(err)
	}

	var envelope struct {
		Response *struct {
			Items *[]struct {
				AppID    int `json:"appid"`
				Priority int `json:"priority"`
			} `json:"items"`
		} `json:"response"`
	}
	if err := json.Unmarshal(resp.Body, &envelope); err != nil {
		return failed(errors.NewParsing("wishlist_api", "invalid envelope", err))
	}
	if envelope.Response == nil {
		return failed(errors.NewParsing("wishlist_api", "missing response object", nil))
	}
	if envelope.Response.Items == nil {
		return e.wishlistCount(ctx, id)
	}

	items := *envelope.Response.Items
	sort.SliceStable(items, func(i, j int) bool { return items[i].Priority < items[j].Priority })
	entries := make([]model.ListEntry, 0, len(items))
	for _, it := range items {
		if it.AppID <= 0 {
			continue
		}
		entries = append(entries, model.ListEntry{ItemID: strconv.Itoa(it.AppID)})
	}
	if len(items) > 0 && len(entries) == 0 {
		return failed(errors.NewParsing("wishlist_api", "items without app ids", nil))
	}
	return entriesOrEmpty(entries)
}

func (e *Extractor) wishlistCount(ctx context.Context, id model.AccountID) StageResult {
	api := e.client.Endpoints().API
	resp, err := e.client.Get(ctx, "wishlist_count", api+"/IWishlistService/GetWishlistItemCount/v1/",
		url.Values{"steamid": {id.String()}, "format": {"json"}}, nil)
	if err != nil {
		return failed(err)
	}
	if err := Expect200("wishlist_count", resp); err != nil {
		return failed(err)
	}

	var envelope struct {
		Response struct {
			Count *int `json:"count"`
		} `json:"response"`
	}
	if err := json.Unmarshal(resp.Body, &envelope); err != nil {
		return failed(errors.NewParsing("wishlist_count", "invalid envelope", err))
	}
	if envelope.Response.Count == nil {
		return failed(errors.NewParsing("wishlist_count", "count missing", nil))
	}
	if *envelope.Response.Count == 0 {
		return StageResult{Outcome: OutcomeEmptyButValid}
	}
	return failed(errors.NewParsing("wishlist_count",
		fmt.Sprintf("count is %d but items were not returned", *envelope.Response.Count), nil))
}

type legacyWishlistItem struct {
	Name     string   `json:"name"`
	Priority int      `json:"priority"`
	Tags     []string `json:"tags"`
}

// wishlistLegacy pages through the store's wishlistdata endpoint. A redirect on
// the first page means the store refused anonymous access and ends the cascade.
func (e *Extractor) wishlistLegacy(ctx context.Context, id model.AccountID) StageResult {
	store := e.client.Endpoints().Store
	referer := fmt.Sprintf("%s/wishlist/profiles/%s/", store, id)
	endpoint := fmt.Sprintf("%s/wishlist/profiles/%s/wishlistdata/", store, id)

	var entries []model.ListEntry
	for page := 0; page < legacyWishlistMaxPages; page++ {
		resp, err := e.client.Get(ctx, "wishlist_legacy", endpoint,
			url.Values{"p": {strconv.Itoa(page)}}, helpers.XHRHeaders(referer))
		if err != nil {
			return failed(err)
		}
		if resp.IsRedirect() {
			if page > 0 {
				// the list was readable; keep what the earlier pages returned
				logger.ForSteam("wishlist_legacy").Warn().
					Int("page", page).
					Str("location", resp.Location).
					Msg("redirected while paging, keeping earlier pages")
				break
			}
			return StageResult{
				Outcome: OutcomeInaccessible,
				Err:     errors.NewInaccessible("wishlist_legacy", "redirected to "+resp.Location),
			}
		}
		if err := Expect200("wishlist_legacy", resp); err != nil {
			return failed(err)
		}

		pageEntries, err := parseLegacyWishlist(resp.Body)
		if err != nil {
			return failed(err)
		}
		if len(pageEntries) == 0 {
			break
		}
		entries = append(entries, pageEntries...)
	}
	return entriesOrEmpty(entries)
}

// parseLegacyWishlist decodes one wishlistdata page: an object keyed by app id,
// or an empty array once there are no more items
func parseLegacyWishlist(body []byte) ([]model.ListEntry, error) {
	trimmed := bytes.TrimSpace(body)
	if bytes.Equal(trimmed, []byte("[]")) {
		return nil, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, errors.NewParsing("wishlist_legacy", "invalid wishlistdata", err)
	}
	if _, ok := raw["success"]; ok {
		return nil, errors.NewParsing("wishlist_legacy", "wishlistdata refused", nil)
	}

	type keyed struct {
		id   string
		item legacyWishlistItem
	}
	items := make([]keyed, 0, len(raw))
	for appID, msg := range raw {
		var it legacyWishlistItem
		if err := json.Unmarshal(msg, &it); err != nil {
			continue
		}
		items = append(items, keyed{id: appID, item: it})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].item.Priority != items[j].item.Priority {
			return items[i].item.Priority < items[j].item.Priority
		}
		return items[i].id < items[j].id
	})

	entries := make([]model.ListEntry, 0, len(items))
	for _, k := range items {
		if !helpers.IsNumeric(k.id) {
			continue
		}
		entries = append(entries, model.ListEntry{
			ItemID:      k.id,
			DisplayName: k.item.Name,
			Tags:        k.item.Tags,
		})
	}
	return entries, nil
}

type wishlistXML struct {
	Error string `xml:"error"`
	Games []struct {
		AppID string `xml:"appID"`
		Name  string `xml:"name"`
	} `xml:"game"`
}

// wishlistCommunity reads the community wishlist as XML, or the embedded
// g_rgWishlistData array when Steam answers with HTML
func (e *Extractor) wishlistCommunity(ctx context.Context, id model.AccountID) StageResult {
	community := e.client.Endpoints().Community
	resp, err := e.client.Get(ctx, "wishlist_community",
		fmt.Sprintf("%s/profiles/%s/wishlist/", community, id),
		url.Values{"xml": {"1"}}, helpers.BrowserHeaders("", e.client.Language()))
	if err != nil {
		return failed(err)
	}
	if err := Expect200("wishlist_community", resp); err != nil {
		return failed(err)
	}

	if looksLikeXML(resp.Body) {
		return parseWishlistXML(resp.Body)
	}
	return parseWishlistScript(resp.Body)
}

func parseWishlistXML(body []byte) StageResult {
	var doc wishlistXML
	if err := decodeXML(body, &doc); err != nil {
		return failed(errors.NewParsing("wishlist_community", "invalid wishlist xml", err))
	}
	if doc.Error != "" {
		return failed(errors.NewParsing("wishlist_community", doc.Error, nil))
	}
	entries := make([]model.ListEntry, 0, len(doc.Games))
	for _, g := range doc.Games {
		entries = append(entries, model.ListEntry{ItemID: g.AppID, DisplayName: g.Name})
	}
	return entriesOrEmpty(entries)
}

func parseWishlistScript(body []byte) StageResult {
	if m, ok := matchMarker(string(body), model.Wishlist); ok && m.state == Inaccessible {
		return StageResult{Outcome: OutcomeInaccessible, Err: errors.NewInaccessible("wishlist_community", m.name)}
	}

	match := wishlistScriptPattern.FindSubmatch(body)
	if match == nil {
		return failed(errors.NewParsing("wishlist_community", "no wishlist data in page", nil))
	}
	var items []struct {
		AppID int `json:"appid"`
	}
	if err := json.Unmarshal(match[1], &items); err != nil {
		return failed(errors.NewParsing("wishlist_community", "invalid g_rgWishlistData", err))
	}
	entries := make([]model.ListEntry, 0, len(items))
	for _, it := range items {
		if it.AppID > 0 {
			entries = append(entries, model.ListEntry{ItemID: strconv.Itoa(it.AppID)})
		}
	}
	return entriesOrEmpty(entries)
}

func looksLikeXML(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return bytes.HasPrefix(trimmed, []byte("<?xml"))
}

// decodeXML unmarshals body, honouring a non-UTF-8 encoding declaration
func decodeXML(body []byte, v any) error {
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.CharsetReader = charset.NewReaderLabel
	return dec.Decode(v)
}
