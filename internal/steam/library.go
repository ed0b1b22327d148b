package steam

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/steamdealworker/helpers"
	"sjsage522/steamdealworker/internal/model"
	"sjsage522/steamdealworker/pkg/errors"
)

var (
	rgGamesPattern = regexp.MustCompile(`(?s)var rgGames = (\[.*?\]);`)
	appHrefPattern = regexp.MustCompile(`/app/(\d+)`)
)

// ownedGamesAPI reads IPlayerService/GetOwnedGames, which needs a Web API key
func (e *Extractor) ownedGamesAPI(ctx context.Context, id model.AccountID) StageResult {
	if e.apiKey == "" {
		return failed(errors.NewValidation("owned_games_api", "no web api key configured"))
	}

	resp, err := e.client.Get(ctx, "owned_games_api", e.client.Endpoints().API+"/IPlayerService/GetOwnedGames/v1/",
		url.Values{
			"key":                       {e.apiKey},
			"steamid":                   {id.String()},
			"include_appinfo":           {"1"},
			"include_played_free_games": {"1"},
			"format":                    {"json"},
		}, nil)
	if err != nil {
		return failed(err)
	}
	if err := Expect200("owned_games_api", resp); err != nil {
		return failed(err)
	}

	var envelope struct {
		Response struct {
			GameCount *int `json:"game_count"`
			Games     []struct {
				AppID           int    `json:"appid"`
				Name            string `json:"name"`
				PlaytimeForever int    `json:"playtime_forever"`
			} `json:"games"`
		} `json:"response"`
	}
	if err := json.Unmarshal(resp.Body, &envelope); err != nil {
		return failed(errors.NewParsing("owned_games_api", "invalid envelope", err))
	}
	// private profiles answer with an empty response object
	if envelope.Response.GameCount == nil {
		return failed(errors.NewParsing("owned_games_api", "game_count missing", nil))
	}

	entries := make([]model.ListEntry, 0, len(envelope.Response.Games))
	for _, g := range envelope.Response.Games {
		if g.AppID <= 0 {
			continue
		}
		entries = append(entries, model.ListEntry{
			ItemID:          strconv.Itoa(g.AppID),
			DisplayName:     g.Name,
			PlaytimeMinutes: g.PlaytimeForever,
		})
	}
	return entriesOrEmpty(entries)
}

// gamesPage scrapes the community games page. The embedded rgGames array and
// the rendered rows are both read and merged by app id.
func (e *Extractor) gamesPage(ctx context.Context, id model.AccountID) StageResult {
	resp, err := e.client.Get(ctx, "games_page", PageURL(e.client.Endpoints(), id, model.Library), nil,
		helpers.BrowserHeaders("", e.client.Language()))
	if err != nil {
		return failed(err)
	}
	if err := Expect200("games_page", resp); err != nil {
		return failed(err)
	}
	return parseGamesPage(resp.Body)
}

func parseGamesPage(body []byte) StageResult {
	m, hasMarker := matchMarker(string(body), model.Library)
	if hasMarker && m.state == Inaccessible {
		return StageResult{Outcome: OutcomeInaccessible, Err: errors.NewInaccessible("games_page", m.name)}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return failed(errors.NewParsing("games_page", "HTML parse error", err))
	}

	var merged []model.ListEntry
	index := map[string]int{}
	add := func(entries []model.ListEntry) {
		for _, en := range entries {
			if en.ItemID == "" {
				continue
			}
			i, seen := index[en.ItemID]
			if !seen {
				index[en.ItemID] = len(merged)
				merged = append(merged, en)
				continue
			}
			if merged[i].HasPlaceholderName() && !en.HasPlaceholderName() {
				merged[i].DisplayName = en.DisplayName
			}
			if merged[i].PlaytimeMinutes == 0 {
				merged[i].PlaytimeMinutes = en.PlaytimeMinutes
			}
		}
	}

	scriptEntries, scriptFound := parseRgGames(body)
	add(scriptEntries)
	configEntries, configFound := parseGamesListConfig(doc)
	add(configEntries)
	add(parseGameListRows(doc))

	if len(merged) > 0 {
		return StageResult{Outcome: OutcomeEntries, Entries: merged}
	}
	if scriptFound || configFound || (hasMarker && m.empty) {
		return StageResult{Outcome: OutcomeEmptyButValid}
	}
	return failed(errors.NewParsing("games_page", "no game data in page", nil))
}

type pageGame struct {
	AppID           json.Number `json:"appid"`
	Name            string      `json:"name"`
	HoursForever    string      `json:"hours_forever"`
	PlaytimeForever int         `json:"playtime_forever"`
}

func (g pageGame) entry() model.ListEntry {
	minutes := g.PlaytimeForever
	if minutes == 0 {
		minutes = helpers.HoursToMinutes(g.HoursForever)
	}
	return model.ListEntry{ItemID: g.AppID.String(), DisplayName: g.Name, PlaytimeMinutes: minutes}
}

// parseRgGames reads the legacy `var rgGames = [...]` script. found reports
// that the array exists, even if it is empty.
func parseRgGames(body []byte) (entries []model.ListEntry, found bool) {
	match := rgGamesPattern.FindSubmatch(body)
	if match == nil {
		return nil, false
	}
	var games []pageGame
	if err := json.Unmarshal(match[1], &games); err != nil {
		return nil, false
	}
	for _, g := range games {
		entries = append(entries, g.entry())
	}
	return entries, true
}

// parseGamesListConfig reads the JSON carried in the data-profile-gameslist
// attribute of the current games page
func parseGamesListConfig(doc *goquery.Document) (entries []model.ListEntry, found bool) {
	raw, ok := doc.Find("#gameslist_config").Attr("data-profile-gameslist")
	if !ok || raw == "" {
		return nil, false
	}
	var cfg struct {
		Games []pageGame `json:"rgGames"`
	}
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil, false
	}
	for _, g := range cfg.Games {
		entries = append(entries, g.entry())
	}
	return entries, true
}

func parseGameListRows(doc *goquery.Document) []model.ListEntry {
	var entries []model.ListEntry
	doc.Find("div.gameListRow").Each(func(_ int, row *goquery.Selection) {
		var id string
		if href, ok := row.Find(`a[href*="/app/"]`).First().Attr("href"); ok {
			if m := appHrefPattern.FindStringSubmatch(href); m != nil {
				id = m[1]
			}
		}
		if id == "" {
			if rowID, ok := row.Attr("id"); ok {
				id = strings.TrimPrefix(rowID, "game_")
			}
		}
		if !helpers.IsNumeric(id) {
			return
		}
		entries = append(entries, model.ListEntry{
			ItemID:          id,
			DisplayName:     strings.TrimSpace(row.Find(".gameListRowItemName").First().Text()),
			PlaytimeMinutes: helpers.HoursToMinutes(row.Find(".gameListRowHours").First().Text()),
		})
	})
	return entries
}

type gamesListXML struct {
	Error string `xml:"error"`
	Games struct {
		Game []struct {
			AppID         string `xml:"appID"`
			Name          string `xml:"name"`
			HoursOnRecord string `xml:"hoursOnRecord"`
		} `xml:"game"`
	} `xml:"games"`
}

// gamesXML reads the community games list in its XML rendering
func (e *Extractor) gamesXML(ctx context.Context, id model.AccountID) StageResult {
	resp, err := e.client.Get(ctx, "games_xml",
		fmt.Sprintf("%s/profiles/%s/games/", e.client.Endpoints().Community, id),
		url.Values{"tab": {"all"}, "xml": {"1"}}, helpers.BrowserHeaders("", e.client.Language()))
	if err != nil {
		return failed(err)
	}
	if err := Expect200("games_xml", resp); err != nil {
		return failed(err)
	}
	if !looksLikeXML(resp.Body) {
		return failed(errors.NewParsing("games_xml", "response is not xml", nil))
	}

	var doc gamesListXML
	if err := decodeXML(resp.Body, &doc); err != nil {
		return failed(errors.NewParsing("games_xml", "invalid games xml", err))
	}
	if doc.Error != "" {
		return failed(errors.NewParsing("games_xml", doc.Error, nil))
	}

	entries := make([]model.ListEntry, 0, len(doc.Games.Game))
	for _, g := range doc.Games.Game {
		entries = append(entries, model.ListEntry{
			ItemID:          strings.TrimSpace(g.AppID),
			DisplayName:     strings.TrimSpace(g.Name),
			PlaytimeMinutes: helpers.HoursToMinutes(g.HoursOnRecord),
		})
	}
	return entriesOrEmpty(entries)
}
