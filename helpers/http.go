package helpers

import (
	"bytes"
	"fmt"
	"io"
	mathrand "math/rand"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
)

// Browser header configurations
var (
	userAgents = []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	}
)

// RandomUserAgent picks one of the known desktop user agents
func RandomUserAgent() string {
	return userAgents[mathrand.Intn(len(userAgents))]
}

// BrowserHeaders returns headers for a top-level page navigation.
// Cookies are fixed to skip the age gate and pin the store language.
func BrowserHeaders(referer, language string) map[string]string {
	if language == "" {
		language = "english"
	}
	h := map[string]string{
		"User-Agent":                RandomUserAgent(),
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
		"Accept-Language":           "en-US,en;q=0.9",
		"Cache-Control":             "no-cache",
		"Pragma":                    "no-cache",
		"Upgrade-Insecure-Requests": "1",
		"Sec-Fetch-Mode":            "navigate",
		"Sec-Fetch-Site":            "none",
		"Sec-Fetch-User":            "?1",
		"Cookie":                    fmt.Sprintf("birthtime=0; mature_content=1; Steam_Language=%s", language),
	}
	if referer != "" {
		h["Referer"] = referer
		h["Sec-Fetch-Site"] = "same-origin"
	}
	return h
}

// XHRHeaders returns headers for an in-page JSON request originating from referer
func XHRHeaders(referer string) map[string]string {
	h := map[string]string{
		"User-Agent":       RandomUserAgent(),
		"Accept":           "application/json, text/javascript, */*; q=0.01",
		"Accept-Language":  "en-US,en;q=0.9",
		"X-Requested-With": "XMLHttpRequest",
		"Sec-Fetch-Mode":   "cors",
		"Sec-Fetch-Site":   "same-origin",
		"Sec-Fetch-Dest":   "empty",
	}
	if referer != "" {
		h["Referer"] = referer
	}
	return h
}

// DecodeUTF8 converts body to UTF-8 using the Content-Type header and
// any meta charset declaration in the body.
func DecodeUTF8(body []byte, contentType string) ([]byte, error) {
	encoding, name, certain := charset.DetermineEncoding(body, contentType)

	// If already UTF-8, return as is. The detector only samples the first
	// 1024 bytes, so an undeclared body that is valid UTF-8 is kept too.
	if strings.EqualFold(name, "utf-8") || (!certain && utf8.Valid(body)) {
		return body, nil
	}

	utf8Reader := encoding.NewDecoder().Reader(bytes.NewReader(body))
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, utf8Reader); err != nil {
		return nil, fmt.Errorf("failed to read converted UTF-8 body: %w", err)
	}
	return buf.Bytes(), nil
}
