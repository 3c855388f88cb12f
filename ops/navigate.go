// Package ops provides the browser operations the host exposes: rendered
// scraping, scripted interaction, screenshot and PDF capture. Each entry
// point returns an executor.Operation closure; the pool and executor stay
// ignorant of what runs inside a page.
package ops

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/inf-mc/NoteBot-sub001/driver"
	"github.com/inf-mc/NoteBot-sub001/executor"
	"github.com/inf-mc/NoteBot-sub001/models"
)

// domStableWait is the quiet period WaitDOMStable requires before the DOM
// is considered settled.
const domStableWait = 300 * time.Millisecond

// ScrapeOptions configures a Scrape operation.
type ScrapeOptions struct {
	URL     string
	Stealth bool
	Headers map[string]string
	Cookies []models.Cookie
	Actions []models.Action

	// BlockedResourceTypes lists resource types the hijack strips.
	BlockedResourceTypes []string
}

// ScrapeResult is what a Scrape operation yields.
type ScrapeResult struct {
	HTML     string
	Title    string
	FinalURL string
	Links    []models.Link
}

// Scrape returns an operation that navigates to opts.URL, waits for the
// DOM to settle, runs any scripted actions, and extracts the rendered
// document.
func Scrape(opts ScrapeOptions, policy *DomainPolicy) executor.Operation {
	return func(ctx context.Context, page driver.Page) (any, error) {
		p, err := preparePage(ctx, page, opts.URL, opts.Stealth, policy)
		if err != nil {
			return nil, err
		}

		if err := applyHeaders(p, opts.URL, opts.Headers); err != nil {
			return nil, models.New(models.ErrCodeNavigation, "failed to set request headers", err)
		}
		applyCookies(p, opts.URL, opts.Cookies)

		router := mountHijack(p, opts.BlockedResourceTypes, policy)
		if router != nil {
			defer func() { _ = router.Stop() }()
		}

		pc := p.Context(ctx)
		if err := pc.Navigate(opts.URL); err != nil {
			return nil, models.NewNavigationError(opts.URL, err)
		}
		waitStable(pc)

		if len(opts.Actions) > 0 {
			if err := runActions(ctx, p, opts.Actions); err != nil {
				return nil, err
			}
		}

		html, err := pc.HTML()
		if err != nil {
			return nil, models.NewNavigationError(opts.URL, err)
		}

		result := &ScrapeResult{
			HTML:     html,
			Title:    evalStringOrEmpty(pc, `() => document.title`),
			FinalURL: evalStringOrEmpty(pc, `() => window.location.href`),
		}
		if result.FinalURL == "" {
			result.FinalURL = opts.URL
		}
		result.Links = extractLinks(html, result.FinalURL)
		return result, nil
	}
}

// preparePage runs the shared pre-navigation steps: policy check, rod
// unwrap, stealth injection. Stealth must be installed before Navigate or
// it has no effect.
func preparePage(ctx context.Context, page driver.Page, rawURL string, useStealth bool, policy *DomainPolicy) (*rod.Page, error) {
	if policy != nil && !policy.AllowsURL(rawURL) {
		return nil, models.NewSecurityError("navigation to " + rawURL + " denied by domain policy")
	}

	p := page.Rod()
	if p == nil {
		return nil, models.New(models.ErrCodeInternal, "page has no rod driver attached", nil)
	}

	if useStealth {
		if _, err := p.EvalOnNewDocument(stealth.JS); err != nil {
			return nil, models.New(models.ErrCodeInternal, "stealth injection failed", err)
		}
	}
	return p, nil
}

// applyHeaders sets extra HTTP headers, defaulting the Referer to a search
// results page for the target host when the caller did not provide one.
func applyHeaders(p *rod.Page, rawURL string, headers map[string]string) error {
	extra := make(map[string]string, len(headers)+1)
	if _, hasReferer := headers["Referer"]; !hasReferer {
		if u, err := url.Parse(rawURL); err == nil {
			extra["Referer"] = "https://www.google.com/search?q=" + url.QueryEscape(u.Hostname())
		}
	}
	for k, v := range headers {
		extra[k] = v
	}
	if len(extra) == 0 {
		return nil
	}
	return proto.NetworkSetExtraHTTPHeaders{Headers: toHeadersMap(extra)}.Call(p)
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders
// type (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// applyCookies installs cookies, defaulting domain and path from the
// target URL. Best effort.
func applyCookies(p *rod.Page, rawURL string, cookies []models.Cookie) {
	for _, cookie := range cookies {
		domain := cookie.Domain
		if domain == "" {
			if u, err := url.Parse(rawURL); err == nil {
				domain = u.Host
			}
		}
		path := cookie.Path
		if path == "" {
			path = "/"
		}
		_, _ = proto.NetworkSetCookie{
			Name:   cookie.Name,
			Value:  cookie.Value,
			Domain: domain,
			Path:   path,
		}.Call(p)
	}
}

// waitStable waits for the DOM to stop mutating. A non-converging page is
// scraped as-is rather than failed.
func waitStable(p *rod.Page) {
	_ = p.WaitDOMStable(domStableWait, 0.1)
}

// evalStringOrEmpty evaluates a JS expression and returns the string
// result, swallowing any errors.
func evalStringOrEmpty(p *rod.Page, js string) string {
	res, err := p.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// extractLinks parses the rendered document and resolves every anchor href
// against the final URL.
func extractLinks(html, baseURL string) []models.Link {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	base, _ := url.Parse(baseURL)

	var links []models.Link
	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return
		}
		if base != nil {
			if u, err := url.Parse(href); err == nil {
				href = base.ResolveReference(u).String()
			}
		}
		if _, dup := seen[href]; dup {
			return
		}
		seen[href] = struct{}{}
		links = append(links, models.Link{
			Href: href,
			Text: strings.TrimSpace(sel.Text()),
		})
	})
	return links
}
