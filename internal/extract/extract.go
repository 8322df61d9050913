package extract

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Result is the raw outcome of extracting one listing fragment. Every field
// except URL is optional.
type Result struct {
	URL        string
	Title      string
	Snippet    string
	ImageURL   string
	Price      *float64
	Currency   string
	DatePosted *time.Time
}

// Selectors are optional site-specific CSS overrides. Empty fields fall back
// to the generic strategy chain for that field.
type Selectors struct {
	Title       string
	Price       string
	Description string
	Image       string
}

// Options tune extraction for one source site.
type Options struct {
	// BaseURL resolves relative hrefs and image paths.
	BaseURL *url.URL
	// Selectors override the generic per-field strategies.
	Selectors Selectors
	// DefaultCurrency labels prices that carry no currency marker.
	DefaultCurrency string
}

const maxTitleLen = 200

var (
	dateRe = regexp.MustCompile(`\b(\d{1,2})\.(\d{1,2})\.(\d{4})\b`)

	titleClassHints = []string{"title", "name", "product"}
	descClassHints  = []string{"desc", "summary", "subtitle"}
	priceClassHints = []string{"price", "cost", "amount"}
)

// FromSelection extracts one record from an item container. Field resolution
// runs independent strategy chains; the first strategy that yields a value
// wins and later ones are not consulted. Missing fields stay zero.
func FromSelection(sel *goquery.Selection, opts Options) *Result {
	r := &Result{}

	r.URL = extractItemURL(sel, opts.BaseURL)
	r.Title = extractTitle(sel, opts.Selectors.Title)
	r.Snippet = extractSnippet(sel, opts.Selectors.Description)
	r.ImageURL = extractImage(sel, opts.Selectors.Image, opts.BaseURL)
	r.Price, r.Currency = extractPrice(sel, opts.Selectors.Price, opts.DefaultCurrency)
	r.DatePosted = extractDate(sel)

	return r
}

// FromDocument extracts one record from a standalone item page. Unlike the
// fragment path it can consult document metadata, which is usually cleaner
// than anything in the body markup.
func FromDocument(doc *goquery.Document, pageURL string, opts Options) *Result {
	body := doc.Find("body")
	r := &Result{URL: pageURL}

	if opts.Selectors.Title != "" {
		r.Title = strings.TrimSpace(doc.Find(opts.Selectors.Title).First().Text())
	}
	if r.Title == "" {
		r.Title = metaContent(doc, `meta[property="og:title"]`)
	}
	if r.Title == "" {
		r.Title = firstText(body, "h1, h2")
	}
	if r.Title == "" {
		r.Title = strings.TrimSpace(doc.Find("head title").First().Text())
	}
	r.Title = truncate(r.Title, maxTitleLen)

	r.Snippet = extractSnippet(body, opts.Selectors.Description)
	if r.Snippet == "" {
		r.Snippet = metaContent(doc, `meta[name="description"]`)
	}
	if r.Snippet == "" {
		r.Snippet = metaContent(doc, `meta[property="og:description"]`)
	}

	r.ImageURL = extractImage(body, opts.Selectors.Image, opts.BaseURL)
	if r.ImageURL == "" {
		r.ImageURL = resolveURL(metaContent(doc, `meta[property="og:image"]`), opts.BaseURL)
	}

	r.Price, r.Currency = extractPrice(body, opts.Selectors.Price, opts.DefaultCurrency)
	r.DatePosted = extractDate(body)

	return r
}

func extractItemURL(sel *goquery.Selection, base *url.URL) string {
	if href, ok := sel.Attr("href"); ok {
		return resolveURL(href, base)
	}

	href := ""
	sel.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		h, _ := a.Attr("href")
		h = strings.TrimSpace(h)
		if h == "" || strings.HasPrefix(h, "#") || strings.HasPrefix(h, "javascript:") {
			return true
		}
		href = h
		return false
	})

	return resolveURL(href, base)
}

func extractTitle(sel *goquery.Selection, selector string) string {
	if selector != "" {
		if t := strings.TrimSpace(sel.Find(selector).First().Text()); t != "" {
			return truncate(t, maxTitleLen)
		}
	}

	// Header inside the item's link carries the cleanest name.
	if t := firstText(sel, "a h1, a h2, a h3, a h4"); t != "" {
		return truncate(t, maxTitleLen)
	}
	if t := firstText(sel, "h1, h2, h3, h4"); t != "" {
		return truncate(t, maxTitleLen)
	}
	if t := textByClassHint(sel, titleClassHints); t != "" {
		return truncate(t, maxTitleLen)
	}
	if t := firstText(sel, "a"); t != "" {
		return truncate(t, maxTitleLen)
	}

	// Last resort: the fragment's first text line.
	for _, line := range strings.Split(sel.Text(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return truncate(line, maxTitleLen)
		}
	}

	return ""
}

func extractSnippet(sel *goquery.Selection, selector string) string {
	if selector != "" {
		if t := strings.TrimSpace(sel.Find(selector).First().Text()); t != "" {
			return t
		}
	}
	if t := textByClassHint(sel, descClassHints); t != "" {
		return t
	}
	return firstText(sel, "p")
}

func extractImage(sel *goquery.Selection, selector string, base *url.URL) string {
	if selector != "" {
		if src := imgSrc(sel.Find(selector).First()); src != "" {
			return resolveURL(src, base)
		}
	}

	src := ""
	sel.Find("img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		if s := imgSrc(img); s != "" {
			src = s
			return false
		}
		return true
	})

	return resolveURL(src, base)
}

func extractPrice(sel *goquery.Selection, selector, defaultCurrency string) (*float64, string) {
	if selector != "" {
		if p, c := ParsePrice(sel.Find(selector).First().Text(), defaultCurrency); p != nil {
			return p, c
		}
	}

	if t := textByClassHint(sel, priceClassHints); t != "" {
		if p, c := ParsePrice(t, defaultCurrency); p != nil {
			return p, c
		}
	}

	return ParsePrice(sel.Text(), defaultCurrency)
}

func extractDate(sel *goquery.Selection) *time.Time {
	if dt, ok := sel.Find("time[datetime]").First().Attr("datetime"); ok {
		for _, layout := range []string{time.RFC3339, "2006-01-02"} {
			if t, err := time.Parse(layout, strings.TrimSpace(dt)); err == nil {
				return &t
			}
		}
	}

	if m := dateRe.FindStringSubmatch(sel.Text()); m != nil {
		if t, err := time.Parse("2.1.2006", m[1]+"."+m[2]+"."+m[3]); err == nil {
			return &t
		}
	}

	return nil
}

// textByClassHint returns the text of the first element whose class attribute
// contains one of the hints as a substring.
func textByClassHint(sel *goquery.Selection, hints []string) string {
	text := ""
	sel.Find("[class]").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		class, _ := el.Attr("class")
		class = strings.ToLower(class)
		for _, hint := range hints {
			if strings.Contains(class, hint) {
				if t := strings.TrimSpace(el.Text()); t != "" {
					text = t
					return false
				}
			}
		}
		return true
	})
	return text
}

func firstText(sel *goquery.Selection, selector string) string {
	text := ""
	sel.Find(selector).EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if t := strings.TrimSpace(el.Text()); t != "" {
			text = t
			return false
		}
		return true
	})
	return text
}

func imgSrc(img *goquery.Selection) string {
	for _, attr := range []string{"src", "data-src", "data-original"} {
		if src, ok := img.Attr(attr); ok {
			if src = strings.TrimSpace(src); src != "" && !strings.HasPrefix(src, "data:") {
				return src
			}
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return strings.TrimSpace(string(runes[:n]))
}

func metaContent(doc *goquery.Document, selector string) string {
	content, _ := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(content)
}

func resolveURL(href string, base *url.URL) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	u.Fragment = ""
	return u.String()
}
