package crawler

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/okhmil/pricetrack/internal/config"
)

// PageLinks is the navigation outcome of one listing page: item URLs in
// first-discovery order and the next page to visit, if any.
type PageLinks struct {
	Items []string
	Next  string
}

// maxCardTextLen caps how much text a candidate product container may hold
// before it is considered a page-level wrapper.
const maxCardTextLen = 1500

// cardClassHints mark containers that plausibly hold one product each.
var cardClassHints = []string{"product", "item", "card", "goods", "offer"}

// nextLinkTexts are link labels that advance pagination when no structural
// affordance exists. Matched case-insensitively against trimmed anchor text.
var nextLinkTexts = []string{"наступна", "далі", "вперед", "next", "»", "›", "→"}

// DiscoverPage finds item links and the pagination step on a listing page.
// Configured selectors take precedence; without them the generic heuristics
// apply. Item URLs are deduplicated, keeping first-discovery order.
func DiscoverPage(doc *goquery.Document, pageURL *url.URL, sel config.Selectors) *PageLinks {
	links := &PageLinks{}

	seen := make(map[string]bool)
	add := func(href string) {
		u := normalizeLink(href, pageURL)
		if u == "" || seen[u] {
			return
		}
		seen[u] = true
		links.Items = append(links.Items, u)
	}

	switch {
	case sel.ItemLinks != "":
		doc.Find(sel.ItemLinks).Each(func(_ int, a *goquery.Selection) {
			if href, ok := a.Attr("href"); ok {
				add(href)
			} else if href, ok := a.Find("a[href]").First().Attr("href"); ok {
				add(href)
			}
		})
	case sel.ItemMarker != "":
		doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			if strings.Contains(href, sel.ItemMarker) {
				add(href)
			}
		})
	default:
		for _, card := range candidateCards(doc, sel.Cards) {
			if href, ok := card.Attr("href"); ok {
				add(href)
			} else if href, ok := card.Find("a[href]").First().Attr("href"); ok {
				add(href)
			}
		}
	}

	links.Next = nextPageURL(doc, pageURL, sel.NextPage)
	return links
}

// CardSelections returns the product fragments to extract in-place from a
// listing page. Configured card or item-link selectors take precedence over
// the class-hint heuristic.
func CardSelections(doc *goquery.Document, sel config.Selectors) []*goquery.Selection {
	if sel.Cards != "" {
		return candidateCards(doc, sel.Cards)
	}
	if sel.ItemLinks != "" {
		var cards []*goquery.Selection
		doc.Find(sel.ItemLinks).Each(func(_ int, s *goquery.Selection) {
			cards = append(cards, s)
		})
		return cards
	}
	return candidateCards(doc, "")
}

// candidateCards returns the product containers of a listing page. With no
// configured selector it falls back to class-hint matching, skipping nested
// matches so each product is counted once.
func candidateCards(doc *goquery.Document, selector string) []*goquery.Selection {
	var cards []*goquery.Selection

	if selector != "" {
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			cards = append(cards, s)
		})
		return cards
	}

	doc.Find("[class]").Each(func(_ int, s *goquery.Selection) {
		if !isViableCard(s) {
			return
		}
		// Grid and list wrappers also carry card-like class names; keep
		// only the deepest viable container so each product counts once.
		if containsViableCard(s) {
			return
		}
		// A wrapper holds many links and lots of text; a single card
		// holds few of either.
		if s.Find("a[href]").Length() > 5 {
			return
		}
		if len(strings.TrimSpace(s.Text())) > maxCardTextLen {
			return
		}
		cards = append(cards, s)
	})

	return cards
}

func isViableCard(s *goquery.Selection) bool {
	class, _ := s.Attr("class")
	if !hasClassHint(class, cardClassHints) {
		return false
	}
	return s.Is("a[href]") || s.Find("a[href]").Length() > 0
}

func containsViableCard(s *goquery.Selection) bool {
	found := false
	s.Find("[class]").EachWithBreak(func(_ int, d *goquery.Selection) bool {
		if isViableCard(d) {
			found = true
			return false
		}
		return true
	})
	return found
}

func hasClassHint(class string, hints []string) bool {
	class = strings.ToLower(class)
	for _, hint := range hints {
		if strings.Contains(class, hint) {
			return true
		}
	}
	return false
}

// nextPageURL resolves the next page of a listing. Strategy order: the
// configured selector, rel=next affordances, known link labels, and finally
// incrementing an existing page query parameter.
func nextPageURL(doc *goquery.Document, pageURL *url.URL, selector string) string {
	if selector != "" {
		if href, ok := doc.Find(selector).First().Attr("href"); ok {
			return normalizeLink(href, pageURL)
		}
	}

	if href, ok := doc.Find(`a[rel="next"]`).First().Attr("href"); ok {
		return normalizeLink(href, pageURL)
	}
	if href, ok := doc.Find(`link[rel="next"]`).First().Attr("href"); ok {
		return normalizeLink(href, pageURL)
	}

	next := ""
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		text := strings.ToLower(strings.TrimSpace(a.Text()))
		for _, label := range nextLinkTexts {
			if text == label {
				href, _ := a.Attr("href")
				next = normalizeLink(href, pageURL)
				return false
			}
		}
		return true
	})
	if next != "" {
		return next
	}

	return incrementPageParam(pageURL)
}

// incrementPageParam deduces the next page for sites that paginate purely by
// query parameter. It only fires when the current URL already carries one,
// so page 1 without markup affordances terminates the walk.
func incrementPageParam(pageURL *url.URL) string {
	q := pageURL.Query()
	for _, param := range []string{"page", "p"} {
		if v := q.Get(param); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				continue
			}
			q.Set(param, strconv.Itoa(n+1))
			next := *pageURL
			next.RawQuery = q.Encode()
			return next.String()
		}
	}
	return ""
}

// normalizeLink resolves href against base and canonicalizes it for
// deduplication. Non-HTTP schemes yield "".
func normalizeLink(href string, base *url.URL) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
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
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String()
}

// DetectJSWall reports whether a page is an empty client-side application
// shell: no links, no meaningful text, and scripts dominating the body.
func DetectJSWall(doc *goquery.Document) bool {
	body := doc.Find("body")
	if body.Length() == 0 {
		return false
	}
	if body.Find("a[href]").Length() > 0 {
		return false
	}

	clone := body.Clone()
	clone.Find("script, style, noscript").Remove()
	text := strings.TrimSpace(clone.Text())

	return len(text) < 200 && body.Find("script").Length() > 0
}
