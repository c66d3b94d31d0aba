// Package extract pulls job listings out of listing-page HTML.
package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/jobwatch/internal/crawler"
	"github.com/JakeFAU/jobwatch/internal/listing"
)

// Selectors used on the job board's listing pages.
const (
	ContainerSelector = "div.box-job-info"
	TitleSelector     = "h2.article__title"
	CategorySelector  = "span.article__category"
	LocationSelector  = "span.article__info"
	LinkSelector      = "a.article__link"
)

// Extractor implements crawler.Extractor with goquery.
type Extractor struct {
	origin string
}

// New returns an Extractor that resolves relative links against origin
// (for example "https://www.iamexpat.nl").
func New(origin string) *Extractor {
	return &Extractor{origin: strings.TrimRight(origin, "/")}
}

// Extract parses body and returns one listing per container. Each field is
// looked up independently; a missing element only blanks that field. An
// anchor with an empty href counts as a missing link.
func (e *Extractor) Extract(body []byte) (crawler.Extraction, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return crawler.Extraction{}, fmt.Errorf("parse html: %w", err)
	}

	containers := doc.Find(ContainerSelector)
	out := crawler.Extraction{
		Listings:   make([]listing.Listing, 0, containers.Length()),
		Containers: containers.Length(),
	}
	containers.Each(func(_ int, box *goquery.Selection) {
		l := listing.Listing{
			Title:    textOf(box, TitleSelector),
			Category: textOf(box, CategorySelector),
			Location: textOf(box, LocationSelector),
			Link:     e.linkOf(box),
		}
		if l.Degraded() {
			out.Degraded++
		}
		out.Listings = append(out.Listings, l)
	})
	return out, nil
}

func textOf(box *goquery.Selection, selector string) listing.Field {
	sel := box.Find(selector).First()
	if sel.Length() == 0 {
		return listing.Missing()
	}
	return listing.Text(strings.TrimSpace(sel.Text()))
}

func (e *Extractor) linkOf(box *goquery.Selection) listing.Field {
	href, ok := box.Find(LinkSelector).First().Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" {
		return listing.Missing()
	}
	return listing.Text(ResolveLink(e.origin, href))
}

// ResolveLink makes href absolute by prefixing origin unless it already
// starts with an http or https scheme.
func ResolveLink(origin, href string) string {
	lower := strings.ToLower(href)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return href
	}
	return origin + href
}
