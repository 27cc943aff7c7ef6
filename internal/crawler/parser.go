package crawler

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// Parser harvests outbound links from rendered HTML.
//
// We use golang.org/x/net/html rather than regex so malformed markup,
// which is common in rendered documentation pages, is handled the way a
// browser would handle it.
type Parser struct {
	// baseURL is the URL of the page being parsed, used for resolving
	// relative URLs.
	baseURL *url.URL
}

// ParseResult contains what the crawl loop needs from a page.
type ParseResult struct {
	// Title is the page title from the <title> tag.
	Title string

	// Base is the URL relative links resolve against. It is the page URL
	// unless the document declares a <base href>.
	Base string

	// Links contains href values of <a> elements in document order,
	// as written in the markup. Non-navigational schemes are dropped.
	Links []string
}

// NewParser creates a new HTML parser with the given base URL.
func NewParser(baseURL string) (*Parser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &Parser{baseURL: u}, nil
}

// Parse parses HTML content and extracts the title, base and links.
func (p *Parser) Parse(content io.Reader) (*ParseResult, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	result := &ParseResult{
		Base:  p.baseURL.String(),
		Links: make([]string, 0),
	}
	baseSeen := false

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if result.Title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					result.Title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "base":
				// Only the first <base href> counts.
				if href := getAttr(n, "href"); href != "" && !baseSeen {
					baseSeen = true
					if ref, err := url.Parse(strings.TrimSpace(href)); err == nil {
						result.Base = p.baseURL.ResolveReference(ref).String()
					}
				}
			case "a":
				if href, ok := followable(getAttr(n, "href")); ok {
					result.Links = append(result.Links, href)
				}
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return result, nil
}

// followable trims href and reports whether it can name a crawlable page.
// Script, mail, phone and inline data links are dropped, as are bare
// fragment links which always point back at the current page.
func followable(href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}

	lower := strings.ToLower(href)
	for _, scheme := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, scheme) {
			return "", false
		}
	}
	return href, true
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
