package fetcher

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document is the reduced form of an HTML page.
type Document struct {
	// Title is the text of the <title> element.
	Title string

	// Text is the visible text in document order, words separated by
	// single spaces.
	Text string

	// Hrefs are resolved absolute link targets from <a> and <area> elements.
	Hrefs []string

	// Lang is the <html lang> attribute.
	Lang string
}

// hiddenElements hold no text a reader would see.
var hiddenElements = map[atom.Atom]bool{
	atom.Head:     true,
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
	atom.Svg:      true,
	atom.Iframe:   true,
	atom.Object:   true,
}

// skippedSchemes are href schemes that never lead to a page.
var skippedSchemes = []string{"javascript:", "mailto:", "tel:", "data:"}

// Parser reduces HTML documents. Relative links are resolved against the
// base URL, or against a <base href> when the document declares one.
type Parser struct {
	baseURL *url.URL
}

// NewParser creates a parser for a document served from baseURL.
func NewParser(baseURL string) (*Parser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &Parser{baseURL: u}, nil
}

// Parse walks the DOM once and collects text, links and metadata.
func (p *Parser) Parse(content io.Reader) (*Document, error) {
	root, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	doc := &Document{Hrefs: make([]string, 0)}
	var text strings.Builder

	var walk func(n *html.Node, hidden bool)
	walk = func(n *html.Node, hidden bool) {
		switch n.Type {
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Html:
				doc.Lang = strings.TrimSpace(getAttr(n, "lang"))
			case atom.Title:
				if doc.Title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					doc.Title = strings.TrimSpace(n.FirstChild.Data)
				}
			case atom.Base:
				if href := getAttr(n, "href"); href != "" {
					if u, err := p.baseURL.Parse(strings.TrimSpace(href)); err == nil {
						p.baseURL = u
					}
				}
			case atom.A, atom.Area:
				if resolved := p.resolveURL(getAttr(n, "href")); resolved != "" {
					doc.Hrefs = append(doc.Hrefs, resolved)
				}
			}
			hidden = hidden || hiddenElements[n.DataAtom]
		case html.TextNode:
			if s := strings.TrimSpace(n.Data); s != "" && !hidden {
				text.WriteString(s)
				text.WriteByte(' ')
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, hidden)
		}
	}
	walk(root, false)

	doc.Text = strings.Join(strings.Fields(text.String()), " ")
	return doc, nil
}

// resolveURL turns an href into an absolute URL, or "" when it cannot lead
// to a page.
func (p *Parser) resolveURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}

	lower := strings.ToLower(href)
	for _, scheme := range skippedSchemes {
		if strings.HasPrefix(lower, scheme) {
			return ""
		}
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return p.baseURL.ResolveReference(u).String()
}

// getAttr returns the value of the named attribute.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
