// Copyright (C) 2026 Harborline Research (dev@harborline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ir

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// skippedElements never contribute content: boilerplate chrome and
// executable payloads.
var skippedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"nav":      true,
	"footer":   true,
	"header":   true,
	"iframe":   true,
}

// pageLink is one anchor with its visible text, href resolved against
// the page URL.
type pageLink struct {
	URL  string
	Text string
}

// flattenPage renders an HTML page as markdown-ish text the LLM can
// read: headings prefixed with #, anchors as [text](url) with PDF
// links tagged, paragraphs and list items as plain lines. Repeated
// lines collapse to one.
func flattenPage(src, baseURL string) string {
	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return ""
	}
	base, _ := url.Parse(baseURL)

	var lines []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if skippedElements[n.Data] {
				return
			}
			switch n.Data {
			case "h1", "h2", "h3", "h4":
				if text := nodeText(n); text != "" {
					lines = append(lines, strings.Repeat("#", headingLevel(n.Data))+" "+text)
				}
				return
			case "a":
				if line := anchorLine(n, base); line != "" {
					lines = append(lines, line)
				}
				return
			case "p", "li", "td", "th", "dt", "dd":
				// Blocks wrapping an anchor keep the link form.
				if !containsAnchor(n) {
					if text := nodeText(n); text != "" {
						lines = append(lines, text)
					}
					return
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(root)

	seen := make(map[string]bool, len(lines))
	var out []string
	for _, line := range lines {
		if seen[line] {
			continue
		}
		seen[line] = true
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// pageLinks collects every anchor on the page with non-empty text,
// hrefs resolved to absolute URLs.
func pageLinks(src, baseURL string) []pageLink {
	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil
	}
	base, _ := url.Parse(baseURL)

	var links []pageLink
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			href := attrValue(n, "href")
			text := nodeText(n)
			if resolved := resolveURL(base, href); resolved != "" && text != "" {
				links = append(links, pageLink{URL: resolved, Text: text})
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(root)
	return links
}

// irLinkKeywords mark anchors that likely lead to the IR section of a
// corporate site.
var irLinkKeywords = []string{"ir", "investor", "投資家", "株主", "irライブラリ"}

// findIRLink scans a homepage for its IR section. Path segments beat
// link text because corporate navigation labels vary wildly.
func findIRLink(src, baseURL string) string {
	base, _ := url.Parse(baseURL)
	for _, link := range pageLinks(src, baseURL) {
		parsed, err := url.Parse(link.URL)
		if err != nil || (base != nil && parsed.Host != base.Host) {
			continue
		}
		path := strings.ToLower(parsed.Path)
		if strings.HasSuffix(path, ".pdf") {
			continue
		}
		if strings.Contains(path, "/ir") || strings.Contains(path, "/investor") {
			return link.URL
		}
	}
	for _, link := range pageLinks(src, baseURL) {
		text := strings.ToLower(link.Text)
		for _, kw := range irLinkKeywords {
			if strings.Contains(text, kw) {
				return link.URL
			}
		}
	}
	return ""
}

func headingLevel(tag string) int {
	switch tag {
	case "h1":
		return 1
	case "h2":
		return 2
	case "h3":
		return 3
	}
	return 4
}

func anchorLine(n *html.Node, base *url.URL) string {
	href := attrValue(n, "href")
	text := nodeText(n)
	resolved := resolveURL(base, href)
	if resolved == "" || text == "" {
		return ""
	}
	line := "[" + text + "](" + resolved + ")"
	if strings.HasSuffix(strings.ToLower(resolved), ".pdf") {
		line = "[PDF] " + line
	}
	return line
}

func containsAnchor(n *html.Node) bool {
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.ElementNode && child.Data == "a" {
			return true
		}
		if containsAnchor(child) {
			return true
		}
	}
	return false
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(node *html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}
		if node.Type == html.ElementNode && skippedElements[node.Data] {
			return
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

func attrValue(n *html.Node, name string) string {
	for _, attr := range n.Attr {
		if attr.Key == name {
			return attr.Val
		}
	}
	return ""
}

func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") ||
		strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
		return ""
	}
	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base != nil {
		parsed = base.ResolveReference(parsed)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ""
	}
	return parsed.String()
}
