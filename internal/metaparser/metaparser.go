// Package metaparser extracts title/description/image from a submitted
// page's <head>, built on golang.org/x/net/html's streaming tokenizer
// with a bounded read.
package metaparser

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

// MaxBufferSize bounds how much of the document is scanned before giving
// up; more than enough for any sane <head>.
const MaxBufferSize = 1 << 20

// Meta is the page metadata the URL submission guard persists.
type Meta struct {
	Title       string
	Description string
	Image       string
}

// Parse scans r for <title> and the description/og:image <meta> tags,
// stopping at MaxBufferSize bytes or at the end of <head>.
func Parse(r io.Reader) (Meta, error) {
	limited := io.LimitReader(r, MaxBufferSize)
	z := html.NewTokenizer(limited)

	var m Meta
	inHead := false
	inTitle := false

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return m, err
			}
			return m, nil
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			tag := string(name)
			switch tag {
			case "head":
				inHead = true
			case "title":
				inTitle = tag == "title" && tt == html.StartTagToken
			case "body":
				return m, nil
			case "meta":
				if hasAttr {
					applyMetaTag(z, &m)
				}
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if tag == "head" {
				return m, nil
			}
			if tag == "title" {
				inTitle = false
			}
		case html.TextToken:
			if inHead && inTitle && m.Title == "" {
				m.Title = strings.TrimSpace(string(z.Text()))
			}
		}
	}
}

func applyMetaTag(z *html.Tokenizer, m *Meta) {
	var name, property, content string
	for {
		key, val, more := z.TagAttr()
		switch string(key) {
		case "name":
			name = string(val)
		case "property":
			property = string(val)
		case "content":
			content = string(val)
		}
		if !more {
			break
		}
	}
	switch {
	case name == "description" && m.Description == "":
		m.Description = content
	case (property == "og:description") && m.Description == "":
		m.Description = content
	case property == "og:image" && m.Image == "":
		m.Image = content
	case name == "og:image" && m.Image == "":
		m.Image = content
	}
}
