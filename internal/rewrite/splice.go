package rewrite

import (
	"strings"

	"golang.org/x/net/html"
)

// voidTags never carry a closing tag, so their outer markup is the open
// tag alone.
var voidTags = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"source": true, "track": true, "wbr": true,
}

// SpliceByID locates the element carrying the given id attribute and
// replaces its entire outer markup (open tag through matching close tag)
// with replacement. Nesting of same-named tags is tracked with a depth
// counter so an iframe inside a div inside the target div does not
// truncate the splice. Returns ok=false when no element has the id or
// its close tag is missing.
func SpliceByID(doc, id, replacement string) (string, bool) {
	z := html.NewTokenizer(strings.NewReader(doc))
	offset := 0

	for {
		tt := z.Next()
		raw := z.Raw()
		if tt == html.ErrorToken {
			return doc, false
		}
		start := offset
		offset += len(raw)

		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		name, tagID := tagNameAndID(z)
		if tagID != id {
			continue
		}
		if tt == html.SelfClosingTagToken || voidTags[name] {
			return doc[:start] + replacement + doc[offset:], true
		}
		end, ok := scanToClose(z, name, &offset)
		if !ok {
			return doc, false
		}
		return doc[:start] + replacement + doc[end:], true
	}
}

// scanToClose advances the tokenizer past the matching close tag of an
// already-consumed open tag, returning the byte offset just after it.
func scanToClose(z *html.Tokenizer, name string, offset *int) (int, bool) {
	depth := 1
	for {
		tt := z.Next()
		raw := z.Raw()
		if tt == html.ErrorToken {
			return 0, false
		}
		*offset += len(raw)

		switch tt {
		case html.StartTagToken:
			if n, _ := tagNameAndID(z); n == name && !voidTags[name] {
				depth++
			}
		case html.EndTagToken:
			if n, _ := tagNameAndID(z); n == name {
				depth--
				if depth == 0 {
					return *offset, true
				}
			}
		}
	}
}

// tagNameAndID reads the current token's tag name and id attribute. Must
// be called at most once per token since attribute iteration consumes
// the tokenizer's internal cursor.
func tagNameAndID(z *html.Tokenizer) (string, string) {
	nameBytes, hasAttr := z.TagName()
	name := string(nameBytes)
	id := ""
	for hasAttr {
		var key, val []byte
		key, val, hasAttr = z.TagAttr()
		if string(key) == "id" {
			id = string(val)
		}
	}
	return name, id
}
