package kindaxml

import (
	"fmt"
	"strings"
)

// AttrValue is the value of a single tag attribute. An attribute
// written without '=' is boolean-present; otherwise it carries the
// raw string value with any surrounding quotes removed.
type AttrValue struct {
	boolean bool
	str     string
}

// BoolAttr returns the boolean-present attribute value.
func BoolAttr() AttrValue {
	return AttrValue{boolean: true}
}

// StringAttr returns a string attribute value.
func StringAttr(s string) AttrValue {
	return AttrValue{str: s}
}

// IsBool reports whether the attribute was written without a value.
func (v AttrValue) IsBool() bool {
	return v.boolean
}

// Str returns the string value. It is empty for boolean attributes.
func (v AttrValue) Str() string {
	return v.str
}

// String renders the value for display: "true" for boolean-present
// attributes, the quoted string otherwise.
func (v AttrValue) String() string {
	if v.boolean {
		return "true"
	}
	return fmt.Sprintf("%q", v.str)
}

// Attr is one key/value pair of a tag's attribute list.
type Attr struct {
	Key   string
	Value AttrValue
}

// Attrs is an ordered attribute mapping. Keys keep the position of
// their first occurrence; a duplicate key replaces the earlier value
// in place.
type Attrs struct {
	items []Attr
}

// Set inserts or replaces the value for key.
func (a *Attrs) Set(key string, v AttrValue) {
	for i := range a.items {
		if a.items[i].Key == key {
			a.items[i].Value = v
			return
		}
	}
	a.items = append(a.items, Attr{Key: key, Value: v})
}

// Get returns the value for key and whether the key is present.
// A nil Attrs behaves like an empty mapping.
func (a *Attrs) Get(key string) (AttrValue, bool) {
	if a == nil {
		return AttrValue{}, false
	}
	for _, it := range a.items {
		if it.Key == key {
			return it.Value, true
		}
	}
	return AttrValue{}, false
}

// Len returns the number of attributes.
func (a *Attrs) Len() int {
	if a == nil {
		return 0
	}
	return len(a.items)
}

// Items returns the attributes in insertion order. The returned slice
// is owned by the Attrs and must not be modified.
func (a *Attrs) Items() []Attr {
	if a == nil {
		return nil
	}
	return a.items
}

// String renders the attribute list as `[k="v", flag=true, ...]`.
func (a *Attrs) String() string {
	if a.Len() == 0 {
		return "[]"
	}
	var sb strings.Builder
	sb.WriteByte('[')
	for i, it := range a.items {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(it.Key)
		sb.WriteByte('=')
		sb.WriteString(it.Value.String())
	}
	sb.WriteByte(']')
	return sb.String()
}

// lexAttributes consumes the attribute list of an open or self-closing
// tag up to and including its terminating '>' or '/>'. The cursor sits
// just past the tag name when called.
//
// Each whitespace-separated item is either `key`, `key=value`,
// `key='value'` or `key="value"`. A quoted value missing its closing
// quote is recovered by ending it at the tag's '>' instead. Stray
// characters that fit no attribute shape are skipped so that a
// malformed tag still terminates.
func (l *lexer) lexAttributes(tagStartChar int) (*Attrs, bool, tagVerdict) {
	var attrs *Attrs

	for {
		l.acceptRun(tagSpaceChars)

		switch {
		case l.eof():
			return nil, false, tagTruncated

		case l.peek() == '>':
			l.next()
			return attrs, false, tagLexed

		case l.peek() == '/':
			l.next()
			if l.peek() == '>' {
				l.next()
				return attrs, true, tagLexed
			}
			// A lone slash is noise between attributes.
			continue

		case l.accept(attrKeyStartChars):
			l.backup()
			key, value := l.lexAttrItem(tagStartChar)
			if attrs == nil {
				attrs = &Attrs{}
			}
			attrs.Set(key, value)

		default:
			// Anything else (quotes without a key, '=', '<', ...) is
			// skipped one rune at a time so the scan always advances.
			l.next()
		}
	}
}

// lexAttrItem lexes one attribute item starting at its key.
func (l *lexer) lexAttrItem(tagStartChar int) (string, AttrValue) {
	keyStart := l.pos
	l.accept(attrKeyStartChars)
	l.acceptRun(tagNameChars)
	key := l.input[keyStart:l.pos]

	l.acceptRun(tagSpaceChars)
	if l.peek() != '=' {
		// No '=': the attribute is boolean-present.
		return key, BoolAttr()
	}
	l.next() // consume '='

	if q := l.peek(); q == '\'' || q == '"' {
		return key, l.lexQuotedValue(byte(q), tagStartChar)
	}

	// Unquoted token: read until whitespace, '>' or '/'.
	valStart := l.pos
	for {
		r := l.peek()
		if r == lexEOF || r == '>' || r == '/' || strings.ContainsRune(tagSpaceChars, r) {
			break
		}
		l.next()
	}
	return key, StringAttr(l.input[valStart:l.pos])
}

// lexQuotedValue reads a quoted attribute value. The value ends at the
// matching quote, or — unclosed-quote recovery — at the tag's '>'
// (left unconsumed so the attribute loop terminates the tag), or at
// end of input.
func (l *lexer) lexQuotedValue(quote byte, tagStartChar int) AttrValue {
	l.next() // consume the opening quote
	valStart := l.pos
	for {
		r := l.peek()
		switch {
		case r == lexEOF:
			l.diag(tagStartChar, DiagUnclosedQuote)
			return StringAttr(l.input[valStart:l.pos])
		case r == rune(quote):
			val := l.input[valStart:l.pos]
			l.next()
			return StringAttr(val)
		case r == '>':
			l.diag(tagStartChar, DiagUnclosedQuote)
			return StringAttr(l.input[valStart:l.pos])
		}
		l.next()
	}
}
