package kindaxml

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// lexEOF represents the end-of-input marker used by the lexer to
	// signal that all input has been consumed. The value -1 is chosen
	// because it's an invalid rune value that cannot appear in valid
	// UTF-8 input.
	lexEOF rune = -1
)

// TokenType represents the classification of a lexer token.
type TokenType int

const (
	// TokenText represents literal text between tags. Its Val field
	// holds the raw input slice.
	TokenText TokenType = iota

	// TokenOpen represents an open tag: <name attrs?>.
	TokenOpen

	// TokenClose represents a close tag: </name>.
	TokenClose

	// TokenSelfClose represents a self-closing tag: <name attrs? />.
	TokenSelfClose
)

var (
	// tagSpaceChars defines whitespace characters that separate
	// attribute items inside a tag's angle brackets.
	tagSpaceChars = " \n\r\t"

	// tagNameStartChars defines valid starting characters for tag
	// names. Names must begin with a letter or underscore.
	tagNameStartChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ_"

	// tagNameChars defines valid continuation characters for tag
	// names. After the first character, digits and dashes are also
	// allowed.
	tagNameChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ_0123456789-"

	// attrKeyStartChars defines valid starting characters for
	// attribute keys. Unlike tag names, keys may start with a digit
	// so that inputs like `<tag 59=42 9000>` are tolerated.
	attrKeyStartChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ_0123456789"
)

// Token represents a single lexical element produced by the lexer:
// either a run of literal text or one structured tag.
type Token struct {
	// Typ indicates what kind of token this is.
	Typ TokenType

	// Val contains the literal text content for TokenText tokens.
	Val string

	// Name is the tag name for tag tokens.
	Name string

	// Attrs holds the parsed attribute list for TokenOpen and
	// TokenSelfClose tokens. May be nil when the tag has none.
	Attrs *Attrs

	// Raw is the original source slice of a tag token, angle brackets
	// included. It is what passthrough mode re-emits, so unknown tags
	// round-trip byte for byte.
	Raw string

	// Pos is the character (rune) position in the input where the
	// token starts. Used for diagnostics.
	Pos int
}

// String returns a human-readable representation of the token for
// debugging.
func (t *Token) String() string {
	switch t.Typ {
	case TokenText:
		return fmt.Sprintf("<Token Text %q Pos=%d>", t.Val, t.Pos)
	case TokenOpen:
		return fmt.Sprintf("<Token Open '%s' %s Pos=%d>", t.Name, t.Attrs, t.Pos)
	case TokenClose:
		return fmt.Sprintf("<Token Close '%s' Pos=%d>", t.Name, t.Pos)
	case TokenSelfClose:
		return fmt.Sprintf("<Token SelfClose '%s' %s Pos=%d>", t.Name, t.Attrs, t.Pos)
	}
	return fmt.Sprintf("<Token Unknown (%d)>", t.Typ)
}

// tagVerdict is the outcome of an attempt to lex one tag at a '<'.
type tagVerdict int

const (
	// tagLexed means a complete tag token was produced.
	tagLexed tagVerdict = iota

	// tagNotATag means the '<' cannot begin a tag and is literal text.
	tagNotATag

	// tagTruncated means a tag began validly but input ended before
	// its closing '>'. The partial tag is discarded from the input
	// and nothing is emitted for it.
	tagTruncated
)

// lexer scans the input string character by character, splitting it
// into literal text runs and structured tag tokens. It never fails:
// anything that does not lex as a tag stays literal text.
type lexer struct {
	// input is the complete source being lexed.
	input string

	// start is the byte position where the current text run begins.
	start int

	// pos is the current byte position in the input (cursor).
	pos int

	// width is the byte width of the last rune read by next().
	// Used by backup() to step back one rune.
	width int

	// charPos is the rune-oriented mirror of pos. Tag tokens record
	// it so diagnostics can report character positions.
	charPos int

	// tokens accumulates all tokens produced during lexing.
	tokens []*Token

	// diags accumulates input anomalies absorbed while lexing.
	diags []Diagnostic
}

// lexerMark is a saved cursor state, used to rewind after a failed
// tag attempt.
type lexerMark struct {
	pos, width, charPos int
}

// lex tokenizes the given input and returns the token stream together
// with any diagnostics recorded along the way.
func lex(input string) ([]*Token, []Diagnostic) {
	l := &lexer{
		input:  input,
		tokens: make([]*Token, 0, 16),
	}
	l.run()
	return l.tokens, l.diags
}

// next advances the lexer by one rune and returns it.
// Returns lexEOF if the end of input has been reached.
func (l *lexer) next() rune {
	if l.pos >= len(l.input) {
		l.width = 0
		return lexEOF
	}
	r, w := utf8.DecodeRuneInString(l.input[l.pos:])
	l.width = w
	l.pos += l.width
	l.charPos++
	return r
}

// backup steps back one rune in the input.
// Can only be called once per call to next().
func (l *lexer) backup() {
	if l.width > 0 {
		l.pos -= l.width
		l.charPos--
		l.width = 0
	}
}

// peek returns the next rune without consuming it.
func (l *lexer) peek() rune {
	if l.pos >= len(l.input) {
		return lexEOF
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.pos:])
	return r
}

// eof reports whether the cursor has consumed all input.
func (l *lexer) eof() bool {
	return l.pos >= len(l.input)
}

// mark captures the cursor state so a speculative tag attempt can be
// rolled back with rewind.
func (l *lexer) mark() lexerMark {
	return lexerMark{pos: l.pos, width: l.width, charPos: l.charPos}
}

// rewind restores a previously captured cursor state.
func (l *lexer) rewind(m lexerMark) {
	l.pos = m.pos
	l.width = m.width
	l.charPos = m.charPos
}

// accept consumes the next rune if it's contained in the valid string.
// Returns true if a rune was consumed, false otherwise.
func (l *lexer) accept(what string) bool {
	r := l.next()
	if r != lexEOF && strings.ContainsRune(what, r) {
		return true
	}
	l.backup()
	return false
}

// acceptRun consumes a run of runes from the valid set.
// Stops (and backs up) when a non-matching rune or EOF is encountered.
func (l *lexer) acceptRun(what string) {
	for l.accept(what) {
	}
}

// diag records an input anomaly at the given input character position.
func (l *lexer) diag(pos int, kind DiagnosticKind) {
	l.diags = append(l.diags, Diagnostic{Pos: pos, Kind: kind})
}

// emitText emits the pending literal text run ending at the given
// byte position, if non-empty.
func (l *lexer) emitText(end, endChar int) {
	if end > l.start {
		val := l.input[l.start:end]
		l.tokens = append(l.tokens, &Token{
			Typ: TokenText,
			Val: val,
			Pos: endChar - utf8.RuneCountInString(val),
		})
	}
	l.start = end
}

// run is the main lexer loop. It scans for '<', attempts to lex one
// tag there, and otherwise accumulates literal text. A '<' that
// cannot begin a tag stays in the text run.
func (l *lexer) run() {
	for !l.eof() {
		if l.peek() != '<' {
			l.next()
			continue
		}

		textEnd, textEndChar := l.pos, l.charPos
		saved := l.mark()

		tok, verdict := l.lexTag()
		switch verdict {
		case tagLexed:
			l.emitText(textEnd, textEndChar)
			l.tokens = append(l.tokens, tok)
			l.start = l.pos
			logger.Tracef("kindaxml: lexed %s", tok)
		case tagTruncated:
			// The tag began validly but the input ended before '>'.
			// The partial tag is dropped from the output entirely.
			l.emitText(textEnd, textEndChar)
			l.start = l.pos
			l.diag(textEndChar, DiagTruncatedTag)
			logger.Tracef("kindaxml: discarded truncated tag at char %d", textEndChar)
		case tagNotATag:
			// Literal '<': keep it in the current text run.
			l.rewind(saved)
			l.next()
		}
	}
	l.emitText(l.pos, l.charPos)
}

// lexTag attempts to lex one tag with the cursor sitting on '<'.
// It handles the three tag shapes:
//
//	<name attrs?>    open tag
//	</name>          close tag
//	<name attrs? />  self-closing tag
//
// On tagNotATag the caller is responsible for rewinding the cursor.
func (l *lexer) lexTag() (*Token, tagVerdict) {
	tagStart, tagStartChar := l.pos, l.charPos
	l.next() // consume '<'

	if l.peek() == '/' {
		l.next()
		return l.lexCloseTag(tagStart, tagStartChar)
	}

	if !l.accept(tagNameStartChars) {
		return nil, tagNotATag
	}
	l.acceptRun(tagNameChars)
	name := l.input[tagStart+1 : l.pos]

	attrs, selfClose, verdict := l.lexAttributes(tagStartChar)
	if verdict != tagLexed {
		return nil, verdict
	}

	typ := TokenOpen
	if selfClose {
		typ = TokenSelfClose
	}
	return &Token{
		Typ:   typ,
		Name:  name,
		Attrs: attrs,
		Raw:   l.input[tagStart:l.pos],
		Pos:   tagStartChar,
	}, tagLexed
}

// lexCloseTag lexes the remainder of a close tag after '</' has been
// consumed. Anything between the name and the closing '>' is
// tolerated and discarded.
func (l *lexer) lexCloseTag(tagStart, tagStartChar int) (*Token, tagVerdict) {
	if !l.accept(tagNameStartChars) {
		return nil, tagNotATag
	}
	nameStart := l.pos - l.width
	l.acceptRun(tagNameChars)
	name := l.input[nameStart:l.pos]

	for {
		switch l.next() {
		case lexEOF:
			return nil, tagTruncated
		case '>':
			return &Token{
				Typ:  TokenClose,
				Name: name,
				Raw:  l.input[tagStart:l.pos],
				Pos:  tagStartChar,
			}, tagLexed
		}
	}
}
