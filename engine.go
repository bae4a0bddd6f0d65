package kindaxml

import (
	"unicode"
)

// forward_next_token tracking states for a pending open.
type fwdState int

const (
	fwdIdle fwdState = iota
	fwdAwaiting
	fwdConsuming
	fwdDone
)

// pendingOpen is an open tag still waiting for its close or for a
// recovery trigger.
type pendingOpen struct {
	name     string
	attrs    *Attrs
	strategy RecoveryStrategy

	// start is the output position where the tag was opened.
	start int

	// lineStart is the output position where the line containing the
	// open began.
	lineStart int

	// forward_next_token state: the token being tracked, if any.
	fwd      fwdState
	tokStart int
	tokEnd   int
}

// engine is the annotation state machine. It consumes the token
// stream, grows the output text, keeps the stack of pending opens and
// applies recovery strategies at close, auto-close and flush points.
//
// All state is per-call; concurrent Parse invocations never share an
// engine.
type engine struct {
	cfg *ParserConfig

	out       []rune
	lineStart int

	stack   []*pendingOpen
	spans   []span
	markers []Marker
	diags   []Diagnostic
}

func newEngine(cfg *ParserConfig) *engine {
	return &engine{cfg: cfg}
}

// run feeds the whole token stream through the state machine and
// flushes the remaining pending opens at end of input.
func (e *engine) run(tokens []*Token) {
	for _, tok := range tokens {
		switch tok.Typ {
		case TokenText:
			e.writeText(tok.Val)
		case TokenOpen:
			e.handleOpen(tok)
		case TokenClose:
			e.handleClose(tok)
		case TokenSelfClose:
			e.handleSelfClose(tok)
		}
	}

	// End of input: recover what is still pending, innermost first.
	for i := len(e.stack) - 1; i >= 0; i-- {
		e.recover(e.stack[i])
	}
	e.stack = e.stack[:0]
}

// writeText appends literal text to the output one rune at a time,
// keeping line tracking and forward_next_token tracking in step.
func (e *engine) writeText(s string) {
	for _, r := range s {
		ws := unicode.IsSpace(r)
		for _, p := range e.stack {
			switch p.fwd {
			case fwdAwaiting:
				if !ws {
					p.fwd = fwdConsuming
					p.tokStart = len(e.out)
				}
			case fwdConsuming:
				if ws {
					p.fwd = fwdDone
					p.tokEnd = len(e.out)
				}
			}
		}

		e.out = append(e.out, r)

		if r == '\n' {
			e.lineStart = len(e.out)
			e.endOfLine()
		}
	}
}

// endOfLine recovers every pending retro_line open: its line is over,
// so there is nothing left for it to wait for. A close tag on a later
// line no longer matches it.
func (e *engine) endOfLine() {
	for i := len(e.stack) - 1; i >= 0; i-- {
		if e.stack[i].strategy == RetroLine {
			p := e.stack[i]
			e.stack = append(e.stack[:i], e.stack[i+1:]...)
			e.recover(p)
			logger.Tracef("kindaxml: auto-closed <%s> at end of line", p.name)
		}
	}
}

// tagEvent runs once for every tag token, before the token itself is
// handled. Any pending forward_until_tag open ends here: its span
// runs up to the position of this tag, whatever kind it is.
func (e *engine) tagEvent() {
	for i := len(e.stack) - 1; i >= 0; i-- {
		if e.stack[i].strategy == ForwardUntilTag {
			p := e.stack[i]
			e.stack = append(e.stack[:i], e.stack[i+1:]...)
			e.recover(p)
		}
	}
}

// handleOpen processes an open tag token.
func (e *engine) handleOpen(tok *Token) {
	e.tagEvent()

	if !e.cfg.Recognized(tok.Name) {
		e.handleUnknown(tok)
		return
	}

	// Tags configured as self-closing emit a marker even when written
	// as a plain open tag.
	if e.cfg.selfClosable(tok.Name) {
		e.emitMarker(len(e.out), Annotation{Tag: tok.Name, Attrs: tok.Attrs})
		return
	}

	// A new open tag on the same line auto-closes a topmost pending
	// retro_line open.
	for len(e.stack) > 0 {
		top := e.stack[len(e.stack)-1]
		if top.strategy != RetroLine || top.lineStart != e.lineStart {
			break
		}
		e.stack = e.stack[:len(e.stack)-1]
		e.recover(top)
		logger.Tracef("kindaxml: auto-closed <%s> on new tag <%s>", top.name, tok.Name)
	}

	p := &pendingOpen{
		name:      tok.Name,
		attrs:     tok.Attrs,
		strategy:  e.cfg.strategyFor(tok.Name),
		start:     len(e.out),
		lineStart: e.lineStart,
	}
	if p.strategy == ForwardNextToken {
		p.fwd = fwdAwaiting
	}
	e.stack = append(e.stack, p)
}

// handleClose processes a close tag token. The nearest pending open
// with a matching name is closed as an explicit span; entries stacked
// above it are recovered by their own strategies first. The match
// scan runs before the generic tag-event recovery so that an explicit
// close of a forward_until_tag tag counts as a real close rather than
// a recovery. A recognized close with no match is dropped silently
// (passthrough does not apply to it); an unrecognized close follows
// the unknown-tag mode.
func (e *engine) handleClose(tok *Token) {
	if !e.cfg.Recognized(tok.Name) {
		e.tagEvent()
		e.handleUnknown(tok)
		return
	}

	for i := len(e.stack) - 1; i >= 0; i-- {
		if e.stack[i].name != tok.Name {
			continue
		}
		matched := e.stack[i]
		for j := len(e.stack) - 1; j > i; j-- {
			e.recover(e.stack[j])
		}
		e.stack = e.stack[:i]
		e.emitSpan(matched.start, len(e.out), Annotation{Tag: matched.name, Attrs: matched.attrs})
		return
	}

	e.tagEvent()
	e.diags = append(e.diags, Diagnostic{Pos: tok.Pos, Kind: DiagStrayClose})
	logger.Tracef("kindaxml: dropped stray </%s> at char %d", tok.Name, tok.Pos)
}

// handleSelfClose processes a self-closing tag token.
func (e *engine) handleSelfClose(tok *Token) {
	e.tagEvent()

	if !e.cfg.Recognized(tok.Name) {
		e.handleUnknown(tok)
		return
	}
	e.emitMarker(len(e.out), Annotation{Tag: tok.Name, Attrs: tok.Attrs})
}

// handleUnknown applies the unknown-tag mode to an unrecognized tag
// token: strip discards it, passthrough re-emits its literal source.
func (e *engine) handleUnknown(tok *Token) {
	if e.cfg.unknownMode == UnknownPassthrough {
		e.writeText(tok.Raw)
	}
}

// recover materializes the span of a pending open that never saw its
// explicit close, according to its strategy. The entry must already
// be off the stack.
func (e *engine) recover(p *pendingOpen) {
	ann := Annotation{Tag: p.name, Attrs: p.attrs}
	switch p.strategy {
	case RetroLine:
		e.emitSpan(p.lineStart, p.start, ann)
	case ForwardNextToken:
		switch p.fwd {
		case fwdDone:
			e.emitSpan(p.tokStart, p.tokEnd, ann)
		case fwdConsuming:
			e.emitSpan(p.tokStart, len(e.out), ann)
		default:
			// No token ever arrived: empty at the open position.
			e.emitSpan(p.start, p.start, ann)
		}
	case ForwardUntilTag:
		e.emitSpan(p.start, len(e.out), ann)
	case ClosedSpan, DropTag:
		// ClosedSpan is reachable only via an explicit close; an
		// unclosed one is discarded, same as DropTag.
	}
}

// emitSpan records a span over [start, end). A zero-length span
// degenerates to a marker at its position.
func (e *engine) emitSpan(start, end int, ann Annotation) {
	if start == end {
		e.emitMarker(start, ann)
		return
	}
	e.spans = append(e.spans, span{start: start, end: end, ann: ann})
}

func (e *engine) emitMarker(pos int, ann Annotation) {
	e.markers = append(e.markers, Marker{Pos: pos, Annotation: ann})
}
