package kindaxml

import (
	"fmt"
	"sort"
	"strings"

	"github.com/juju/errors"
)

// RecoveryStrategy is the policy used to materialize a span for a
// recognized open tag that lacks an explicit matching close. The set
// is closed; the engine dispatches on it at recovery points.
type RecoveryStrategy int

const (
	// ClosedSpan annotates only an explicitly closed range. An open
	// tag that never sees its matching close yields no span.
	ClosedSpan RecoveryStrategy = iota

	// RetroLine attaches backward: the span runs from the beginning
	// of the line containing the open tag to the tag's position.
	RetroLine

	// ForwardNextToken covers the next whitespace-separated token
	// after the tag.
	ForwardNextToken

	// ForwardUntilTag extends forward until another tag is
	// encountered or input ends.
	ForwardUntilTag

	// DropTag discards the pending open; no span is emitted.
	DropTag
)

// recoveryStrategyNames maps the API-boundary identifiers onto the
// strategy values.
var recoveryStrategyNames = map[string]RecoveryStrategy{
	"closed_span":        ClosedSpan,
	"retro_line":         RetroLine,
	"forward_next_token": ForwardNextToken,
	"forward_until_tag":  ForwardUntilTag,
	"drop":               DropTag,
}

// String returns the strategy's API identifier.
func (s RecoveryStrategy) String() string {
	switch s {
	case ClosedSpan:
		return "closed_span"
	case RetroLine:
		return "retro_line"
	case ForwardNextToken:
		return "forward_next_token"
	case ForwardUntilTag:
		return "forward_until_tag"
	case DropTag:
		return "drop"
	}
	return fmt.Sprintf("RecoveryStrategy(%d)", int(s))
}

// ParseRecoveryStrategy resolves an API identifier to its strategy.
func ParseRecoveryStrategy(name string) (RecoveryStrategy, error) {
	s, ok := recoveryStrategyNames[name]
	if !ok {
		return 0, errors.Annotatef(ErrInvalidStrategy, "%q", name)
	}
	return s, nil
}

// UnknownMode selects what happens to tags whose name is not in the
// recognized set.
type UnknownMode int

const (
	// UnknownStrip drops unknown tags from the output entirely.
	UnknownStrip UnknownMode = iota

	// UnknownPassthrough emits the literal angle-bracketed source of
	// unknown tags into the output text.
	UnknownPassthrough
)

// String returns the mode's API identifier.
func (m UnknownMode) String() string {
	switch m {
	case UnknownStrip:
		return "strip"
	case UnknownPassthrough:
		return "passthrough"
	}
	return fmt.Sprintf("UnknownMode(%d)", int(m))
}

// ParseUnknownMode resolves an API identifier to its mode.
func ParseUnknownMode(name string) (UnknownMode, error) {
	switch name {
	case "strip":
		return UnknownStrip, nil
	case "passthrough":
		return UnknownPassthrough, nil
	}
	return 0, errors.Annotatef(ErrInvalidUnknownMode, "%q", name)
}

// ParserConfig is the tag-recognition and recovery policy consulted by
// the annotation engine. The zero value is not usable; construct one
// with NewParserConfig or DefaultCiteConfig.
//
// The engine treats a ParserConfig as read-only: one config may back
// any number of concurrent Parse calls, but mutating it while a Parse
// is using it is undefined.
//
// All Set* mutators validate their string identifiers and return an
// error for unknown ones. The With* builders are their chainable
// counterparts; like Must-style helpers they panic on an invalid
// identifier, which keeps construction one expression:
//
//	cfg := kindaxml.NewParserConfig().
//	    WithRecoveryStrategy("mytag", "retro_line").
//	    WithRecoveryStrategy("risk", "forward_next_token")
type ParserConfig struct {
	recognized      map[string]struct{}
	defaultRecovery RecoveryStrategy
	perTag          map[string]RecoveryStrategy
	unknownMode     UnknownMode
	selfClosing     map[string]struct{}
}

// NewParserConfig returns a config with an empty recognized-tag set,
// forward_until_tag as the default recovery strategy, and unknown
// tags stripped.
func NewParserConfig() *ParserConfig {
	return &ParserConfig{
		recognized:      map[string]struct{}{},
		defaultRecovery: ForwardUntilTag,
		perTag:          map[string]RecoveryStrategy{},
		unknownMode:     UnknownStrip,
		selfClosing:     map[string]struct{}{},
	}
}

// DefaultCiteConfig returns the preset used when Parse is called
// without a config: recognized tags {cite, note, risk, todo},
// forward_until_tag by default, cite attaching backward over its line
// and todo acting self-closing even when written as an open tag.
func DefaultCiteConfig() *ParserConfig {
	c := NewParserConfig()
	c.SetRecognizedTags([]string{"cite", "note", "risk", "todo"})
	c.perTag["cite"] = RetroLine
	c.selfClosing["todo"] = struct{}{}
	return c
}

// SetRecognizedTags replaces the recognized-tag set.
func (c *ParserConfig) SetRecognizedTags(tags []string) {
	c.recognized = make(map[string]struct{}, len(tags))
	for _, t := range tags {
		c.recognized[t] = struct{}{}
	}
}

// WithRecognizedTags replaces the recognized-tag set and returns the
// config for chaining.
func (c *ParserConfig) WithRecognizedTags(tags ...string) *ParserConfig {
	c.SetRecognizedTags(tags)
	return c
}

// SetRecoveryStrategy sets the recovery strategy for one tag and adds
// the tag to the recognized set. The strategy is one of "closed_span",
// "retro_line", "forward_next_token", "forward_until_tag", "drop".
func (c *ParserConfig) SetRecoveryStrategy(tag, strategy string) error {
	s, err := ParseRecoveryStrategy(strategy)
	if err != nil {
		return errors.Trace(err)
	}
	c.perTag[tag] = s
	c.recognized[tag] = struct{}{}
	return nil
}

// WithRecoveryStrategy is the chainable form of SetRecoveryStrategy.
// It panics on an invalid strategy identifier.
func (c *ParserConfig) WithRecoveryStrategy(tag, strategy string) *ParserConfig {
	if err := c.SetRecoveryStrategy(tag, strategy); err != nil {
		panic(err)
	}
	return c
}

// SetDefaultRecovery sets the strategy used for recognized tags that
// have no per-tag override.
func (c *ParserConfig) SetDefaultRecovery(strategy string) error {
	s, err := ParseRecoveryStrategy(strategy)
	if err != nil {
		return errors.Trace(err)
	}
	c.defaultRecovery = s
	return nil
}

// WithDefaultRecovery is the chainable form of SetDefaultRecovery.
// It panics on an invalid strategy identifier.
func (c *ParserConfig) WithDefaultRecovery(strategy string) *ParserConfig {
	if err := c.SetDefaultRecovery(strategy); err != nil {
		panic(err)
	}
	return c
}

// SetUnknownMode sets the unknown-tag mode: "strip" or "passthrough".
func (c *ParserConfig) SetUnknownMode(mode string) error {
	m, err := ParseUnknownMode(mode)
	if err != nil {
		return errors.Trace(err)
	}
	c.unknownMode = m
	return nil
}

// WithUnknownMode is the chainable form of SetUnknownMode.
// It panics on an invalid mode identifier.
func (c *ParserConfig) WithUnknownMode(mode string) *ParserConfig {
	if err := c.SetUnknownMode(mode); err != nil {
		panic(err)
	}
	return c
}

// SetSelfClosingTag marks a tag as self-closing even when written as
// a plain open tag, and adds it to the recognized set. An occurrence
// of <tag ...> then emits a zero-width marker exactly like
// <tag ... />.
func (c *ParserConfig) SetSelfClosingTag(tag string) {
	c.selfClosing[tag] = struct{}{}
	c.recognized[tag] = struct{}{}
}

// WithSelfClosingTag is the chainable form of SetSelfClosingTag.
func (c *ParserConfig) WithSelfClosingTag(tag string) *ParserConfig {
	c.SetSelfClosingTag(tag)
	return c
}

// Recognized reports whether the tag name produces annotations.
func (c *ParserConfig) Recognized(tag string) bool {
	_, ok := c.recognized[tag]
	return ok
}

// strategyFor returns the recovery strategy in effect for a tag.
func (c *ParserConfig) strategyFor(tag string) RecoveryStrategy {
	if s, ok := c.perTag[tag]; ok {
		return s
	}
	return c.defaultRecovery
}

// selfClosable reports whether an open tag of this name should be
// treated as self-closing.
func (c *ParserConfig) selfClosable(tag string) bool {
	_, ok := c.selfClosing[tag]
	return ok
}

// String renders the config for display, with tag sets sorted so the
// output is deterministic.
func (c *ParserConfig) String() string {
	var sb strings.Builder
	sb.WriteString("ParserConfig(recognized=[")
	sb.WriteString(strings.Join(sortedKeys(c.recognized), " "))
	sb.WriteString("], default=")
	sb.WriteString(c.defaultRecovery.String())
	for _, tag := range sortedStrategyKeys(c.perTag) {
		fmt.Fprintf(&sb, ", %s=%s", tag, c.perTag[tag])
	}
	if len(c.selfClosing) > 0 {
		fmt.Fprintf(&sb, ", self_closing=[%s]", strings.Join(sortedKeys(c.selfClosing), " "))
	}
	fmt.Fprintf(&sb, ", unknown=%s)", c.unknownMode)
	return sb.String()
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedStrategyKeys(m map[string]RecoveryStrategy) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
