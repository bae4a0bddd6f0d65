package kindaxml

// Version string
const Version = "v1"

// Parse runs the annotation engine over text and returns the result
// triple: the plain text with tag syntax resolved, its segmentation,
// and the zero-width markers.
//
// If config is nil, DefaultCiteConfig is used. Parse never fails on
// input: malformed tags are absorbed by the configured recovery
// strategies and at worst surface as Diagnostics on the result.
//
// Parse is pure and synchronous. Concurrent calls are safe as long as
// the shared config is not mutated while in use.
func Parse(text string, config *ParserConfig) *ParseResult {
	if config == nil {
		config = DefaultCiteConfig()
	}

	tokens, diags := lex(text)

	e := newEngine(config)
	e.run(tokens)

	return materialize(e.out, e.spans, e.markers, append(diags, e.diags...))
}
