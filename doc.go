// A forgiving inline-markup parser for short annotated text.
//
// KindaXML accepts XML-ish tags embedded in free text (chat messages,
// LLM outputs, documentation snippets) and produces a plain-text
// rendering together with annotation spans and zero-width markers.
// Unlike a strict XML parser it tolerates malformed or unclosed tags:
// every recognized tag is resolved through a per-tag recovery strategy
// so a best-effort annotation is always produced.
//
// A tiny example:
//
//	res := kindaxml.Parse("We shipped <cite id=1>last week</cite>.", nil)
//	fmt.Println(res.Text) // Output: We shipped last week.
//	for _, seg := range res.Segments {
//	    fmt.Printf("%q %v\n", seg.Text, seg.Annotations)
//	}
//
// Parsing never fails on input — malformed input yields a best-effort
// ParseResult. The only error surface is configuration: setting an
// unknown recovery strategy or unknown-tag mode.
package kindaxml
