package kindaxml

import (
	"strings"
	"testing"
)

// segWant is an expected segment: its text and the rendered form of
// each covering annotation.
type segWant struct {
	text string
	anns []string
}

func checkInvariants(t *testing.T, res *ParseResult) {
	t.Helper()

	var sb strings.Builder
	for _, seg := range res.Segments {
		sb.WriteString(seg.Text)
	}
	if sb.String() != res.Text {
		t.Fatalf("segment concatenation %q != text %q", sb.String(), res.Text)
	}

	n := len([]rune(res.Text))
	for i, m := range res.Markers {
		if m.Pos < 0 || m.Pos > n {
			t.Fatalf("marker %d out of bounds: pos=%d len=%d", i, m.Pos, n)
		}
		if i > 0 && res.Markers[i-1].Pos > m.Pos {
			t.Fatalf("markers not sorted: %d after %d", m.Pos, res.Markers[i-1].Pos)
		}
	}
}

func checkSegments(t *testing.T, res *ParseResult, want []segWant) {
	t.Helper()

	if len(res.Segments) != len(want) {
		t.Fatalf("got %d segments, want %d\nsegments: %v", len(res.Segments), len(want), res.Segments)
	}
	for i, w := range want {
		seg := res.Segments[i]
		if seg.Text != w.text {
			t.Errorf("segment %d text = %q, want %q", i, seg.Text, w.text)
		}
		if len(seg.Annotations) != len(w.anns) {
			t.Fatalf("segment %d has %d annotations, want %d (%v)", i, len(seg.Annotations), len(w.anns), seg.Annotations)
		}
		for j, a := range w.anns {
			if got := seg.Annotations[j].String(); got != a {
				t.Errorf("segment %d annotation %d = %s, want %s", i, j, got, a)
			}
		}
	}
}

func TestClosedSpan(t *testing.T) {
	res := Parse("We shipped <cite id=1>last week</cite>.", nil)
	checkInvariants(t, res)

	if res.Text != "We shipped last week." {
		t.Fatalf("text = %q", res.Text)
	}
	checkSegments(t, res, []segWant{
		{"We shipped ", nil},
		{"last week", []string{`cite[id="1"]`}},
		{".", nil},
	})
	if len(res.Markers) != 0 {
		t.Fatalf("unexpected markers: %v", res.Markers)
	}
}

func TestSelfClosingMarker(t *testing.T) {
	res := Parse("Todo <todo id=3/>now", nil)
	checkInvariants(t, res)

	if res.Text != "Todo now" {
		t.Fatalf("text = %q", res.Text)
	}
	checkSegments(t, res, []segWant{
		{"Todo ", nil},
		{"now", nil},
	})
	if len(res.Markers) != 1 {
		t.Fatalf("got %d markers, want 1", len(res.Markers))
	}
	m := res.Markers[0]
	if m.Pos != 5 || m.Annotation.Tag != "todo" {
		t.Fatalf("marker = %v", m)
	}
	if v, ok := m.Annotation.Attrs.Get("id"); !ok || v.Str() != "3" {
		t.Fatalf("marker attrs = %s", m.Annotation.Attrs)
	}
}

func TestRetroLine(t *testing.T) {
	res := Parse("We shipped last week <cite id=1>. More info <note>soon.", nil)
	checkInvariants(t, res)

	if res.Text != "We shipped last week . More info soon." {
		t.Fatalf("text = %q", res.Text)
	}
	checkSegments(t, res, []segWant{
		{"We shipped last week ", []string{`cite[id="1"]`}},
		{". More info ", nil},
		{"soon.", []string{"note"}},
	})
}

func TestForwardNextToken(t *testing.T) {
	cfg := NewParserConfig().
		WithRecoveryStrategy("mytag", "retro_line").
		WithRecoveryStrategy("risk", "forward_next_token")
	res := Parse("Risks: <mytag level=high> load tests are late. <risk level=low>Docs slipping.", cfg)
	checkInvariants(t, res)

	checkSegments(t, res, []segWant{
		{"Risks: ", []string{`mytag[level="high"]`}},
		{" load tests are late. ", nil},
		{"Docs", []string{`risk[level="low"]`}},
		{" slipping.", nil},
	})
}

func TestUnknownStrip(t *testing.T) {
	res := Parse("Hello <unknown>world</unknown>", nil)
	checkInvariants(t, res)

	if res.Text != "Hello world" {
		t.Fatalf("text = %q", res.Text)
	}
	checkSegments(t, res, []segWant{{"Hello world", nil}})
}

func TestUnknownPassthrough(t *testing.T) {
	cfg := NewParserConfig().
		WithRecognizedTags("note").
		WithUnknownMode("passthrough")
	res := Parse("Hello <weird>world</weird> <note>ok</note>", cfg)
	checkInvariants(t, res)

	if res.Text != "Hello <weird>world</weird> ok" {
		t.Fatalf("text = %q", res.Text)
	}
	last := res.Segments[len(res.Segments)-1]
	if last.Text != "ok" || len(last.Annotations) != 1 || last.Annotations[0].Tag != "note" {
		t.Fatalf("last segment = %+v", last)
	}
}

func TestBooleanAndNumericAttrs(t *testing.T) {
	cfg := NewParserConfig().WithRecognizedTags("tag")
	res := Parse("<tag a=1 b='two' c d=\"4\" 9000>x</tag>", cfg)
	checkInvariants(t, res)

	if res.Text != "x" {
		t.Fatalf("text = %q", res.Text)
	}
	if len(res.Segments) != 1 || len(res.Segments[0].Annotations) != 1 {
		t.Fatalf("segments = %v", res.Segments)
	}
	ann := res.Segments[0].Annotations[0]
	want := `tag[a="1", b="two", c=true, d="4", 9000=true]`
	if got := ann.String(); got != want {
		t.Fatalf("annotation = %s, want %s", got, want)
	}
	if v, _ := ann.Attrs.Get("c"); !v.IsBool() {
		t.Fatal("attribute c should be boolean-present")
	}
}

func TestDuplicateAttrKeysLastWinsFirstOrder(t *testing.T) {
	cfg := NewParserConfig().WithRecognizedTags("tag")
	res := Parse("<tag a=1 b=2 a=3>x</tag>", cfg)
	checkInvariants(t, res)

	ann := res.Segments[0].Annotations[0]
	if got := ann.String(); got != `tag[a="3", b="2"]` {
		t.Fatalf("annotation = %s", got)
	}
}

func TestUnclosedQuoteRecovery(t *testing.T) {
	cfg := NewParserConfig().WithRecognizedTags("tag")
	res := Parse("auto-close <tag att='one two three>un-closed quotation marks</tag>.", cfg)
	checkInvariants(t, res)

	if res.Text != "auto-close un-closed quotation marks." {
		t.Fatalf("text = %q", res.Text)
	}
	var tagged *Segment
	for i := range res.Segments {
		if len(res.Segments[i].Annotations) > 0 {
			tagged = &res.Segments[i]
		}
	}
	if tagged == nil || tagged.Text != "un-closed quotation marks" {
		t.Fatalf("segments = %v", res.Segments)
	}
	if v, ok := tagged.Annotations[0].Attrs.Get("att"); !ok || v.Str() != "one two three" {
		t.Fatalf("attrs = %s", tagged.Annotations[0].Attrs)
	}
	if !hasDiag(res, DiagUnclosedQuote) {
		t.Fatalf("expected unclosed_quote diagnostic, got %v", res.Diagnostics)
	}
}

func TestMultipleMarkers(t *testing.T) {
	cfg := NewParserConfig().WithRecognizedTags("todo")
	res := Parse("Todo list: <todo id=7/>finish rollout <todo/> update docs.", cfg)
	checkInvariants(t, res)

	if res.Text != "Todo list: finish rollout  update docs." {
		t.Fatalf("text = %q", res.Text)
	}
	if len(res.Markers) != 2 {
		t.Fatalf("markers = %v", res.Markers)
	}
	if res.Markers[0].Pos != 11 || res.Markers[1].Pos != 26 {
		t.Fatalf("marker positions = %d, %d", res.Markers[0].Pos, res.Markers[1].Pos)
	}
	checkSegments(t, res, []segWant{
		{"Todo list: ", nil},
		{"finish rollout ", nil},
		{" update docs.", nil},
	})
}

func TestMarkersStableForEqualPositions(t *testing.T) {
	cfg := NewParserConfig().WithRecognizedTags("todo")
	res := Parse("<todo a/><todo b/>x", cfg)
	checkInvariants(t, res)

	if len(res.Markers) != 2 {
		t.Fatalf("markers = %v", res.Markers)
	}
	if _, ok := res.Markers[0].Annotation.Attrs.Get("a"); !ok {
		t.Fatalf("marker order not stable: %v", res.Markers)
	}
	if _, ok := res.Markers[1].Annotation.Attrs.Get("b"); !ok {
		t.Fatalf("marker order not stable: %v", res.Markers)
	}
}

// A retro_line tag auto-closes when its line ends: the annotation
// attaches backward on the open's own line, and a close tag on a
// later line no longer matches it.
func TestRetroLineEndsAtNewline(t *testing.T) {
	res := Parse("one <cite id=9>\ntwo", nil)
	checkInvariants(t, res)

	if res.Text != "one \ntwo" {
		t.Fatalf("text = %q", res.Text)
	}
	checkSegments(t, res, []segWant{
		{"one ", []string{`cite[id="9"]`}},
		{"\ntwo", nil},
	})

	res = Parse("abc <cite>\ndef</cite>", nil)
	checkInvariants(t, res)
	if !hasDiag(res, DiagStrayClose) {
		t.Fatalf("close on a later line should be stray, got %v", res.Diagnostics)
	}
}

func TestTodoOpenTagActsSelfClosing(t *testing.T) {
	// default_cite_config marks todo as self-closable: a plain <todo>
	// emits a marker instead of opening a pending span.
	res := Parse("done <todo>rest", nil)
	checkInvariants(t, res)

	if res.Text != "done rest" {
		t.Fatalf("text = %q", res.Text)
	}
	if len(res.Markers) != 1 || res.Markers[0].Pos != 5 || res.Markers[0].Annotation.Tag != "todo" {
		t.Fatalf("markers = %v", res.Markers)
	}
}

func TestTruncatedTagDiscarded(t *testing.T) {
	res := Parse("hello <wor", nil)
	checkInvariants(t, res)

	if res.Text != "hello " {
		t.Fatalf("text = %q", res.Text)
	}
	if !hasDiag(res, DiagTruncatedTag) {
		t.Fatalf("expected truncated_tag diagnostic, got %v", res.Diagnostics)
	}
}

func TestLiteralAngleBrackets(t *testing.T) {
	in := "a < b and 1<2 and x <= y"
	res := Parse(in, nil)
	checkInvariants(t, res)

	if res.Text != in {
		t.Fatalf("text = %q, want %q", res.Text, in)
	}
}

func TestEmptyInput(t *testing.T) {
	res := Parse("", nil)
	checkInvariants(t, res)

	if res.Text != "" {
		t.Fatalf("text = %q", res.Text)
	}
	checkSegments(t, res, []segWant{{"", nil}})
	if len(res.Markers) != 0 {
		t.Fatalf("markers = %v", res.Markers)
	}
}

func TestPassthroughRoundTrip(t *testing.T) {
	cfg := NewParserConfig().WithUnknownMode("passthrough")
	inputs := []string{
		"plain text only",
		"a <b c='d'>e</b> f",
		"self closing <x y=1/> here",
		"unclosed quote <b att='one two>still</b>",
		"stray < bracket and </closer>",
		"<multi\nline a=1>ok</multi>",
	}
	for _, in := range inputs {
		res := Parse(in, cfg)
		checkInvariants(t, res)
		if res.Text != in {
			t.Errorf("passthrough round-trip failed:\n in: %q\nout: %q", in, res.Text)
		}
	}
}

func TestStripEmptiness(t *testing.T) {
	cfg := NewParserConfig()
	res := Parse("a <b c='d'>e</b> f <x/> g", cfg)
	checkInvariants(t, res)

	if res.Text != "a e f  g" {
		t.Fatalf("text = %q", res.Text)
	}
	for _, seg := range res.Segments {
		if len(seg.Annotations) != 0 {
			t.Fatalf("strip mode emitted annotations: %v", res.Segments)
		}
	}
}

func TestDropStrategy(t *testing.T) {
	cfg := NewParserConfig().WithRecoveryStrategy("gone", "drop")
	res := Parse("<gone>abc", cfg)
	checkInvariants(t, res)

	if res.Text != "abc" {
		t.Fatalf("text = %q", res.Text)
	}
	checkSegments(t, res, []segWant{{"abc", nil}})
	if len(res.Markers) != 0 {
		t.Fatalf("markers = %v", res.Markers)
	}
}

func TestClosedSpanStrategyRequiresClose(t *testing.T) {
	cfg := NewParserConfig().WithRecoveryStrategy("strict", "closed_span")

	res := Parse("<strict>ab</strict> cd", cfg)
	checkInvariants(t, res)
	checkSegments(t, res, []segWant{
		{"ab", []string{"strict"}},
		{" cd", nil},
	})

	// Left unclosed, the tag yields nothing at all.
	res = Parse("<strict>ab cd", cfg)
	checkInvariants(t, res)
	checkSegments(t, res, []segWant{{"ab cd", nil}})
	if len(res.Markers) != 0 {
		t.Fatalf("markers = %v", res.Markers)
	}
}

func TestMismatchedCloseRecoversInnerFirst(t *testing.T) {
	cfg := NewParserConfig().
		WithRecoveryStrategy("a", "closed_span").
		WithRecoveryStrategy("b", "forward_until_tag")
	res := Parse("<a><b>xy</a>", cfg)
	checkInvariants(t, res)

	if res.Text != "xy" {
		t.Fatalf("text = %q", res.Text)
	}
	// b is recovered first (innermost), then a closes explicitly, so
	// the segment lists b before a.
	checkSegments(t, res, []segWant{{"xy", []string{"b", "a"}}})
}

func TestForwardNextTokenWithoutToken(t *testing.T) {
	cfg := NewParserConfig().WithRecoveryStrategy("risk", "forward_next_token")
	res := Parse("danger <risk>   ", cfg)
	checkInvariants(t, res)

	if res.Text != "danger    " {
		t.Fatalf("text = %q", res.Text)
	}
	// No token ever followed the tag: the empty span degenerates to a
	// marker at the open position.
	if len(res.Markers) != 1 || res.Markers[0].Pos != 7 || res.Markers[0].Annotation.Tag != "risk" {
		t.Fatalf("markers = %v", res.Markers)
	}
}

func TestForwardNextTokenRunsToEOF(t *testing.T) {
	cfg := NewParserConfig().WithRecoveryStrategy("risk", "forward_next_token")
	res := Parse("<risk>Docs", cfg)
	checkInvariants(t, res)

	checkSegments(t, res, []segWant{{"Docs", []string{"risk"}}})
}

func TestStrayCloseIgnored(t *testing.T) {
	res := Parse("no open</cite> here", nil)
	checkInvariants(t, res)

	if res.Text != "no open here" {
		t.Fatalf("text = %q", res.Text)
	}
	if !hasDiag(res, DiagStrayClose) {
		t.Fatalf("expected stray_close diagnostic, got %v", res.Diagnostics)
	}
}

func TestUnicodePositions(t *testing.T) {
	cfg := NewParserConfig().WithRecognizedTags("tag", "todo")
	res := Parse("héllo wörld <todo/>déjà <tag>vu</tag>", cfg)
	checkInvariants(t, res)

	if res.Text != "héllo wörld déjà vu" {
		t.Fatalf("text = %q", res.Text)
	}
	// Positions are in runes, not bytes.
	if len(res.Markers) != 1 || res.Markers[0].Pos != 12 {
		t.Fatalf("markers = %v", res.Markers)
	}
	checkSegments(t, res, []segWant{
		{"héllo wörld ", nil},
		{"déjà ", nil},
		{"vu", []string{"tag"}},
	})
}

func TestDeeplyNestedTags(t *testing.T) {
	cfg := NewParserConfig().WithRecoveryStrategy("d", "drop")

	var sb strings.Builder
	for i := 0; i < 20000; i++ {
		sb.WriteString("<d>")
	}
	sb.WriteString("x")

	res := Parse(sb.String(), cfg)
	checkInvariants(t, res)
	if res.Text != "x" {
		t.Fatalf("text = %q", res.Text)
	}
}

func hasDiag(res *ParseResult, kind DiagnosticKind) bool {
	for _, d := range res.Diagnostics {
		if d.Kind == kind {
			return true
		}
	}
	return false
}
