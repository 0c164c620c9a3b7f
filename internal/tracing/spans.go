package tracing

// Span attribute keys.
const (
	AttrIntentID     = "intent.id"
	AttrIntentKind   = "intent.kind"
	AttrIntentSource = "intent.source"
)

// SpanPrefixIntent prefixes the span of every handled intent.
const SpanPrefixIntent = "intent."
