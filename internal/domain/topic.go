package domain

import "strings"

// MatchTopic reports whether a PUBLISH topic matches a subscription filter,
// walking both level by level. "+" matches one level, a trailing "#" the
// rest (including the parent level). Topics starting with '$' are not
// matched by a leading wildcard. Shared filters ($share/group/filter) match
// like their inner filter.
func MatchTopic(filter, topic string) bool {
	if rest, ok := strings.CutPrefix(filter, "$share/"); ok {
		_, inner, found := strings.Cut(rest, "/")
		if !found {
			return false
		}
		filter = inner
	}
	if filter == "" || topic == "" {
		return false
	}
	if strings.HasPrefix(topic, "$") && (filter[0] == '+' || filter[0] == '#') {
		return false
	}

	fl := strings.Split(filter, "/")
	tl := strings.Split(topic, "/")
	for i, level := range fl {
		switch level {
		case "#":
			return i == len(fl)-1
		case "+":
			if i >= len(tl) {
				return false
			}
		default:
			if i >= len(tl) || tl[i] != level {
				return false
			}
		}
	}
	return len(fl) == len(tl)
}
