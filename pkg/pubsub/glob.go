package pubsub

// Match implements the glob subset PSUBSCRIBE/KEYS use: '*' matches any
// run of characters, '?' matches exactly one, '[...]' matches a
// character class (with leading '^' for negation), and '\' escapes the
// next character literally. No third-party glob library in the
// retrieval pack implements this Redis-specific dialect, and the
// stdlib's path.Match treats '/' specially in a way channel/key glyphs
// don't need, so this is a small hand-rolled matcher instead (see
// DESIGN.md).
func Match(pattern, s string) bool {
	return matchHere(pattern, s)
}

func matchHere(pattern, s string) bool {
	for len(pattern) > 0 {
		switch pattern[0] {
		case '*':
			// collapse consecutive stars
			for len(pattern) > 1 && pattern[1] == '*' {
				pattern = pattern[1:]
			}
			if len(pattern) == 1 {
				return true
			}
			for i := 0; i <= len(s); i++ {
				if matchHere(pattern[1:], s[i:]) {
					return true
				}
			}
			return false
		case '?':
			if len(s) == 0 {
				return false
			}
			pattern, s = pattern[1:], s[1:]
		case '[':
			if len(s) == 0 {
				return false
			}
			end := indexUnescaped(pattern, ']')
			if end < 0 {
				return pattern[0] == s[0] // malformed class, treat '[' literally
			}
			class := pattern[1:end]
			negate := false
			if len(class) > 0 && class[0] == '^' {
				negate = true
				class = class[1:]
			}
			if classMatches(class, s[0]) == negate {
				return false
			}
			pattern, s = pattern[end+1:], s[1:]
		case '\\':
			if len(pattern) < 2 || len(s) == 0 || pattern[1] != s[0] {
				return false
			}
			pattern, s = pattern[2:], s[1:]
		default:
			if len(s) == 0 || pattern[0] != s[0] {
				return false
			}
			pattern, s = pattern[1:], s[1:]
		}
	}
	return len(s) == 0
}

func indexUnescaped(s string, c byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == c {
			return i
		}
	}
	return -1
}

func classMatches(class string, c byte) bool {
	for i := 0; i < len(class); i++ {
		if i+2 < len(class) && class[i+1] == '-' {
			if class[i] <= c && c <= class[i+2] {
				return true
			}
			i += 2
			continue
		}
		if class[i] == c {
			return true
		}
	}
	return false
}
