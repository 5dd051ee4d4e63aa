package handlers

// ExtractJSON pulls the first JSON object assigned or passed inside script
// text: a '{' whose preceding non-space character is '=', '(' or ':',
// scanned to its balanced closing brace. Double-quoted strings are skipped
// so braces inside values don't unbalance the scan.
func ExtractJSON(s string) (string, bool) {
	start := -1
	for i := 0; i < len(s); i++ {
		if s[i] != '{' {
			continue
		}
		if prev, ok := prevNonSpace(s, i); ok && (prev == '=' || prev == '(' || prev == ':') {
			start = i
			break
		}
	}
	if start < 0 {
		// Script may be the bare JSON document itself.
		if len(s) > 0 && s[0] == '{' {
			start = 0
		} else {
			return "", false
		}
	}

	depth := 0
	inString := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch c {
			case '\\':
				i++
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

func prevNonSpace(s string, i int) (byte, bool) {
	for j := i - 1; j >= 0; j-- {
		switch s[j] {
		case ' ', '\t', '\n', '\r':
			continue
		}
		return s[j], true
	}
	return 0, false
}
