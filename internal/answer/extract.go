package answer

// extractJSONBlock returns the first balanced brace-delimited block in
// s, or "" when none exists. Models often wrap their JSON in prose, so
// the parser takes the first object it can find rather than requiring a
// clean payload. Braces inside JSON strings are skipped.
func extractJSONBlock(s string) string {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i, r := range s {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}

		switch r {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 {
					return s[start : i+1]
				}
			}
		}
	}
	return ""
}
