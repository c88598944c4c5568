package compiler

import "strings"

// Spelling predicates. The translator works on token text, and folded
// right-hand sides such as "-5" or "not True" never come from a single token,
// so classification is structural rather than by TokenType.

func isBoolean(s string) bool {
	return s == "True" || s == "False"
}

func isNotBoolean(s string) bool {
	return s == "not True" || s == "not False"
}

func isInteger(s string) bool {
	if s != "" && (s[0] == '+' || s[0] == '-') {
		s = s[1:]
	}
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isDigit(rune(s[i])) {
			return false
		}
	}
	return true
}

func isString(s string) bool {
	return len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"'
}

func isChar(s string) bool {
	return len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\''
}

func isList(s string) bool {
	return len(s) >= 2 && s[0] == '[' && s[len(s)-1] == ']'
}

func isTypeName(s string) bool {
	_, ok := typeNames[s]
	return ok
}

func isKeyword(s string) bool {
	return controlWords[s] || isTypeName(s) || isBoolean(s)
}

// isNonKeyID reports whether s can name a symbol: a letter followed by
// letters, digits or underscores, and not reserved.
func isNonKeyID(s string) bool {
	if s == "" || isKeyword(s) {
		return false
	}
	for i, r := range s {
		if i == 0 && !isLetter(r) {
			return false
		}
		if !isLetter(r) && !isDigit(r) && r != '_' {
			return false
		}
	}
	return true
}

func isLiteral(s string) bool {
	return isInteger(s) || isBoolean(s) || isNotBoolean(s) ||
		isString(s) || isChar(s) || isList(s)
}

// literalType classifies a literal spelling. ok is false for non-literals.
func literalType(s string) (Type, bool) {
	switch {
	case isBoolean(s), isNotBoolean(s):
		return TypeBool, true
	case isInteger(s):
		return TypeInt, true
	case isChar(s):
		return TypeChar, true
	case isList(s):
		return TypeList, true
	case isString(s):
		return TypeStr, true
	}
	return TypeUnknown, false
}

// canonicalBool maps any boolean spelling, including already canonical
// values, to "0" or "-1".
func canonicalBool(v string) string {
	switch v {
	case "False", "not True", "0":
		return "0"
	}
	return "-1"
}

// listElements counts the comma-separated elements of a stripped list value.
func listElements(v string) int {
	if strings.TrimSpace(v) == "" {
		return 0
	}
	return strings.Count(v, ",") + 1
}
