package catalog

import (
	"regexp"
	"strings"
)

// regexMetacharacters are the characters whose presence in a query string
// signals the caller intended a regular expression rather than a literal
// path, mirroring the original's metacharacter set (spec.md §4.5): any of
// [ ] { } ^ | ( ) ? * + $ or a backslash-escape sequence (\s \S \d \D \w
// \W \b \B).
var regexMetacharacters = []string{
	"[", "]", "{", "}", "^", "|", "(", ")", "?", "*", "+", "$",
	`\s`, `\S`, `\d`, `\D`, `\w`, `\W`, `\b`, `\B`,
}

// IsRegex reports whether query contains a regex metacharacter and
// compiles as a valid Go regular expression. A string that merely
// contains a metacharacter but fails to compile (e.g. an unbalanced
// bracket typed into a path) is treated as a literal, not a regex, since
// treating it as one would error every lookup rather than degrade to an
// exact match.
func IsRegex(query string) bool {
	hasMetacharacter := false
	for _, m := range regexMetacharacters {
		if strings.Contains(query, m) {
			hasMetacharacter = true
			break
		}
	}
	if !hasMetacharacter {
		return false
	}
	_, err := regexp.Compile(query)
	return err == nil
}

// mustCompileOrNil compiles pattern, returning nil instead of panicking
// if it does not compile. Callers only reach here after IsRegex has
// already validated the pattern, so a nil result should not occur in
// practice.
func mustCompileOrNil(pattern string) *regexp.Regexp {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil
	}
	return re
}
