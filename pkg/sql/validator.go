// Package sql validates the SQL fragments stored on constraints: CHECK predicates
// and DEFAULT value expressions.
package sql

import (
	"errors"
	"strings"
)

var (
	// ErrMultipleStatements indicates the fragment smuggles a second statement.
	ErrMultipleStatements = errors.New("multiple SQL statements not allowed")
	// ErrEmptyExpression indicates a blank fragment.
	ErrEmptyExpression = errors.New("expression is empty")
)

// Normalize trims whitespace and a trailing semicolon, then rejects any semicolon left
// outside string literals.
func Normalize(fragment string) (string, error) {
	fragment = stripTrailingSemicolon(strings.TrimSpace(fragment))
	if fragment == "" {
		return "", ErrEmptyExpression
	}
	if hasSemicolonOutsideStrings(fragment) {
		return "", ErrMultipleStatements
	}
	return fragment, nil
}

func hasSemicolonOutsideStrings(fragment string) bool {
	const (
		stateNormal = iota
		stateSingleQuote
		stateDoubleQuote
		stateBacktick
	)

	state := stateNormal
	prevChar := rune(0)

	for _, char := range fragment {
		switch state {
		case stateNormal:
			switch char {
			case ';':
				return true
			case '\'':
				state = stateSingleQuote
			case '"':
				state = stateDoubleQuote
			case '`':
				state = stateBacktick
			}
		case stateSingleQuote:
			// '' re-enters on the next quote, so doubled quotes stay inside the string.
			if char == '\'' && prevChar != '\\' {
				state = stateNormal
			}
		case stateDoubleQuote:
			if char == '"' && prevChar != '\\' {
				state = stateNormal
			}
		case stateBacktick:
			if char == '`' {
				state = stateNormal
			}
		}
		prevChar = char
	}

	return false
}

func stripTrailingSemicolon(fragment string) string {
	fragment = strings.TrimRight(fragment, " \t\n\r")
	for strings.HasSuffix(fragment, ";") {
		fragment = strings.TrimRight(strings.TrimSuffix(fragment, ";"), " \t\n\r")
	}
	return fragment
}
