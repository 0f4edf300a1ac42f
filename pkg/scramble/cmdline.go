package scramble

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var (
	// ErrUnclosedQuote is returned when a quoted string is not closed.
	ErrUnclosedQuote = errors.New("unclosed quote in scrambler command")

	// ErrTrailingEscape is returned when a backslash ends the input.
	ErrTrailingEscape = errors.New("trailing escape character in scrambler command")
)

// splitCommand parses the configured scrambler command template into argv,
// following POSIX word-splitting rules: whitespace separates words, single
// quotes are literal, double quotes allow backslash escapes.
func splitCommand(input string) ([]string, error) {
	if input == "" {
		return []string{}, nil
	}

	var result []string
	var current strings.Builder
	var inSingle, inDouble bool
	var sawQuotes bool

	runes := []rune(input)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]

		if ch == '\\' && !inSingle {
			if i+1 >= len(runes) {
				return nil, ErrTrailingEscape
			}
			i++
			next := runes[i]
			if inDouble {
				switch next {
				case '"', '\\', '$', '`':
					current.WriteRune(next)
				default:
					current.WriteRune('\\')
					current.WriteRune(next)
				}
			} else {
				current.WriteRune(next)
			}
			continue
		}

		if ch == '\'' && !inDouble {
			if inSingle {
				sawQuotes = true
			}
			inSingle = !inSingle
			continue
		}
		if ch == '"' && !inSingle {
			if inDouble {
				sawQuotes = true
			}
			inDouble = !inDouble
			continue
		}

		if unicode.IsSpace(ch) && !inSingle && !inDouble {
			if current.Len() > 0 || sawQuotes {
				result = append(result, current.String())
				current.Reset()
				sawQuotes = false
			}
			continue
		}

		current.WriteRune(ch)
	}

	if inSingle || inDouble {
		quoteType := "single"
		if inDouble {
			quoteType = "double"
		}
		return nil, fmt.Errorf("%w: unclosed %s quote", ErrUnclosedQuote, quoteType)
	}

	if current.Len() > 0 || sawQuotes {
		result = append(result, current.String())
	}
	return result, nil
}
