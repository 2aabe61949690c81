package statement

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/trueleo/scalardb/dberr"
	"github.com/trueleo/scalardb/schema"
)

// Values tokenizes a list of literals: integers and double quoted strings.
// Inside strings \" stands for a quote and \\ for a backslash; any other
// backslash is kept as is.
func Values(input string) ([]schema.Value, error) {

	var values []schema.Value

	rest := strings.TrimSpace(input)

	for rest != "" {
		var (
			value schema.Value
			err   error
		)

		if rest[0] == '"' {
			value, rest, err = stringLiteral(rest)
		} else {
			value, rest, err = numberLiteral(rest)
		}

		if err != nil {
			return nil, err
		}

		values = append(values, value)
		rest = strings.TrimSpace(rest)
	}

	return values, nil
}

func numberLiteral(input string) (schema.Value, string, error) {

	end := 0
	if end < len(input) && input[end] == '-' {
		end++
	}
	for end < len(input) && input[end] >= '0' && input[end] <= '9' {
		end++
	}

	token := input[:end]

	n, err := strconv.ParseInt(token, 10, 64)
	if err != nil {
		word, _, _ := strings.Cut(input, " ")
		return schema.Value{}, "", fmt.Errorf("%w: expected a number or a quoted string at `%s`", dberr.ErrParse, word)
	}

	return schema.NumberValue(n), input[end:], nil
}

func stringLiteral(input string) (schema.Value, string, error) {

	var sb strings.Builder

	for i := 1; i < len(input); i++ {
		c := input[i]

		switch {
		case c == '"':
			return schema.StringValue(sb.String()), input[i+1:], nil
		case c == '\\' && i+1 < len(input) && (input[i+1] == '"' || input[i+1] == '\\'):
			sb.WriteByte(input[i+1])
			i++
		default:
			sb.WriteByte(c)
		}
	}

	return schema.Value{}, "", fmt.Errorf("%w: unterminated string %s", dberr.ErrParse, input)
}
