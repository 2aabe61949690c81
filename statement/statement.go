// Package statement turns a line of input into a typed statement.
//
//	insert 1 "hello"
//	read 0
//	select
package statement

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/trueleo/scalardb/dberr"
	"github.com/trueleo/scalardb/schema"
)

type Kind byte

const (
	Insert Kind = iota
	Read
	Select
)

func (k Kind) String() string {
	switch k {
	case Insert:
		return "insert"
	case Read:
		return "read"
	case Select:
		return "select"
	default:
		panic(fmt.Sprintf("unknown statement kind %d", k))
	}
}

type Statement struct {
	Kind Kind

	// Insert
	Values []schema.Value

	// Read
	Index uint64
}

// Parse prepares one statement against the table schema.
func Parse(line string, s *schema.Schema) (Statement, error) {

	line = strings.TrimSpace(line)

	command, args, _ := strings.Cut(line, " ")
	args = strings.TrimSpace(args)

	switch command {
	case "insert":
		return parseInsert(args, s)
	case "read":
		return parseRead(args)
	case "select":
		if args != "" {
			return Statement{}, fmt.Errorf("%w: select takes no arguments, got `%s`", dberr.ErrParse, args)
		}
		return Statement{Kind: Select}, nil
	default:
		return Statement{}, fmt.Errorf("%w: `%s`", dberr.ErrUnrecognizedCommand, command)
	}
}

func parseInsert(args string, s *schema.Schema) (Statement, error) {

	values, err := Values(args)
	if err != nil {
		return Statement{}, err
	}

	if err := s.Check(values); err != nil {
		return Statement{}, err
	}

	return Statement{Kind: Insert, Values: values}, nil
}

func parseRead(args string) (Statement, error) {

	if args == "" {
		return Statement{}, fmt.Errorf("%w: read needs a row index", dberr.ErrParse)
	}

	index, err := strconv.ParseUint(args, 10, 64)
	if err != nil {
		return Statement{}, fmt.Errorf("%w: row index `%s`: %w", dberr.ErrParse, args, err)
	}

	return Statement{Kind: Read, Index: index}, nil
}
