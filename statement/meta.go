package statement

import (
	"fmt"
	"strings"

	"github.com/trueleo/scalardb/dberr"
)

type MetaKind byte

const (
	Exit MetaKind = iota
	ShowSchema
	ShowStats
	Backup
)

func (k MetaKind) String() string {
	switch k {
	case Exit:
		return ".exit"
	case ShowSchema:
		return ".schema"
	case ShowStats:
		return ".stats"
	case Backup:
		return ".backup"
	default:
		panic(fmt.Sprintf("unknown meta command %d", k))
	}
}

type Meta struct {
	Kind MetaKind
	Arg  string
}

func IsMeta(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), ".")
}

func ParseMeta(line string) (Meta, error) {

	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, ".") {
		return Meta{}, fmt.Errorf("%w: `%s`", dberr.ErrUnrecognizedCommand, line)
	}

	command, arg, _ := strings.Cut(line[1:], " ")
	arg = strings.TrimSpace(arg)

	var kind MetaKind

	switch command {
	case "exit":
		kind = Exit
	case "schema":
		kind = ShowSchema
	case "stats":
		kind = ShowStats
	case "backup":
		if arg == "" {
			return Meta{}, fmt.Errorf("%w: .backup needs a target path", dberr.ErrParse)
		}
		return Meta{Kind: Backup, Arg: arg}, nil
	default:
		return Meta{}, fmt.Errorf("%w: `%s`", dberr.ErrUnrecognizedCommand, line)
	}

	if arg != "" {
		return Meta{}, fmt.Errorf("%w: %s takes no arguments", dberr.ErrParse, kind)
	}

	return Meta{Kind: kind}, nil
}
