package statement

import (
	"errors"
	"testing"

	"github.com/trueleo/scalardb/dberr"
	"github.com/trueleo/scalardb/schema"
)

var testSchema = schema.MustNew(schema.Integer64("a"), schema.FixedString("b", 10))

func TestParseInsert(t *testing.T) {

	cases := []struct {
		line string
		num  int64
		str  string
	}{
		{`insert 1 "hi"`, 1, "hi"},
		{`insert   -42    "there"  `, -42, "there"},
		{`insert 7 ""`, 7, ""},
		{`insert 3 "say \"x\""`, 3, `say "x"`},
		{`insert 4 "a\\b"`, 4, `a\b`},
		{`insert 5 "a\nb"`, 5, `a\nb`},
		{`insert 6"glued"`, 6, "glued"},
	}

	for _, c := range cases {
		st, err := Parse(c.line, testSchema)
		if err != nil {
			t.Errorf("%s: unexpected error %v", c.line, err)
			continue
		}
		if st.Kind != Insert {
			t.Errorf("%s: Expected %s but got %s", c.line, Insert, st.Kind)
		}
		if st.Values[0].Num != c.num || st.Values[1].Str != c.str {
			t.Errorf("%s: Expected (%d, %q) but got %v", c.line, c.num, c.str, st.Values)
		}
	}
}

func TestParseErrors(t *testing.T) {

	cases := []struct {
		line string
		kind error
	}{
		{`insert 1`, dberr.ErrParse},
		{`insert "hi" 1`, dberr.ErrParse},
		{`insert 1 "hi" 2`, dberr.ErrParse},
		{`insert 1 "unterminated`, dberr.ErrParse},
		{`insert 1 hi`, dberr.ErrParse},
		{`insert 1 "0123456789"`, dberr.ErrParse},
		{`insert 99999999999999999999 "x"`, dberr.ErrParse},
		{`read`, dberr.ErrParse},
		{`read -1`, dberr.ErrParse},
		{`read one`, dberr.ErrParse},
		{`select everything`, dberr.ErrParse},
		{`delete 1`, dberr.ErrUnrecognizedCommand},
		{``, dberr.ErrUnrecognizedCommand},
	}

	for _, c := range cases {
		if _, err := Parse(c.line, testSchema); !errors.Is(err, c.kind) {
			t.Errorf("%q: Expected %v but got %v", c.line, c.kind, err)
		}
	}
}

func TestParseReadAndSelect(t *testing.T) {

	st, err := Parse("read 12", testSchema)
	if err != nil || st.Kind != Read || st.Index != 12 {
		t.Errorf("unexpected statement %+v (%v)", st, err)
	}

	st, err = Parse("  select  ", testSchema)
	if err != nil || st.Kind != Select {
		t.Errorf("unexpected statement %+v (%v)", st, err)
	}
}

func TestParseMeta(t *testing.T) {

	cases := []struct {
		line string
		kind MetaKind
		arg  string
	}{
		{".exit", Exit, ""},
		{" .schema ", ShowSchema, ""},
		{".stats", ShowStats, ""},
		{".backup /tmp/out.lz4", Backup, "/tmp/out.lz4"},
	}

	for _, c := range cases {
		if !IsMeta(c.line) {
			t.Errorf("%q should be a meta command", c.line)
		}
		m, err := ParseMeta(c.line)
		if err != nil {
			t.Errorf("%q: unexpected error %v", c.line, err)
			continue
		}
		if m.Kind != c.kind || m.Arg != c.arg {
			t.Errorf("%q: Expected %s %q but got %s %q", c.line, c.kind, c.arg, m.Kind, m.Arg)
		}
	}

	if _, err := ParseMeta(".quit"); !errors.Is(err, dberr.ErrUnrecognizedCommand) {
		t.Errorf("Expected ErrUnrecognizedCommand but got %v", err)
	}
	if _, err := ParseMeta(".backup"); !errors.Is(err, dberr.ErrParse) {
		t.Errorf("Expected ErrParse but got %v", err)
	}
	if _, err := ParseMeta(".exit now"); !errors.Is(err, dberr.ErrParse) {
		t.Errorf("Expected ErrParse but got %v", err)
	}
}
