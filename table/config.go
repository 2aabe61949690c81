package table

import (
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/trueleo/scalardb/schema"
)

const DefaultMaxPages = 100

// DefaultSchema is the schema of tables created without an explicit one.
var DefaultSchema = schema.MustNew(
	schema.Integer64("a"),
	schema.FixedString("b", 10),
)

type Config struct {
	Path string

	// Name defaults to the file name without its extension.
	Name string

	// Schema is used when the file is created. For an existing file the
	// stored schema wins.
	Schema *schema.Schema

	// MaxPages bounds the row count at RowsPerPage * MaxPages. Stored in the
	// header on creation.
	MaxPages uint32

	// InternalMaxKeys caps internal node fan-out, 0 uses the page geometry.
	InternalMaxKeys int

	// NoSync skips fsync after each insert.
	NoSync bool

	Logger *slog.Logger
}

func (c Config) withDefaults() Config {

	if c.Name == "" {
		base := filepath.Base(c.Path)
		c.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}

	if c.Schema == nil {
		c.Schema = DefaultSchema
	}

	if c.MaxPages == 0 {
		c.MaxPages = DefaultMaxPages
	}

	if c.Logger == nil {
		c.Logger = slog.Default()
	}

	return c
}
