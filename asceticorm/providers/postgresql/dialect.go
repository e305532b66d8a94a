package postgresql

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/krew-solutions/ascetic-orm-go/asceticorm/metadata"
	query "github.com/krew-solutions/ascetic-orm-go/asceticorm/query/infrastructure"
)

// Dialect renders PostgreSQL. Embedded collections are jsonb arrays.
type Dialect struct {
	query.BaseDialect
}

func NewDialect() *Dialect {
	return &Dialect{}
}

func (*Dialect) Name() string {
	return "postgresql"
}

func (*Dialect) PlaceholderStyle() query.PlaceholderStyle {
	return query.PlaceholderNumbered
}

func (*Dialect) Placeholder(_ string, number int) string {
	return "$" + strconv.Itoa(number)
}

func (d *Dialect) Literal(value any) (string, error) {
	if b, ok := value.([]byte); ok {
		return `'\x` + hex.EncodeToString(b) + `'::bytea`, nil
	}
	return d.BaseDialect.Literal(value)
}

func (d *Dialect) EmbeddedSource(source, alias string) string {
	return "jsonb_array_elements(" + source + ") AS " + d.QuoteIdentifier(alias)
}

func (d *Dialect) EmbeddedField(alias string, path []string, mapping *metadata.TypeMapping) string {
	value := d.QuoteIdentifier(alias) + ".value"
	if len(path) == 1 {
		value += " ->> " + query.QuoteString(path[0])
	} else {
		value += " #>> " + query.QuoteString("{"+strings.Join(path, ",")+"}")
	}
	if mapping == nil || mapping.Kind == metadata.KindString {
		return "(" + value + ")"
	}
	return "CAST(" + value + " AS " + mapping.String() + ")"
}
