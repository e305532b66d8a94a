package cosmos

import (
	"strings"

	"github.com/krew-solutions/ascetic-orm-go/asceticorm/query/domain/operators"
	query "github.com/krew-solutions/ascetic-orm-go/asceticorm/query/infrastructure"
)

// maxLimit bounds OFFSET queries without a take, the store requires both.
const maxLimit = "2147483647"

// Dialect renders Cosmos SQL over the documents of one container. Members
// are accessed with the indexer syntax: c["Address"]["City"].
type Dialect struct {
	query.BaseDialect
}

func NewDialect() *Dialect {
	return &Dialect{
		BaseDialect: query.BaseDialect{
			Boolean: func(value bool) string {
				if value {
					return "true"
				}
				return "false"
			},
			Text: func(s string) string {
				return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
			},
		},
	}
}

func (*Dialect) Name() string {
	return "cosmos"
}

func (*Dialect) IsDocument() bool {
	return true
}

func (d *Dialect) QuoteIdentifier(name string) string {
	return name
}

func (d *Dialect) Operator(op operators.Operator) (string, error) {
	switch op {
	case operators.OperatorNe:
		return "!=", nil
	case operators.OperatorIsNull:
		return "= null", nil
	case operators.OperatorIsNotNull:
		return "!= null", nil
	}
	return d.BaseDialect.Operator(op)
}

func (d *Dialect) Literal(value any) (string, error) {
	if value == nil {
		return "null", nil
	}
	return d.BaseDialect.Literal(value)
}

func (*Dialect) Paging(skip, take string, _ bool) (string, string) {
	switch {
	case skip == "" && take == "":
		return "", ""
	case skip == "":
		return "TOP " + take, ""
	case take == "":
		return "", " OFFSET " + skip + " LIMIT " + maxLimit
	}
	return "", " OFFSET " + skip + " LIMIT " + take
}

func (*Dialect) TableSource(table, _, alias string) string {
	return table + " " + alias
}

func (*Dialect) Column(alias string, path []string) string {
	var b strings.Builder
	b.WriteString(alias)
	for _, name := range path {
		b.WriteString(`["`)
		b.WriteString(name)
		b.WriteString(`"]`)
	}
	return b.String()
}

func (*Dialect) EmbeddedSource(source, alias string) string {
	return alias + " IN " + source
}

func (*Dialect) Exists(alias, from, predicate string) string {
	s := "EXISTS (SELECT VALUE " + alias + " FROM " + from
	if predicate != "" {
		s += " WHERE " + predicate
	}
	return s + ")"
}
