package sqlserver

import (
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/krew-solutions/ascetic-orm-go/asceticorm/metadata"
	q "github.com/krew-solutions/ascetic-orm-go/asceticorm/query/domain"
	"github.com/krew-solutions/ascetic-orm-go/asceticorm/query/domain/operators"
	query "github.com/krew-solutions/ascetic-orm-go/asceticorm/query/infrastructure"
)

// Dialect renders Transact-SQL.
type Dialect struct {
	query.BaseDialect
}

func NewDialect() *Dialect {
	return &Dialect{
		BaseDialect: query.BaseDialect{
			Quote:   quote,
			Boolean: boolean,
			Text:    text,
		},
	}
}

func quote(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func boolean(value bool) string {
	if value {
		return "CAST(1 AS bit)"
	}
	return "CAST(0 AS bit)"
}

func text(s string) string {
	return "N" + query.QuoteString(s)
}

func (*Dialect) Name() string {
	return "sqlserver"
}

func (d *Dialect) Operator(op operators.Operator) (string, error) {
	if op == operators.OperatorConcat {
		return "+", nil
	}
	return d.BaseDialect.Operator(op)
}

func (d *Dialect) Literal(value any) (string, error) {
	if t, ok := value.(time.Time); ok {
		return "'" + t.UTC().Format("2006-01-02T15:04:05.0000000") + "'", nil
	}
	return d.BaseDialect.Literal(value)
}

// Paging uses TOP when only take is set and OFFSET FETCH otherwise, which
// requires an ORDER BY.
func (*Dialect) Paging(skip, take string, ordered bool) (string, string) {
	if skip == "" {
		if take == "" {
			return "", ""
		}
		return "TOP(" + take + ")", ""
	}
	var suffix string
	if !ordered {
		suffix = " ORDER BY (SELECT 1)"
	}
	suffix += " OFFSET " + skip + " ROWS"
	if take != "" {
		suffix += " FETCH NEXT " + take + " ROWS ONLY"
	}
	return "", suffix
}

func (*Dialect) SupportsTemporal() bool {
	return true
}

func (*Dialect) TemporalClause(op q.TemporalOperation, args []string) (string, error) {
	switch t := op.(type) {
	case q.AsOf:
		if len(args) != 1 {
			return "", errors.Errorf("%s needs one argument", t)
		}
		return "FOR SYSTEM_TIME AS OF " + args[0], nil
	case q.Range:
		if len(args) != 2 {
			return "", errors.Errorf("%s needs two arguments", t)
		}
		switch t.RangeKind {
		case q.TemporalFromTo:
			return "FOR SYSTEM_TIME FROM " + args[0] + " TO " + args[1], nil
		case q.TemporalBetween:
			return "FOR SYSTEM_TIME BETWEEN " + args[0] + " AND " + args[1], nil
		case q.TemporalContainedIn:
			return "FOR SYSTEM_TIME CONTAINED IN (" + args[0] + ", " + args[1] + ")", nil
		}
	case q.All:
		return "FOR SYSTEM_TIME ALL", nil
	}
	return "", errors.Wrap(query.ErrTemporalNotSupported, op.String())
}

func (d *Dialect) EmbeddedSource(source, alias string) string {
	return "OPENJSON(" + source + ") AS " + d.QuoteIdentifier(alias)
}

func (d *Dialect) EmbeddedField(alias string, path []string, mapping *metadata.TypeMapping) string {
	value := "JSON_VALUE(" + d.QuoteIdentifier(alias) + ".[value], " +
		query.QuoteString("$."+strings.Join(path, ".")) + ")"
	if mapping == nil || mapping.Kind == metadata.KindString {
		return value
	}
	return "CAST(" + value + " AS " + mapping.String() + ")"
}

func (*Dialect) RequiresPredicateComparison() bool {
	return true
}

func (*Dialect) DeclareParameter(name, storeType, literal string) string {
	if storeType == "" {
		storeType = "sql_variant"
	}
	return "DECLARE @" + name + " " + storeType + " = " + literal + ";"
}
