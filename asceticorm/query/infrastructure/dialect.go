package query

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/krew-solutions/ascetic-orm-go/asceticorm/metadata"
	q "github.com/krew-solutions/ascetic-orm-go/asceticorm/query/domain"
	"github.com/krew-solutions/ascetic-orm-go/asceticorm/query/domain/operators"
)

var (
	ErrTemporalNotSupported = errors.New("temporal queries are not supported by this provider")
	ErrOperatorNotSupported = errors.New("operator is not supported by this provider")
)

type PlaceholderStyle int

const (
	// PlaceholderNamed renders @name.
	PlaceholderNamed PlaceholderStyle = iota
	// PlaceholderOrdinal renders ? for every occurrence.
	PlaceholderOrdinal
	// PlaceholderNumbered renders $n, one number per parameter.
	PlaceholderNumbered
)

// Dialect renders the store specific parts of a statement.
type Dialect interface {
	Name() string
	QuoteIdentifier(name string) string
	PlaceholderStyle() PlaceholderStyle
	Placeholder(name string, number int) string
	Operator(op operators.Operator) (string, error)
	BooleanLiteral(value bool) string
	Literal(value any) (string, error)
	// Paging returns the text following SELECT and the text closing the
	// statement. skip and take are rendered placeholders or "".
	Paging(skip, take string, ordered bool) (afterSelect, suffix string)
	SupportsTemporal() bool
	TemporalClause(op q.TemporalOperation, args []string) (string, error)
	// TableSource renders a FROM or JOIN item.
	TableSource(table, temporalClause, alias string) string
	Column(alias string, path []string) string
	// EmbeddedSource renders the row source of an embedded collection
	// stored in source.
	EmbeddedSource(source, alias string) string
	EmbeddedField(alias string, path []string, mapping *metadata.TypeMapping) string
	Exists(alias, from, predicate string) string
	// RequiresPredicateComparison reports whether bare boolean operands of
	// search conditions must be compared with TRUE.
	RequiresPredicateComparison() bool
	IsDocument() bool
}

// BaseDialect renders ANSI SQL. Providers embed it, set the rendering
// functions their store needs and override the methods it does
// differently.
type BaseDialect struct {
	// Quote quotes identifiers. Double quotes are used when nil.
	Quote func(string) string
	// Boolean renders boolean literals. TRUE and FALSE are used when nil.
	Boolean func(bool) string
	// Text renders string literals. QuoteString is used when nil.
	Text func(string) string
}

func (BaseDialect) Name() string {
	return "ansi"
}

func (d BaseDialect) QuoteIdentifier(name string) string {
	if d.Quote != nil {
		return d.Quote(name)
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (BaseDialect) PlaceholderStyle() PlaceholderStyle {
	return PlaceholderNamed
}

func (BaseDialect) Placeholder(name string, _ int) string {
	return "@" + name
}

func (BaseDialect) Operator(op operators.Operator) (string, error) {
	switch op {
	case operators.OperatorNe:
		return "<>", nil
	case operators.OperatorPos:
		return "+", nil
	case operators.OperatorNeg:
		return "-", nil
	}
	return string(op), nil
}

func (d BaseDialect) BooleanLiteral(value bool) string {
	if d.Boolean != nil {
		return d.Boolean(value)
	}
	if value {
		return "TRUE"
	}
	return "FALSE"
}

func (d BaseDialect) Literal(value any) (string, error) {
	text := d.Text
	if text == nil {
		text = QuoteString
	}
	return FormatLiteral(value, d.BooleanLiteral, text)
}

func (BaseDialect) Paging(skip, take string, _ bool) (string, string) {
	var suffix string
	if take != "" {
		suffix += " LIMIT " + take
	}
	if skip != "" {
		suffix += " OFFSET " + skip
	}
	return "", suffix
}

func (BaseDialect) SupportsTemporal() bool {
	return false
}

func (BaseDialect) TemporalClause(op q.TemporalOperation, _ []string) (string, error) {
	return "", errors.Wrap(ErrTemporalNotSupported, op.String())
}

func (d BaseDialect) TableSource(table, temporalClause, alias string) string {
	s := d.QuoteIdentifier(table)
	if temporalClause != "" {
		s += " " + temporalClause
	}
	return s + " AS " + d.QuoteIdentifier(alias)
}

func (d BaseDialect) Column(alias string, path []string) string {
	return d.QuoteIdentifier(alias) + "." + d.QuoteIdentifier(strings.Join(path, "_"))
}

func (d BaseDialect) EmbeddedSource(source, alias string) string {
	return "json_each(" + source + ") AS " + d.QuoteIdentifier(alias)
}

func (d BaseDialect) EmbeddedField(alias string, path []string, _ *metadata.TypeMapping) string {
	return "json_extract(" + d.QuoteIdentifier(alias) + ".value, " + QuoteString("$."+strings.Join(path, ".")) + ")"
}

func (BaseDialect) Exists(_, from, predicate string) string {
	s := "EXISTS (SELECT 1 FROM " + from
	if predicate != "" {
		s += " WHERE " + predicate
	}
	return s + ")"
}

func (BaseDialect) RequiresPredicateComparison() bool {
	return false
}

func (BaseDialect) IsDocument() bool {
	return false
}

// QuoteString renders a string literal with doubled quotes.
func QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// FormatLiteral renders common scalar values as SQL literals.
func FormatLiteral(value any, boolean func(bool) string, quote func(string) string) (string, error) {
	switch v := value.(type) {
	case nil:
		return "NULL", nil
	case bool:
		return boolean(v), nil
	case string:
		return quote(v), nil
	case int:
		return strconv.Itoa(v), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case time.Time:
		return quote(v.UTC().Format("2006-01-02 15:04:05.999999")), nil
	case []byte:
		return "X'" + strings.ToUpper(hex.EncodeToString(v)) + "'", nil
	case uuid.UUID:
		return quote(v.String()), nil
	case fmt.Stringer:
		return quote(v.String()), nil
	}
	return "", errors.Errorf("no literal representation for %T", value)
}
