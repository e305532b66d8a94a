package query

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/krew-solutions/ascetic-orm-go/asceticorm/metadata"
	q "github.com/krew-solutions/ascetic-orm-go/asceticorm/query/domain"
)

// MethodCallTranslator maps a recognized method call onto a store
// expression. It returns nil, nil for methods it doesn't handle.
type MethodCallTranslator interface {
	Translate(instance q.Visitable, method q.Method, arguments []q.Visitable, logger logrus.FieldLogger) (q.Visitable, error)
}

type MethodCallTranslatorFunc func(instance q.Visitable, method q.Method, arguments []q.Visitable, logger logrus.FieldLogger) (q.Visitable, error)

func (f MethodCallTranslatorFunc) Translate(instance q.Visitable, method q.Method, arguments []q.Visitable, logger logrus.FieldLogger) (q.Visitable, error) {
	return f(instance, method, arguments, logger)
}

// TranslationError is returned for calls no translator handles.
type TranslationError struct {
	Method q.Method
}

func (e *TranslationError) Error() string {
	return fmt.Sprintf("The function '%s' could not be translated", e.Method.Name)
}

// MethodCallTranslatorProvider asks its translators in order.
type MethodCallTranslatorProvider struct {
	translators []MethodCallTranslator
}

func NewMethodCallTranslatorProvider(translators ...MethodCallTranslator) *MethodCallTranslatorProvider {
	return &MethodCallTranslatorProvider{translators: translators}
}

func (p *MethodCallTranslatorProvider) Translate(instance q.Visitable, method q.Method, arguments []q.Visitable, logger logrus.FieldLogger) (q.Visitable, error) {
	for _, t := range p.translators {
		result, err := t.Translate(instance, method, arguments, logger)
		if err != nil {
			return nil, err
		}
		if result != nil {
			return result, nil
		}
	}
	return nil, &TranslationError{Method: method}
}

// SqlExpressionFactory builds store expressions with type mappings.
type SqlExpressionFactory struct {
	mappings metadata.TypeMappingSource
}

func NewSqlExpressionFactory(mappings metadata.TypeMappingSource) *SqlExpressionFactory {
	return &SqlExpressionFactory{mappings: mappings}
}

func (f *SqlExpressionFactory) FindMapping(typeName string) *metadata.TypeMapping {
	if f.mappings == nil || typeName == "" {
		return nil
	}
	return f.mappings.FindMapping(typeName)
}

// ApplyTypeMapping sets the mapping of values and parameters which have
// none yet. Other nodes are returned unchanged.
func (f *SqlExpressionFactory) ApplyTypeMapping(n q.Visitable, m *metadata.TypeMapping) q.Visitable {
	if m == nil {
		return n
	}
	switch t := n.(type) {
	case q.ValueNode:
		if t.TypeMapping() == nil {
			return t.WithTypeMapping(m)
		}
	case q.ParameterNode:
		if t.TypeMapping() == nil {
			return t.WithTypeMapping(m)
		}
	}
	return n
}

// ApplyDefaultTypeMapping maps n by its own type.
func (f *SqlExpressionFactory) ApplyDefaultTypeMapping(n q.Visitable) q.Visitable {
	if q.MappingOf(n) != nil {
		return n
	}
	return f.ApplyTypeMapping(n, f.FindMapping(q.TypeNameOfNode(n)))
}

// InferTypeMapping returns the mapping of the first argument which has one.
func InferTypeMapping(nodes ...q.Visitable) *metadata.TypeMapping {
	for _, n := range nodes {
		if m := q.MappingOf(n); m != nil {
			return m
		}
	}
	return nil
}

// ApplyMappingOf maps arg like source when both are of the same type and
// by its own type otherwise.
func (f *SqlExpressionFactory) ApplyMappingOf(source, arg q.Visitable) q.Visitable {
	sourceMapping := q.MappingOf(source)
	if sourceMapping != nil && q.TypeNameOfNode(source) == q.TypeNameOfNode(arg) {
		return f.ApplyTypeMapping(arg, sourceMapping)
	}
	return f.ApplyDefaultTypeMapping(arg)
}

func (f *SqlExpressionFactory) Function(
	name string,
	args []q.Visitable,
	nullable bool,
	argumentsPropagateNullability []bool,
	typeName string,
) q.FunctionNode {
	return q.Function(name, args, nullable, argumentsPropagateNullability, typeName, f.FindMapping(typeName))
}

// StringFunctionNames are the store names of the string functions.
type StringFunctionNames struct {
	Upper  string
	Lower  string
	Length string
	Trim   string
}

// StringMethodTranslator translates string methods of the strings package
// and the Upper, Lower and Length markers.
type StringMethodTranslator struct {
	factory *SqlExpressionFactory
	names   StringFunctionNames
}

func NewStringMethodTranslator(factory *SqlExpressionFactory, names StringFunctionNames) *StringMethodTranslator {
	return &StringMethodTranslator{factory: factory, names: names}
}

func (t *StringMethodTranslator) Translate(instance q.Visitable, method q.Method, arguments []q.Visitable, logger logrus.FieldLogger) (q.Visitable, error) {
	args := arguments
	if instance != nil {
		args = append([]q.Visitable{instance}, arguments...)
	}
	switch method.String() {
	case "strings.ToUpper", "DbFunctions.Upper":
		return t.unary(t.names.Upper, args, metadata.TypeString), nil
	case "strings.ToLower", "DbFunctions.Lower":
		return t.unary(t.names.Lower, args, metadata.TypeString), nil
	case "strings.TrimSpace", "DbFunctions.Trim":
		return t.unary(t.names.Trim, args, metadata.TypeString), nil
	case "len", "DbFunctions.Length":
		if len(args) == 1 && q.TypeNameOfNode(args[0]) == metadata.TypeString {
			return t.unary(t.names.Length, args, metadata.TypeInt), nil
		}
	case "strings.Contains":
		return t.like(args, true, true), nil
	case "strings.HasPrefix":
		return t.like(args, false, true), nil
	case "strings.HasSuffix":
		return t.like(args, true, false), nil
	}
	return nil, nil
}

func (t *StringMethodTranslator) unary(name string, args []q.Visitable, typeName string) q.Visitable {
	if name == "" || len(args) != 1 {
		return nil
	}
	return t.factory.Function(name, []q.Visitable{args[0]}, true, []bool{true}, typeName)
}

// like matches the pattern argument literally. Literal patterns are escaped
// here, other patterns by the store.
func (t *StringMethodTranslator) like(args []q.Visitable, leading, trailing bool) q.Visitable {
	if len(args) != 2 {
		return nil
	}
	var pattern q.Visitable
	if v, ok := args[1].(q.ValueNode); ok {
		text, isString := v.Value().(string)
		if !isString {
			return nil
		}
		text = EscapeLikePattern(text)
		if leading {
			text = "%" + text
		}
		if trailing {
			text += "%"
		}
		pattern = t.factory.ApplyMappingOf(args[0], q.Value(text))
	} else {
		pattern = t.escapeLike(t.factory.ApplyMappingOf(args[0], args[1]))
		if leading {
			pattern = q.Concat(q.Value("%"), pattern)
		}
		if trailing {
			pattern = q.Concat(pattern, q.Value("%"))
		}
	}
	return q.Like(args[0], q.Escape(pattern, q.Value(LikeEscapeCharacter)))
}

func (t *StringMethodTranslator) escapeLike(n q.Visitable) q.Visitable {
	for _, r := range likeEscapes {
		n = t.factory.Function("REPLACE", []q.Visitable{n, q.Value(r[0]), q.Value(r[1])},
			true, []bool{true, false, false}, metadata.TypeString)
	}
	return n
}

const LikeEscapeCharacter = `\`

// likeEscapes are applied in order, the escape character first.
var likeEscapes = [][2]string{
	{`\`, `\\`},
	{`%`, `\%`},
	{`_`, `\_`},
}

// EscapeLikePattern escapes the LIKE wildcards and the escape character.
func EscapeLikePattern(s string) string {
	for _, r := range likeEscapes {
		s = strings.ReplaceAll(s, r[0], r[1])
	}
	return s
}
