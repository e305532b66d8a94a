package sqlite

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/krew-solutions/ascetic-orm-go/asceticorm/metadata"
	q "github.com/krew-solutions/ascetic-orm-go/asceticorm/query/domain"
	"github.com/krew-solutions/ascetic-orm-go/asceticorm/query/domain/jsonpath"
	query "github.com/krew-solutions/ascetic-orm-go/asceticorm/query/infrastructure"
)

// JsonFunctionsTranslator translates JsonExtract(expression, paths...) to
// json_extract.
type JsonFunctionsTranslator struct {
	factory *query.SqlExpressionFactory
}

func NewJsonFunctionsTranslator(factory *query.SqlExpressionFactory) *JsonFunctionsTranslator {
	return &JsonFunctionsTranslator{factory: factory}
}

func (t *JsonFunctionsTranslator) Translate(
	_ q.Visitable, method q.Method, arguments []q.Visitable, _ logrus.FieldLogger,
) (q.Visitable, error) {
	if !method.IsDbFunction() || method.Name != "JsonExtract" {
		return nil, nil
	}
	if len(arguments) < 2 {
		return nil, errors.Errorf("%s takes an expression and at least one path", method)
	}
	expression := arguments[0]
	args := []q.Visitable{expression}
	for _, path := range arguments[1:] {
		if v, ok := path.(q.ValueNode); ok {
			text, _ := v.Value().(string)
			if _, err := jsonpath.Parse(text); err != nil {
				return nil, errors.Wrap(err, method.String())
			}
		}
		args = append(args, t.factory.ApplyMappingOf(expression, path))
	}
	return t.factory.Function("json_extract", args, true, make([]bool, len(args)), metadata.TypeString), nil
}

// FunctionsTranslator translates the Glob, Hex and Substr markers.
type FunctionsTranslator struct {
	factory *query.SqlExpressionFactory
}

func NewFunctionsTranslator(factory *query.SqlExpressionFactory) *FunctionsTranslator {
	return &FunctionsTranslator{factory: factory}
}

func (t *FunctionsTranslator) Translate(
	_ q.Visitable, method q.Method, arguments []q.Visitable, _ logrus.FieldLogger,
) (q.Visitable, error) {
	if !method.IsDbFunction() {
		return nil, nil
	}
	switch method.Name {
	case "Glob":
		if len(arguments) != 2 {
			return nil, errors.Errorf("%s takes a value and a pattern", method)
		}
		match := arguments[0]
		pattern := t.factory.ApplyMappingOf(match, arguments[1])
		// glob takes the pattern first
		return t.factory.Function("glob", []q.Visitable{pattern, match}, true, []bool{true, true}, metadata.TypeBool), nil
	case "Hex":
		if len(arguments) != 1 {
			return nil, errors.Errorf("%s takes one argument", method)
		}
		return t.factory.Function("hex", arguments, true, []bool{true}, metadata.TypeString), nil
	case "Substr":
		if len(arguments) != 2 && len(arguments) != 3 {
			return nil, errors.Errorf("%s takes a value, a start and an optional length", method)
		}
		args := []q.Visitable{arguments[0]}
		for _, a := range arguments[1:] {
			args = append(args, t.factory.ApplyDefaultTypeMapping(a))
		}
		propagate := make([]bool, len(args))
		for i := range propagate {
			propagate[i] = true
		}
		typeName := q.TypeNameOfNode(arguments[0])
		if typeName == "" {
			typeName = metadata.TypeBytes
		}
		return t.factory.Function("substr", args, true, propagate, typeName), nil
	}
	return nil, nil
}
