package sqlserver

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/krew-solutions/ascetic-orm-go/asceticorm/metadata"
	q "github.com/krew-solutions/ascetic-orm-go/asceticorm/query/domain"
	"github.com/krew-solutions/ascetic-orm-go/asceticorm/query/domain/jsonpath"
	query "github.com/krew-solutions/ascetic-orm-go/asceticorm/query/infrastructure"
)

var jsonFunctions = map[string]string{
	"JsonValue": "JSON_VALUE",
	"JsonQuery": "JSON_QUERY",
}

// JsonFunctionsTranslator translates the JsonValue and JsonQuery markers.
type JsonFunctionsTranslator struct {
	factory *query.SqlExpressionFactory
}

func NewJsonFunctionsTranslator(factory *query.SqlExpressionFactory) *JsonFunctionsTranslator {
	return &JsonFunctionsTranslator{factory: factory}
}

func (t *JsonFunctionsTranslator) Translate(
	_ q.Visitable, method q.Method, arguments []q.Visitable, logger logrus.FieldLogger,
) (q.Visitable, error) {
	if !method.IsDbFunction() {
		return nil, nil
	}
	name, ok := jsonFunctions[method.Name]
	if !ok {
		return nil, nil
	}
	if len(arguments) != 2 {
		return nil, errors.Errorf("%s takes an expression and a path, got %d arguments", method, len(arguments))
	}
	expression, path := arguments[0], arguments[1]
	if v, ok := path.(q.ValueNode); ok {
		text, isString := v.Value().(string)
		if !isString {
			return nil, errors.Errorf("%s path must be a string, got %T", method, v.Value())
		}
		if _, err := jsonpath.Parse(text); err != nil {
			return nil, errors.Wrap(err, method.String())
		}
	}
	if logger != nil {
		logger.WithField("function", name).Debug("translated json function")
	}
	return t.factory.Function(
		name,
		[]q.Visitable{expression, t.factory.ApplyMappingOf(expression, path)},
		true,
		[]bool{false, false},
		metadata.TypeString,
	), nil
}
