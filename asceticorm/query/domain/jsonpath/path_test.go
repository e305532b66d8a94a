package jsonpath

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cases := []struct {
		path    string
		strict  bool
		gjson   string
		printed string
	}{
		{"$", false, "@this", "$"},
		{"$.Address.City", false, "Address.City", "$.Address.City"},
		{"$.Lines[0].Sku", false, "Lines.0.Sku", "$.Lines[0].Sku"},
		{`$["first name"]`, false, `first name`, `$."first name"`},
		{"strict $.a.b", true, "a.b", "strict $.a.b"},
		{"lax $.a", false, "a", "$.a"},
		{`$."a.b"`, false, `a\.b`, `$."a.b"`},
	}
	for _, c := range cases {
		t.Run(c.path, func(t *testing.T) {
			p, err := Parse(c.path)
			require.NoError(t, err)
			assert.Equal(t, c.strict, p.Strict)
			assert.Equal(t, c.gjson, p.GJSON())
			assert.Equal(t, c.printed, p.String())
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, path := range []string{"", "a.b", "$.", "$[0", "$.[1]", "$.a+b", "$[x]"} {
		t.Run(path, func(t *testing.T) {
			_, err := Parse(path)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidPath))
		})
	}
}

func TestTokenize(t *testing.T) {
	tokens, err := Tokenize("$.a[1]")
	require.NoError(t, err)
	types := make([]TokenType, len(tokens))
	for i, tok := range tokens {
		types[i] = tok.Type
	}
	assert.Equal(t, []TokenType{TokenDollar, TokenDot, TokenIdentifier, TokenLBracket, TokenNumber, TokenRBracket}, types)
}
