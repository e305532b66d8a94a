// Package jsonpath parses the JSON path arguments of store JSON functions,
// such as '$.Address.City' or 'strict $.Lines[0].Sku'.
package jsonpath

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var ErrInvalidPath = errors.New("invalid JSON path")

type TokenType string

const (
	TokenMode       TokenType = "MODE"
	TokenDollar     TokenType = "DOLLAR"
	TokenDot        TokenType = "DOT"
	TokenLBracket   TokenType = "LBRACKET"
	TokenRBracket   TokenType = "RBRACKET"
	TokenNumber     TokenType = "NUMBER"
	TokenString     TokenType = "STRING"
	TokenIdentifier TokenType = "IDENTIFIER"
	TokenWhitespace TokenType = "WHITESPACE"
)

type Token struct {
	Type     TokenType
	Value    string
	Position int
}

func (t Token) String() string {
	return fmt.Sprintf("Token(%s, %q)", t.Type, t.Value)
}

type tokenPattern struct {
	Type    TokenType
	Pattern *regexp.Regexp
}

var patterns = []tokenPattern{
	{TokenMode, regexp.MustCompile(`^(lax|strict)\s`)},
	{TokenDollar, regexp.MustCompile(`^\$`)},
	{TokenDot, regexp.MustCompile(`^\.`)},
	{TokenLBracket, regexp.MustCompile(`^\[`)},
	{TokenRBracket, regexp.MustCompile(`^\]`)},
	{TokenNumber, regexp.MustCompile(`^\d+`)},
	{TokenString, regexp.MustCompile(`^'[^']*'|^"[^"]*"`)},
	{TokenIdentifier, regexp.MustCompile(`^[\p{L}_][\p{L}\p{N}_]*`)},
	{TokenWhitespace, regexp.MustCompile(`^\s+`)},
}

// Tokenize splits text into tokens. Whitespace is dropped.
func Tokenize(text string) ([]Token, error) {
	var tokens []Token
	position := 0
	for position < len(text) {
		remaining := text[position:]
		matched := false
		for _, pattern := range patterns {
			loc := pattern.Pattern.FindStringIndex(remaining)
			if loc == nil || loc[0] != 0 {
				continue
			}
			if pattern.Type != TokenWhitespace {
				tokens = append(tokens, Token{
					Type:     pattern.Type,
					Value:    strings.TrimSpace(remaining[:loc[1]]),
					Position: position,
				})
			}
			position += loc[1]
			matched = true
			break
		}
		if !matched {
			return nil, errors.Wrapf(ErrInvalidPath, "unexpected character at position %d: %c", position, text[position])
		}
	}
	return tokens, nil
}

type SegmentKind int

const (
	SegmentMember SegmentKind = iota
	SegmentIndex
)

type Segment struct {
	Kind  SegmentKind
	Name  string
	Index int
}

func (s Segment) String() string {
	if s.Kind == SegmentIndex {
		return "[" + strconv.Itoa(s.Index) + "]"
	}
	if isIdentifier(s.Name) {
		return "." + s.Name
	}
	return "." + strconv.Quote(s.Name)
}

type Path struct {
	Strict   bool
	Segments []Segment
}

// Parse parses a path of member and index accessors rooted at '$'.
func Parse(text string) (Path, error) {
	tokens, err := Tokenize(text)
	if err != nil {
		return Path{}, err
	}
	var p Path
	i := 0
	if i < len(tokens) && tokens[i].Type == TokenMode {
		p.Strict = tokens[i].Value == "strict"
		i++
	}
	if i >= len(tokens) || tokens[i].Type != TokenDollar {
		return Path{}, errors.Wrapf(ErrInvalidPath, "%q must start with '$'", text)
	}
	i++
	for i < len(tokens) {
		switch tokens[i].Type {
		case TokenDot:
			if i+1 >= len(tokens) {
				return Path{}, errors.Wrapf(ErrInvalidPath, "%q ends with '.'", text)
			}
			name := tokens[i+1]
			switch name.Type {
			case TokenIdentifier:
				p.Segments = append(p.Segments, Segment{Kind: SegmentMember, Name: name.Value})
			case TokenString:
				p.Segments = append(p.Segments, Segment{Kind: SegmentMember, Name: unquote(name.Value)})
			default:
				return Path{}, errors.Wrapf(ErrInvalidPath, "member name expected at position %d", name.Position)
			}
			i += 2
		case TokenLBracket:
			if i+2 >= len(tokens) || tokens[i+2].Type != TokenRBracket {
				return Path{}, errors.Wrapf(ErrInvalidPath, "unclosed '[' at position %d", tokens[i].Position)
			}
			inner := tokens[i+1]
			switch inner.Type {
			case TokenNumber:
				n, err := strconv.Atoi(inner.Value)
				if err != nil {
					return Path{}, errors.Wrap(ErrInvalidPath, err.Error())
				}
				p.Segments = append(p.Segments, Segment{Kind: SegmentIndex, Index: n})
			case TokenString:
				p.Segments = append(p.Segments, Segment{Kind: SegmentMember, Name: unquote(inner.Value)})
			default:
				return Path{}, errors.Wrapf(ErrInvalidPath, "index expected at position %d", inner.Position)
			}
			i += 3
		default:
			return Path{}, errors.Wrapf(ErrInvalidPath, "unexpected %s at position %d", tokens[i].Value, tokens[i].Position)
		}
	}
	return p, nil
}

func (p Path) String() string {
	var b strings.Builder
	if p.Strict {
		b.WriteString("strict ")
	}
	b.WriteString("$")
	for _, s := range p.Segments {
		b.WriteString(s.String())
	}
	return b.String()
}

// GJSON returns the path in gjson syntax. The root path is "@this".
func (p Path) GJSON() string {
	if len(p.Segments) == 0 {
		return "@this"
	}
	parts := make([]string, len(p.Segments))
	for i, s := range p.Segments {
		if s.Kind == SegmentIndex {
			parts[i] = strconv.Itoa(s.Index)
		} else {
			parts[i] = escapeGJSON(s.Name)
		}
	}
	return strings.Join(parts, ".")
}

func unquote(s string) string {
	return s[1 : len(s)-1]
}

var identifierPattern = regexp.MustCompile(`^[\p{L}_][\p{L}\p{N}_]*$`)

func isIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}

func escapeGJSON(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\', '!', '=', '<', '>', '%':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
