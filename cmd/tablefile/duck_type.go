package tablefile

import (
	"errors"
	"fmt"
	"strings"
)

type duckKind int

const (
	duckScalar duckKind = iota
	duckStruct
	duckMap
	duckList
)

// duckType is a parsed DuckDB data_type string such as
// "STRUCT(a INTEGER, b DOUBLE[])" or "MAP(VARCHAR, BIGINT)".
type duckType struct {
	Kind   duckKind
	Name   string
	Fields []duckMember
	Key    *duckType
	Elem   *duckType
}

type duckMember struct {
	Name string
	Type duckType
}

func (t duckType) String() string {
	switch t.Kind {
	case duckStruct:
		return "struct"
	case duckMap:
		return "map<" + t.Key.String() + "," + t.Elem.String() + ">"
	case duckList:
		return "vector<" + t.Elem.String() + ">"
	default:
		return t.Name
	}
}

func parseDuckType(s string) (duckType, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return duckType{}, errors.New("empty type")
	}

	// LIST and fixed size ARRAY types end with [] or [n].
	if strings.HasSuffix(s, "]") {
		open := matchingOpen(s, len(s)-1, '[', ']')
		if open <= 0 {
			return duckType{}, fmt.Errorf("malformed type %q", s)
		}
		elem, err := parseDuckType(s[:open])
		if err != nil {
			return duckType{}, err
		}
		return duckType{Kind: duckList, Elem: &elem}, nil
	}

	upper := strings.ToUpper(s)
	switch {
	case strings.HasPrefix(upper, "STRUCT("):
		members, err := splitArgs(s)
		if err != nil {
			return duckType{}, err
		}
		t := duckType{Kind: duckStruct}
		for _, member := range members {
			name, rest, err := splitMember(member)
			if err != nil {
				return duckType{}, err
			}
			mt, err := parseDuckType(rest)
			if err != nil {
				return duckType{}, err
			}
			t.Fields = append(t.Fields, duckMember{Name: name, Type: mt})
		}
		return t, nil
	case strings.HasPrefix(upper, "MAP("):
		args, err := splitArgs(s)
		if err != nil {
			return duckType{}, err
		}
		if len(args) != 2 {
			return duckType{}, fmt.Errorf("malformed type %q", s)
		}
		key, err := parseDuckType(args[0])
		if err != nil {
			return duckType{}, err
		}
		value, err := parseDuckType(args[1])
		if err != nil {
			return duckType{}, err
		}
		return duckType{Kind: duckMap, Key: &key, Elem: &value}, nil
	default:
		// DECIMAL(18,3) and friends keep their parameters.
		return duckType{Kind: duckScalar, Name: strings.ToLower(s)}, nil
	}
}

func argsOf(s string) (string, error) {
	open := strings.IndexByte(s, '(')
	if open < 0 || !strings.HasSuffix(s, ")") {
		return "", fmt.Errorf("malformed type %q", s)
	}
	return s[open+1 : len(s)-1], nil
}

// splitArgs splits the parenthesised argument list of s.
func splitArgs(s string) ([]string, error) {
	args, err := argsOf(s)
	if err != nil {
		return nil, err
	}
	return splitTopLevel(args)
}

// splitTopLevel splits on commas outside parentheses, brackets and quotes.
func splitTopLevel(s string) ([]string, error) {
	var (
		parts  []string
		depth  int
		quoted bool
		start  int
	)
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '"':
			quoted = !quoted
		case quoted:
		case c == '(' || c == '[':
			depth++
		case c == ')' || c == ']':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced type %q", s)
			}
		case c == ',' && depth == 0:
			parts = append(parts, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	if depth != 0 || quoted {
		return nil, fmt.Errorf("unbalanced type %q", s)
	}
	if rest := strings.TrimSpace(s[start:]); rest != "" {
		parts = append(parts, rest)
	}
	return parts, nil
}

// splitMember separates a struct member into its name and type. Names may
// be double-quoted with "" escaping an embedded quote.
func splitMember(member string) (string, string, error) {
	if !strings.HasPrefix(member, `"`) {
		name, rest, ok := strings.Cut(member, " ")
		if !ok {
			return "", "", fmt.Errorf("malformed struct member %q", member)
		}
		return name, rest, nil
	}

	var name strings.Builder
	for i := 1; i < len(member); i++ {
		if member[i] != '"' {
			name.WriteByte(member[i])
			continue
		}
		if i+1 < len(member) && member[i+1] == '"' {
			name.WriteByte('"')
			i++
			continue
		}
		return name.String(), strings.TrimSpace(member[i+1:]), nil
	}
	return "", "", fmt.Errorf("malformed struct member %q", member)
}

func matchingOpen(s string, end int, openChar, closeChar byte) int {
	depth := 0
	for i := end; i >= 0; i-- {
		switch s[i] {
		case closeChar:
			depth++
		case openChar:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
