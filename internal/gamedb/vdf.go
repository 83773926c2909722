package gamedb

import (
	"fmt"
	"strings"
)

// vdfNode is a Valve KeyValues object. Values are strings or nested nodes.
type vdfNode map[string]any

func (n vdfNode) node(key string) vdfNode {
	for k, v := range n {
		if strings.EqualFold(k, key) {
			if child, ok := v.(vdfNode); ok {
				return child
			}
		}
	}
	return nil
}

func (n vdfNode) str(key string) string {
	for k, v := range n {
		if strings.EqualFold(k, key) {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}

// parseVDF decodes the text KeyValues format used by Steam's .vdf and .acf files
func parseVDF(data string) (vdfNode, error) {
	tokens, err := tokenizeVDF(data)
	if err != nil {
		return nil, err
	}
	p := &vdfParser{tokens: tokens}
	root, err := p.object(false)
	if err != nil {
		return nil, err
	}
	return root, nil
}

type vdfToken struct {
	text   string
	quoted bool
}

func (t vdfToken) is(brace string) bool {
	return !t.quoted && t.text == brace
}

func tokenizeVDF(data string) ([]vdfToken, error) {
	var tokens []vdfToken
	for i := 0; i < len(data); {
		c := data[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			i++
		case c == '/' && strings.HasPrefix(data[i:], "//"):
			for i < len(data) && data[i] != '\n' {
				i++
			}
		case c == '{' || c == '}':
			tokens = append(tokens, vdfToken{text: string(c)})
			i++
		case c == '"':
			var sb strings.Builder
			i++
			for ; i < len(data) && data[i] != '"'; i++ {
				if data[i] == '\\' && i+1 < len(data) {
					i++
					switch data[i] {
					case 'n':
						sb.WriteByte('\n')
					case 't':
						sb.WriteByte('\t')
					default:
						sb.WriteByte(data[i])
					}
					continue
				}
				sb.WriteByte(data[i])
			}
			if i >= len(data) {
				return nil, fmt.Errorf("vdf: unterminated string")
			}
			i++
			tokens = append(tokens, vdfToken{text: sb.String(), quoted: true})
		default:
			start := i
			for i < len(data) && !strings.ContainsRune(" \t\r\n{}\"", rune(data[i])) {
				i++
			}
			tokens = append(tokens, vdfToken{text: data[start:i]})
		}
	}
	return tokens, nil
}

type vdfParser struct {
	tokens []vdfToken
	pos    int
}

// object reads key/value pairs up to the closing brace, or to the end of input at top level
func (p *vdfParser) object(nested bool) (vdfNode, error) {
	out := vdfNode{}
	for p.pos < len(p.tokens) {
		key := p.tokens[p.pos]
		p.pos++
		if key.is("}") {
			if !nested {
				return nil, fmt.Errorf("vdf: unexpected '}'")
			}
			return out, nil
		}
		if key.is("{") {
			return nil, fmt.Errorf("vdf: unexpected '{'")
		}
		if p.pos >= len(p.tokens) {
			return nil, fmt.Errorf("vdf: missing value for %q", key.text)
		}

		value := p.tokens[p.pos]
		p.pos++
		if value.is("{") {
			child, err := p.object(true)
			if err != nil {
				return nil, err
			}
			out[key.text] = child
			continue
		}
		if value.is("}") {
			return nil, fmt.Errorf("vdf: missing value for %q", key.text)
		}
		out[key.text] = value.text
	}
	if nested {
		return nil, fmt.Errorf("vdf: unexpected end of input")
	}
	return out, nil
}
