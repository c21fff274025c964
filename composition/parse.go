package composition

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ErrInvalidFormula is returned when a raw formula cannot be normalised.
var ErrInvalidFormula = errors.New("composition: invalid formula")

var hydrateSeparators = strings.NewReplacer("·", "*", "•", "*", "⋅", "*", "∙", "*")

var closers = map[byte]byte{'(': ')', '[': ']', '{': '}'}

// Parse normalises a raw formula such as "Fe2O3", "Ca(OH)2", "Li0.5CoO2",
// "CuSO4·5H2O" or "H₂O" into a Composition. Input is NFKC-normalised first so
// that subscript and full-width digits are accepted.
func Parse(raw string) (Composition, error) {
	s := strings.TrimSpace(hydrateSeparators.Replace(norm.NFKC.String(raw)))
	if s == "" {
		return Composition{}, fmt.Errorf("%w: empty input", ErrInvalidFormula)
	}
	counts := make(map[string]float64)
	for _, part := range strings.Split(s, "*") {
		p := &parser{s: strings.TrimSpace(part)}
		if p.s == "" {
			return Composition{}, fmt.Errorf("%w: empty group in %q", ErrInvalidFormula, raw)
		}
		mult, _, err := p.number()
		if err != nil {
			return Composition{}, err
		}
		if err := p.formula(counts, mult, 0); err != nil {
			return Composition{}, fmt.Errorf("%w (input %q)", err, raw)
		}
	}
	return New(counts)
}

// MustParse is like Parse but panics on error. Intended for tests and
// static tables.
func MustParse(raw string) Composition {
	c, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return c
}

type parser struct {
	s   string
	pos int
}

func (p *parser) formula(counts map[string]float64, mult float64, closing byte) error {
	for p.pos < len(p.s) {
		c := p.s[p.pos]
		switch {
		case c == ' ':
			p.pos++
		case c == '(' || c == '[' || c == '{':
			p.pos++
			inner := make(map[string]float64)
			if err := p.formula(inner, 1, closers[c]); err != nil {
				return err
			}
			n, _, err := p.number()
			if err != nil {
				return err
			}
			for el, v := range inner {
				counts[el] += v * n * mult
			}
		case c == ')' || c == ']' || c == '}':
			if c != closing {
				return fmt.Errorf("%w: unexpected %q at %d", ErrInvalidFormula, c, p.pos)
			}
			p.pos++
			return nil
		case c >= 'A' && c <= 'Z':
			start := p.pos
			p.pos++
			if p.pos < len(p.s) && p.s[p.pos] >= 'a' && p.s[p.pos] <= 'z' {
				p.pos++
			}
			el := p.s[start:p.pos]
			if _, ok := AtomicNumber(el); !ok {
				return fmt.Errorf("%w: unknown element %q", ErrInvalidFormula, el)
			}
			n, _, err := p.number()
			if err != nil {
				return err
			}
			counts[el] += n * mult
		default:
			return fmt.Errorf("%w: unexpected %q at %d", ErrInvalidFormula, c, p.pos)
		}
	}
	if closing != 0 {
		return fmt.Errorf("%w: missing %q", ErrInvalidFormula, closing)
	}
	return nil
}

// number consumes an optional decimal amount; absent amounts count as 1.
func (p *parser) number() (float64, bool, error) {
	start := p.pos
	for p.pos < len(p.s) && (p.s[p.pos] >= '0' && p.s[p.pos] <= '9' || p.s[p.pos] == '.') {
		p.pos++
	}
	if start == p.pos {
		return 1, false, nil
	}
	v, err := strconv.ParseFloat(p.s[start:p.pos], 64)
	if err != nil {
		return 0, false, fmt.Errorf("%w: bad amount %q", ErrInvalidFormula, p.s[start:p.pos])
	}
	return v, true, nil
}
