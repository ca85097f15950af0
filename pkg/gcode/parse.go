package gcode

import (
	"math"
	"strconv"
	"strings"
)

// DepositEpsilon is the smallest extruder advance that counts as laying down
// material.
const DepositEpsilon = 1e-5

// Parser folds lines into commands, carrying the machine state from one line
// to the next. The zero value is not usable; use NewParser.
type Parser struct {
	state      State
	feature    Feature
	lastMotion Code
	line       int

	// Epsilon is the deposit threshold.
	Epsilon float64
}

func NewParser() *Parser {
	return NewParserAt(Initial())
}

// NewParserAt returns a parser that continues from a known state.
func NewParserAt(s State) *Parser {
	return &Parser{
		state:   s,
		Epsilon: DepositEpsilon,
	}
}

// State returns the machine state after the last parsed line.
func (p *Parser) State() State {
	return p.state
}

// Parse parses every line with a fresh parser.
func Parse(lines []string) []Command {
	return NewParser().Parse(lines)
}

func (p *Parser) Parse(lines []string) []Command {
	commands := make([]Command, 0, len(lines))
	for _, line := range lines {
		commands = append(commands, p.ParseLine(line))
	}
	return commands
}

// ParseLine parses one line. It never fails: tokens it cannot read are kept
// in Params.Opaque.
func (p *Parser) ParseLine(text string) Command {
	p.line++
	if f, ok := FeatureTag(text); ok {
		p.feature = f
	}

	cmd := Command{
		Text:    text,
		Line:    p.line,
		Feature: p.feature,
		Before:  p.state,
		After:   p.state,
	}

	fields := strings.Fields(stripComments(text))
	if len(fields) == 0 {
		return cmd
	}

	head := strings.ToUpper(fields[0])
	rest := fields[1:]
	if isAxisWord(head) {
		// "X10 Y5" repeats the last motion code.
		if p.lastMotion == CodeNone {
			cmd.Code = CodeOther
		} else {
			cmd.Code = p.lastMotion
		}
		rest = fields
	} else {
		cmd.Code, cmd.Token = lookupCode(head)
	}

	for _, tok := range rest {
		parseWord(&cmd.Params, tok)
	}

	if cmd.Code.IsMotion() {
		p.lastMotion = cmd.Code
		cmd.Relative = p.state.Relative && cmd.Params.HasAxis()
		cmd.Depositing = p.deposits(&cmd)
	}

	p.state = p.state.Apply(&cmd)
	cmd.After = p.state
	return cmd
}

func (p *Parser) deposits(cmd *Command) bool {
	if cmd.Code == CodeRapid || !cmd.Params.E.OK {
		return false
	}
	e := cmd.Params.E.V
	if p.state.ExtrusionRelative() {
		return e > p.Epsilon
	}
	last := 0.0
	if p.state.E.OK {
		last = p.state.E.V
	}
	return e > last+p.Epsilon
}

// stripComments drops the ';' tail and any parenthesized comments.
func stripComments(text string) string {
	if i := strings.IndexByte(text, ';'); i >= 0 {
		text = text[:i]
	}
	if strings.IndexByte(text, '(') < 0 {
		return text
	}
	var b strings.Builder
	depth := 0
	for _, r := range text {
		switch {
		case r == '(':
			depth++
		case r == ')' && depth > 0:
			depth--
		case depth == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isAxisWord(tok string) bool {
	if len(tok) < 2 || !strings.ContainsRune("XYZEIJK", rune(tok[0])) {
		return false
	}
	_, ok := parseNumber(tok[1:])
	return ok
}

func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// lookupCode maps a command token such as "G01" or "m107" to its Code.
func lookupCode(tok string) (Code, string) {
	if len(tok) >= 2 && (tok[0] == 'G' || tok[0] == 'M') {
		if n, err := strconv.Atoi(tok[1:]); err == nil && n >= 0 {
			if code, ok := codeNames[tok[:1]+strconv.Itoa(n)]; ok {
				return code, tok
			}
		}
	}
	return CodeOther, tok
}

func parseWord(params *Params, tok string) {
	r := rune(tok[0])
	if r >= 'a' && r <= 'z' {
		r -= 'a' - 'A'
	}
	if r < 'A' || r > 'Z' {
		params.Opaque = append(params.Opaque, tok)
		return
	}
	if len(tok) == 1 {
		params.Flags = append(params.Flags, r)
		return
	}
	v, ok := parseNumber(tok[1:])
	if !ok {
		params.Opaque = append(params.Opaque, tok)
		return
	}
	params.set(r, v)
}
