package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Parser
// ---------------------------------------------------------------------------

// Parser builds a Program from a token list with a single forward cursor.
// No backtracking: every token is consumed into exactly one node or
// discarded as a delimiter.
type Parser struct {
	tokens []Token
	pos    int
}

// NewParser prepares a parser over a token list.
func NewParser(tokens []Token) *Parser {
	return &Parser{tokens: tokens}
}

// Parse walks the token list to exhaustion, collecting top-level statements.
func (p *Parser) Parse() (*Program, error) {
	prog := &Program{}
	for p.pos < len(p.tokens) {
		node, err := p.walk()
		if err != nil {
			return nil, err
		}
		prog.Body = append(prog.Body, node)
	}
	return prog, nil
}

// walk parses one statement or expression at the cursor.
func (p *Parser) walk() (Node, error) {
	tok := p.tokens[p.pos]

	if tok.Type == TokenKeyword {
		switch tok.Literal {
		case "function":
			return p.parseFunction()
		case "loop":
			return p.parseLoop(false)
		case "parallel":
			return p.parseLoop(true)
		case "return":
			return p.parseReturn()
		case "let":
			return p.parseLet()
		}
	}

	// Bare assignment: name = expr
	if tok.Type == TokenIdentifier && p.peekIsOperator(1, "=") {
		p.pos += 2
		value, err := p.expr()
		if err != nil {
			return nil, err
		}
		return &Assign{Name: tok.Literal, Value: value, Pos: tok.Pos}, nil
	}

	return p.expr()
}

// expr parses a primary expression and any trailing arithmetic chain.
// Operators associate left to right with no precedence levels.
func (p *Parser) expr() (Node, error) {
	left, err := p.primary()
	if err != nil {
		return nil, err
	}
	for p.pos < len(p.tokens) {
		tok := p.tokens[p.pos]
		if tok.Type != TokenOperator || tok.Literal == "=" {
			break
		}
		p.pos++
		right, err := p.primary()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: tok.Literal, Left: left, Right: right, Pos: tok.Pos}
	}
	return left, nil
}

func (p *Parser) primary() (Node, error) {
	tok := p.tokens[p.pos]

	switch tok.Type {
	case TokenNumber:
		p.pos++
		return &NumberLit{Value: tok.Number, Pos: tok.Pos}, nil

	case TokenRune:
		p.pos++
		op := &HardwareOp{
			Verb:        tok.Sym.Verb,
			Unit:        tok.Sym.Unit,
			Description: tok.Sym.Description,
			Pos:         tok.Pos,
		}
		if p.peekIsDelimiter(0, "(") {
			p.pos++
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			op.Args = args
		}
		return op, nil

	case TokenIdentifier:
		p.pos++
		if p.peekIsDelimiter(0, "(") {
			p.pos++
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			return &Call{Name: tok.Literal, Args: args, Pos: tok.Pos}, nil
		}
		return &Identifier{Name: tok.Literal, Pos: tok.Pos}, nil
	}

	// Type words, stray delimiters, stray operators: forward progress only.
	p.pos++
	return &Unknown{Tok: tok}, nil
}

// parseArgs consumes comma-separated expressions up to the close paren.
// The open paren has already been consumed.
func (p *Parser) parseArgs() ([]Node, error) {
	var args []Node
	for {
		if p.pos >= len(p.tokens) {
			return nil, fmt.Errorf("unterminated argument list")
		}
		if p.peekIsDelimiter(0, ")") {
			p.pos++
			return args, nil
		}
		if p.peekIsDelimiter(0, ",") {
			p.pos++
			continue
		}
		arg, err := p.expr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
}

func (p *Parser) parseLet() (Node, error) {
	let := p.tokens[p.pos]
	p.pos++
	name, err := p.expectIdentifier("let")
	if err != nil {
		return nil, err
	}
	if !p.peekIsOperator(0, "=") {
		return nil, fmt.Errorf("let %s at %s: expected =", name, let.Pos)
	}
	p.pos++
	value, err := p.expr()
	if err != nil {
		return nil, err
	}
	return &Assign{Name: name, Value: value, Pos: let.Pos}, nil
}

func (p *Parser) parseReturn() (Node, error) {
	tok := p.tokens[p.pos]
	p.pos++
	ret := &Return{Pos: tok.Pos}
	if p.pos < len(p.tokens) {
		switch p.tokens[p.pos].Type {
		case TokenNumber, TokenRune, TokenIdentifier:
			value, err := p.expr()
			if err != nil {
				return nil, err
			}
			ret.Value = value
		}
	}
	return ret, nil
}

func (p *Parser) parseLoop(parallel bool) (Node, error) {
	tok := p.tokens[p.pos]
	p.pos++
	varName, err := p.expectIdentifier(tok.Literal)
	if err != nil {
		return nil, err
	}
	if err := p.expectDelimiter("(", tok.Literal); err != nil {
		return nil, err
	}
	iterable, err := p.expr()
	if err != nil {
		return nil, err
	}
	if err := p.expectDelimiter(")", tok.Literal); err != nil {
		return nil, err
	}
	body, err := p.parseBlock(tok.Literal)
	if err != nil {
		return nil, err
	}
	return &LoopStmt{
		Var:      varName,
		Iterable: iterable,
		Body:     body,
		Parallel: parallel,
		Pos:      tok.Pos,
	}, nil
}

func (p *Parser) parseFunction() (Node, error) {
	tok := p.tokens[p.pos]
	p.pos++
	name, err := p.expectIdentifier("function")
	if err != nil {
		return nil, err
	}
	if err := p.expectDelimiter("(", "function "+name); err != nil {
		return nil, err
	}
	var params []string
	for {
		if p.pos >= len(p.tokens) {
			return nil, fmt.Errorf("function %s: unterminated parameter list", name)
		}
		if p.peekIsDelimiter(0, ")") {
			p.pos++
			break
		}
		if p.peekIsDelimiter(0, ",") {
			p.pos++
			continue
		}
		param, err := p.expectIdentifier("function " + name)
		if err != nil {
			return nil, err
		}
		params = append(params, param)
	}
	body, err := p.parseBlock("function " + name)
	if err != nil {
		return nil, err
	}
	return &FuncDecl{Name: name, Params: params, Body: body, Pos: tok.Pos}, nil
}

// parseBlock consumes a brace-delimited statement list.
func (p *Parser) parseBlock(context string) ([]Node, error) {
	if err := p.expectDelimiter("{", context); err != nil {
		return nil, err
	}
	var body []Node
	for {
		if p.pos >= len(p.tokens) {
			return nil, fmt.Errorf("%s: unterminated block", context)
		}
		if p.peekIsDelimiter(0, "}") {
			p.pos++
			return body, nil
		}
		node, err := p.walk()
		if err != nil {
			return nil, err
		}
		body = append(body, node)
	}
}

func (p *Parser) expectIdentifier(context string) (string, error) {
	if p.pos >= len(p.tokens) || p.tokens[p.pos].Type != TokenIdentifier {
		return "", fmt.Errorf("%s: expected identifier", context)
	}
	name := p.tokens[p.pos].Literal
	p.pos++
	return name, nil
}

func (p *Parser) expectDelimiter(lit, context string) error {
	if !p.peekIsDelimiter(0, lit) {
		return fmt.Errorf("%s: expected %q", context, lit)
	}
	p.pos++
	return nil
}

func (p *Parser) peekIsDelimiter(ahead int, lit string) bool {
	i := p.pos + ahead
	return i < len(p.tokens) && p.tokens[i].Type == TokenDelimiter && p.tokens[i].Literal == lit
}

func (p *Parser) peekIsOperator(ahead int, lit string) bool {
	i := p.pos + ahead
	return i < len(p.tokens) && p.tokens[i].Type == TokenOperator && p.tokens[i].Literal == lit
}
