// Package lexer converts AgentScript source into a token stream. It mirrors
// the teacher's js_lexer in spirit — the lexer never panics, unrecognized
// input becomes an Error token and scanning resumes on the next byte — but
// trades js_lexer's parser-driven "call NextToken() on demand" push style
// for a pull API since AgentScript's raw DSL mode is entered/exited by
// explicit parser calls rather than being implicit in operator context.
package lexer

import (
	"strconv"
	"strings"

	"github.com/agentscript-lang/agentscript/internal/logger"
	"github.com/agentscript-lang/agentscript/internal/token"
)

// braceKind tracks what a '{' pushed onto the brace stack will resume into
// when its matching '}' is found. This is the generalization of §4.1's
// "brace-depth counter" to handle nested templates and DSL captures with a
// single mechanism instead of one counter per feature.
type braceKind uint8

const (
	bracePlain braceKind = iota
	braceTemplateExpr
	braceDslCapture
)

type Lexer struct {
	Log    *logger.Log
	source string

	pos int // byte offset of the next unread byte
	ch  byte // current byte, 0 at EOF

	braces []braceKind

	// Raw mode is entered through EnterDslRawMode (called by
	// ExpectDslBlockStart) and left by NextDslRaw at the closing fence or
	// at a capture's "#{"; scanCloseBrace re-enters it after a capture.
	inRawMode    bool
	atLineStart  bool // tracks whether the raw-mode cursor is at a line start, for the "```" terminator rule
}

func New(log *logger.Log, source string) *Lexer {
	l := &Lexer{Log: log, source: source}
	l.pos = 0
	if len(source) > 0 {
		l.ch = source[0]
	}
	return l
}

func (l *Lexer) Source() string { return l.source }

func (l *Lexer) peekByte(offset int) byte {
	i := l.pos + offset
	if i < 0 || i >= len(l.source) {
		return 0
	}
	return l.source[i]
}

func (l *Lexer) advance() {
	l.pos++
	if l.pos >= len(l.source) {
		l.ch = 0
	} else {
		l.ch = l.source[l.pos]
	}
}

func (l *Lexer) span(start int) logger.Span {
	return logger.Span{Start: uint32(start), End: uint32(l.pos)}
}

// ---- Normal mode -----------------------------------------------------

// Next returns the next token in normal mode. Whitespace is skipped (its
// span is not emitted, per §4.1); comments ARE emitted as tokens.
func (l *Lexer) Next() token.Token {
	l.skipWhitespaceNonNewline()

	start := l.pos
	if l.pos >= len(l.source) {
		return token.Token{Kind: token.EOF, Span: l.span(start)}
	}

	c := l.ch

	switch {
	case isIdentStart(c):
		return l.scanIdentOrKeyword(start)
	case isDigit(c):
		return l.scanNumber(start)
	case c == '"' || c == '\'':
		return l.scanString(start, c)
	case c == '`':
		return l.scanTemplateHead(start)
	case c == '@':
		l.advance()
		return token.Token{Kind: token.At, Span: l.span(start), TextSlice: "@"}
	case c == '/':
		if l.peekByte(1) == '/' {
			return l.scanLineComment(start)
		}
		if l.peekByte(1) == '*' {
			return l.scanBlockComment(start)
		}
		return l.scanOperator(start)
	case c == '{':
		l.advance()
		l.braces = append(l.braces, bracePlain)
		return token.Token{Kind: token.LBrace, Span: l.span(start), TextSlice: "{"}
	case c == '}':
		return l.scanCloseBrace(start)
	default:
		return l.scanOperator(start)
	}
}

func (l *Lexer) skipWhitespaceNonNewline() {
	for l.pos < len(l.source) {
		c := l.ch
		if c == ' ' || c == '\t' || c == '\r' || c == '\n' {
			l.advance()
			continue
		}
		break
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentCont(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func (l *Lexer) scanIdentOrKeyword(start int) token.Token {
	for l.pos < len(l.source) && isIdentCont(l.ch) {
		l.advance()
	}
	text := l.source[start:l.pos]
	span := l.span(start)
	if kw, ok := token.Keywords[text]; ok {
		return token.Token{Kind: kw, Span: span, TextSlice: text}
	}
	return token.Token{Kind: token.Ident, Span: span, TextSlice: text}
}

func (l *Lexer) scanNumber(start int) token.Token {
	isFloat := false
	for l.pos < len(l.source) && isDigit(l.ch) {
		l.advance()
	}
	if l.ch == '.' && isDigit(l.peekByte(1)) {
		isFloat = true
		l.advance()
		for l.pos < len(l.source) && isDigit(l.ch) {
			l.advance()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		save := l.pos
		l.advance()
		if l.ch == '+' || l.ch == '-' {
			l.advance()
		}
		if isDigit(l.ch) {
			isFloat = true
			for l.pos < len(l.source) && isDigit(l.ch) {
				l.advance()
			}
		} else {
			l.pos = save
			l.ch = l.source[l.pos]
		}
	}
	text := l.source[start:l.pos]
	span := l.span(start)
	if isFloat {
		f, _ := strconv.ParseFloat(text, 64)
		return token.Token{Kind: token.FloatLiteral, Span: span, TextSlice: text, FloatValue: f}
	}
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		// overflow: still a valid token, represented as a float downstream
		f, _ := strconv.ParseFloat(text, 64)
		return token.Token{Kind: token.FloatLiteral, Span: span, TextSlice: text, FloatValue: f}
	}
	return token.Token{Kind: token.IntLiteral, Span: span, TextSlice: text, IntValue: n}
}

var escapeMap = map[byte]byte{
	'\\': '\\', '"': '"', '\'': '\'', 'n': '\n', 't': '\t', 'r': '\r', '0': 0,
}

func (l *Lexer) scanString(start int, quote byte) token.Token {
	l.advance() // consume opening quote
	var b strings.Builder
	for {
		if l.pos >= len(l.source) {
			l.Log.AddError(l.span(start), "unterminated string literal")
			return token.Token{Kind: token.Error, Span: l.span(start), TextSlice: l.source[start:l.pos]}
		}
		c := l.ch
		if c == quote {
			l.advance()
			break
		}
		if c == '\n' {
			l.Log.AddError(l.span(start), "unterminated string literal")
			break
		}
		if c == '\\' {
			l.advance()
			if esc, ok := escapeMap[l.ch]; ok {
				b.WriteByte(esc)
				l.advance()
				continue
			}
			if l.pos < len(l.source) {
				b.WriteByte(l.ch)
				l.advance()
			}
			continue
		}
		b.WriteByte(c)
		l.advance()
	}
	return token.Token{Kind: token.StringLiteral, Span: l.span(start), TextSlice: l.source[start:l.pos], StringValue: b.String()}
}

// scanTemplateHead begins a backtick template. It scans up to either the
// closing backtick (TemplateNoSub) or the first "${" (TemplateHead),
// pushing a braceTemplateExpr frame that resumeTemplate below consumes
// when the interpolation's matching '}' is found.
func (l *Lexer) scanTemplateHead(start int) token.Token {
	l.advance() // consume opening backtick
	return l.scanTemplatePart(start, token.TemplateNoSub, token.TemplateHead)
}

// resumeTemplate is called by scanCloseBrace when the '}' it consumed closes
// an interpolation; it continues scanning from just past that '}' through to
// the next "${" or closing backtick.
func (l *Lexer) resumeTemplate() token.Token {
	start := l.pos
	return l.scanTemplatePart(start, token.TemplateTail, token.TemplateMiddle)
}

func (l *Lexer) scanTemplatePart(start int, endKind, midKind token.Kind) token.Token {
	var b strings.Builder
	for {
		if l.pos >= len(l.source) {
			l.Log.AddError(l.span(start), "unterminated template literal")
			return token.Token{Kind: token.Error, Span: l.span(start)}
		}
		c := l.ch
		if c == '`' {
			l.advance()
			return token.Token{Kind: endKind, Span: l.span(start), StringValue: b.String()}
		}
		if c == '$' && l.peekByte(1) == '{' {
			l.advance()
			l.advance()
			l.braces = append(l.braces, braceTemplateExpr)
			return token.Token{Kind: midKind, Span: l.span(start), StringValue: b.String()}
		}
		if c == '\\' {
			l.advance()
			if esc, ok := escapeMap[l.ch]; ok {
				b.WriteByte(esc)
				l.advance()
				continue
			}
			if l.pos < len(l.source) {
				b.WriteByte(l.ch)
				l.advance()
			}
			continue
		}
		b.WriteByte(c)
		l.advance()
	}
}

func (l *Lexer) scanCloseBrace(start int) token.Token {
	l.advance() // consume '}'
	if len(l.braces) == 0 {
		return token.Token{Kind: token.RBrace, Span: l.span(start), TextSlice: "}"}
	}
	top := l.braces[len(l.braces)-1]
	l.braces = l.braces[:len(l.braces)-1]
	switch top {
	case braceTemplateExpr:
		return l.resumeTemplate()
	case braceDslCapture:
		l.inRawMode = true
		return token.Token{Kind: token.DslCaptureEnd, Span: l.span(start)}
	default:
		return token.Token{Kind: token.RBrace, Span: l.span(start), TextSlice: "}"}
	}
}

func (l *Lexer) scanLineComment(start int) token.Token {
	doc := l.peekByte(2) == '/'
	for l.pos < len(l.source) && l.ch != '\n' {
		l.advance()
	}
	kind := token.LineComment
	if doc {
		kind = token.DocComment
	}
	return token.Token{Kind: kind, Span: l.span(start), TextSlice: l.source[start:l.pos]}
}

func (l *Lexer) scanBlockComment(start int) token.Token {
	l.advance()
	l.advance()
	depth := 1
	for l.pos < len(l.source) && depth > 0 {
		if l.ch == '/' && l.peekByte(1) == '*' {
			depth++
			l.advance()
			l.advance()
			continue
		}
		if l.ch == '*' && l.peekByte(1) == '/' {
			depth--
			l.advance()
			l.advance()
			continue
		}
		l.advance()
	}
	if depth > 0 {
		l.Log.AddError(l.span(start), "unterminated block comment")
	}
	return token.Token{Kind: token.BlockComment, Span: l.span(start), TextSlice: l.source[start:l.pos]}
}

// maximal-munch operator table: longer forms are tried before their
// prefixes, per §4.1 and §8's testable property.
type opEntry struct {
	text string
	kind token.Kind
}

var operators = []opEntry{
	{"...", token.DotDotDot},
	{"??=", token.QuestionQuestionEquals},
	{"==", token.EqEq},
	{"!=", token.NotEq},
	{"<=", token.LtEq},
	{">=", token.GtEq},
	{"&&", token.Amp2},
	{"||", token.Or2},
	{"|>", token.Pipe2},
	{"??", token.QuestionQuestion},
	{"?.", token.QuestionDot},
	{"=>", token.Arrow},
	{"->", token.ThinArrow},
	{"::", token.ColonColon},
	{"..", token.DotDot},
	{"**", token.StarStar},
	{"+=", token.PlusEq},
	{"-=", token.MinusEq},
	{"*=", token.StarEq},
	{"/=", token.SlashEq},
	{"(", token.LParen},
	{")", token.RParen},
	{"[", token.LBracket},
	{"]", token.RBracket},
	{",", token.Comma},
	{";", token.Semicolon},
	{":", token.Colon},
	{".", token.Dot},
	{"?", token.Question},
	{"|", token.Bar},
	{"=", token.Eq},
	{"<", token.Lt},
	{">", token.Gt},
	{"+", token.Plus},
	{"-", token.Minus},
	{"*", token.Star},
	{"/", token.Slash},
	{"%", token.Percent},
	{"!", token.Bang},
}

func (l *Lexer) scanOperator(start int) token.Token {
	for _, e := range operators {
		if l.matchAt(start, e.text) {
			l.pos = start + len(e.text)
			if l.pos < len(l.source) {
				l.ch = l.source[l.pos]
			} else {
				l.ch = 0
			}
			return token.Token{Kind: e.kind, Span: l.span(start), TextSlice: e.text}
		}
	}
	l.advance()
	l.Log.AddErrorf(l.span(start), "unrecognized character %q", l.source[start:start+1])
	return token.Token{Kind: token.Error, Span: l.span(start), TextSlice: l.source[start : start+1]}
}

func (l *Lexer) matchAt(pos int, text string) bool {
	if pos+len(text) > len(l.source) {
		return false
	}
	return l.source[pos:pos+len(text)] == text
}

// ---- DSL raw mode ------------------------------------------------------

// EnterDslRawMode switches the lexer to raw mode. ExpectDslBlockStart calls
// it right after consuming the "```" (and an optional newline) that opens a
// DSL block body (§4.1).
func (l *Lexer) EnterDslRawMode() {
	l.inRawMode = true
	l.atLineStart = true
}

func (l *Lexer) InRawMode() bool { return l.inRawMode }

// ExpectDslBlockStart consumes the literal "```\n" that follows "@kind name"
// and returns a DslBlockStart token, or an Error token if absent.
func (l *Lexer) ExpectDslBlockStart() token.Token {
	l.skipWhitespaceNonNewline()
	start := l.pos
	if !l.matchAt(l.pos, "```") {
		l.Log.AddError(l.span(start), "expected ``` to start DSL block body")
		return token.Token{Kind: token.Error, Span: l.span(start)}
	}
	l.pos += 3
	if l.pos < len(l.source) && (l.source[l.pos] == '\r') {
		l.pos++
	}
	if l.pos < len(l.source) && l.source[l.pos] == '\n' {
		l.pos++
	}
	if l.pos < len(l.source) {
		l.ch = l.source[l.pos]
	} else {
		l.ch = 0
	}
	l.EnterDslRawMode()
	return token.Token{Kind: token.DslBlockStart, Span: l.span(start)}
}

// NextDslRaw scans one token while in raw mode: DslText, DslCaptureStart,
// or DslBlockEnd. It is the direct implementation of §4.1's raw-mode rules.
func (l *Lexer) NextDslRaw() token.Token {
	start := l.pos
	var b strings.Builder

	for l.pos < len(l.source) {
		// Three backticks at the start of a line terminate the block.
		if l.atLineStart {
			lineStart := l.pos
			// allow leading whitespace before the closing fence
			j := lineStart
			for j < len(l.source) && (l.source[j] == ' ' || l.source[j] == '\t') {
				j++
			}
			if j+3 <= len(l.source) && l.source[j:j+3] == "```" {
				if b.Len() > 0 {
					return token.Token{Kind: token.DslText, Span: l.span(start), StringValue: b.String()}
				}
				l.pos = j + 3
				if l.pos < len(l.source) {
					l.ch = l.source[l.pos]
				} else {
					l.ch = 0
				}
				l.inRawMode = false
				return token.Token{Kind: token.DslBlockEnd, Span: l.span(start)}
			}
		}

		if l.ch == '#' && l.peekByte(1) == '{' {
			if b.Len() > 0 {
				return token.Token{Kind: token.DslText, Span: l.span(start), StringValue: b.String()}
			}
			capStart := l.pos
			l.advance()
			l.advance()
			l.braces = append(l.braces, braceDslCapture)
			l.inRawMode = false
			return token.Token{Kind: token.DslCaptureStart, Span: l.span(capStart)}
		}

		c := l.ch
		b.WriteByte(c)
		l.atLineStart = c == '\n'
		l.advance()
	}

	l.Log.AddError(l.span(start), "unterminated DSL block")
	if b.Len() > 0 {
		return token.Token{Kind: token.DslText, Span: l.span(start), StringValue: b.String()}
	}
	return token.Token{Kind: token.Error, Span: l.span(start)}
}
