// Package token defines the lexical token kinds shared by the lexer and
// parser, split from the AST package the way the teacher keeps its token
// enumeration (js_lexer.T) distinct from js_ast.
package token

import "github.com/agentscript-lang/agentscript/internal/logger"

type Kind uint16

const (
	EOF Kind = iota
	Error

	Ident
	IntLiteral
	FloatLiteral
	StringLiteral

	// Template string parts. NoSub is a backtick string with no "${}".
	TemplateNoSub
	TemplateHead
	TemplateMiddle
	TemplateTail

	// Comments are emitted, never discarded (§3 Token).
	LineComment
	BlockComment
	DocComment

	// DSL raw-mode tokens (§4.1).
	At
	DslBlockStart
	DslText
	DslCaptureStart
	DslCaptureEnd
	DslBlockEnd

	// Keywords.
	KwImport
	KwFrom
	KwLet
	KwMut
	KwConst
	KwFn
	KwPub
	KwAsync
	KwAwait
	KwStruct
	KwEnum
	KwType
	KwExtern
	KwReturn
	KwIf
	KwElse
	KwMatch
	KwFor
	KwIn
	KwWhile
	KwTry
	KwCatch
	KwTrue
	KwFalse
	KwNil

	// Punctuation / operators, maximal-munch disambiguated (§4.1).
	LParen
	RParen
	LBrace
	RBrace
	LBracket
	RBracket
	Comma
	Semicolon
	Colon
	ColonColon
	Dot
	DotDot
	DotDotDot
	Question
	QuestionDot
	QuestionQuestion
	QuestionQuestionEquals
	Arrow    // =>
	ThinArrow // ->
	Pipe2     // |>
	Bar       // |
	Amp2      // &&
	Or2       // ||
	Eq
	EqEq
	NotEq
	Lt
	Gt
	LtEq
	GtEq
	Plus
	Minus
	Star
	Slash
	Percent
	StarStar
	Bang
	PlusEq
	MinusEq
	StarEq
	SlashEq
)

var names = map[Kind]string{
	EOF: "eof", Error: "error", Ident: "identifier",
	IntLiteral: "int", FloatLiteral: "float", StringLiteral: "string",
	TemplateNoSub: "template", TemplateHead: "template-head",
	TemplateMiddle: "template-middle", TemplateTail: "template-tail",
	LineComment: "line-comment", BlockComment: "block-comment", DocComment: "doc-comment",
	At: "@", DslBlockStart: "```", DslText: "dsl-text",
	DslCaptureStart: "#{", DslCaptureEnd: "}", DslBlockEnd: "```",
	KwImport: "import", KwFrom: "from", KwLet: "let", KwMut: "mut", KwConst: "const",
	KwFn: "fn", KwPub: "pub", KwAsync: "async", KwAwait: "await",
	KwStruct: "struct", KwEnum: "enum", KwType: "type", KwExtern: "extern",
	KwReturn: "return", KwIf: "if", KwElse: "else", KwMatch: "match",
	KwFor: "for", KwIn: "in", KwWhile: "while", KwTry: "try", KwCatch: "catch",
	KwTrue: "true", KwFalse: "false", KwNil: "nil",
	LParen: "(", RParen: ")", LBrace: "{", RBrace: "}", LBracket: "[", RBracket: "]",
	Comma: ",", Semicolon: ";", Colon: ":", ColonColon: "::", Dot: ".", DotDot: "..",
	DotDotDot: "...", Question: "?", QuestionDot: "?.", QuestionQuestion: "??",
	QuestionQuestionEquals: "??=",
	Arrow: "=>", ThinArrow: "->", Pipe2: "|>", Bar: "|", Amp2: "&&", Or2: "||",
	Eq: "=", EqEq: "==", NotEq: "!=", Lt: "<", Gt: ">", LtEq: "<=", GtEq: ">=",
	Plus: "+", Minus: "-", Star: "*", Slash: "/", Percent: "%", StarStar: "**",
	Bang: "!", PlusEq: "+=", MinusEq: "-=", StarEq: "*=", SlashEq: "/=",
}

func (k Kind) String() string {
	if s, ok := names[k]; ok {
		return s
	}
	return "unknown"
}

// Keywords maps reserved identifiers to their keyword kind. Looked up after
// lexing a plain identifier, per §4.1.
var Keywords = map[string]Kind{
	"import": KwImport, "from": KwFrom, "let": KwLet, "mut": KwMut, "const": KwConst,
	"fn": KwFn, "pub": KwPub, "async": KwAsync, "await": KwAwait,
	"struct": KwStruct, "enum": KwEnum, "type": KwType, "extern": KwExtern,
	"return": KwReturn, "if": KwIf, "else": KwElse, "match": KwMatch,
	"for": KwFor, "in": KwIn, "while": KwWhile, "try": KwTry, "catch": KwCatch,
	"true": KwTrue, "false": KwFalse, "nil": KwNil,
}

// Token is the unit the lexer produces and the parser consumes. TextSlice
// borrows from the owning source buffer; no token owns its own copy.
type Token struct {
	Kind      Kind
	Span      logger.Span
	TextSlice string

	// Populated for literal kinds; zero otherwise.
	IntValue    int64
	FloatValue  float64
	StringValue string
}

func (t Token) String() string {
	if t.TextSlice != "" {
		return t.TextSlice
	}
	return t.Kind.String()
}
