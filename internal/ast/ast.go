// Package ast defines the AgentScript module AST. It follows the teacher's
// js_ast convention of a tiny wrapper struct (Span + an interface-typed
// Data field) per syntactic category, rather than one giant tagged union,
// so each variant is its own named Go type.
package ast

import "github.com/agentscript-lang/agentscript/internal/logger"

// ---- Top level ---------------------------------------------------------

type Module struct {
	Items []Item
}

// Item wraps every top-level declaration. Doc holds buffered "///" comment
// lines attached to this declaration (§9 doc-comment buffering).
type Item struct {
	Span logger.Span
	Doc  []string
	Data ItemData
}

type ItemData interface{ isItemData() }

type ToolAnnotation struct {
	Description *string
	Span        logger.Span
}

type JsAnnotation struct {
	Module *string
	JsName *string
	Span   logger.Span
}

type Import struct {
	Names []string
	Path  string // e.g. "std:http/client" or a relative module path
}

func (*Import) isItemData() {}

type Param struct {
	Name       string
	Type       Type
	Default    *Expr
	Variadic   bool
	Span       logger.Span
}

type VarDecl struct {
	Name string
	// Kind distinguishes let / mut / const; codegen and the checker's
	// mutability rule both depend on it (§4.3, §4.6).
	Kind DeclKind
	Type *Type // nil if inferred from Init
	Init Expr
}

func (*VarDecl) isItemData() {}

type DeclKind uint8

const (
	DeclLet DeclKind = iota
	DeclMut
	DeclConst
)

type FnDecl struct {
	Pub        bool
	Async      bool
	Name       string
	Params     []Param
	ReturnType *Type // nil means inferred "nil"/"any" depending on context
	Body       Block
	Tool       *ToolAnnotation
}

func (*FnDecl) isItemData() {}

type Field struct {
	Name string
	Type Type
	Span logger.Span
}

type StructDecl struct {
	Name   string
	Fields []Field
}

func (*StructDecl) isItemData() {}

type EnumVariant struct {
	Name   string
	Fields []Field // empty for unit variants
	Span   logger.Span
}

type EnumDecl struct {
	Name     string
	Variants []EnumVariant
}

func (*EnumDecl) isItemData() {}

type TypeAlias struct {
	Name string
	Type Type
}

func (*TypeAlias) isItemData() {}

type ExternFnDecl struct {
	Name       string
	Params     []Param
	ReturnType *Type
	Js         JsAnnotation
}

func (*ExternFnDecl) isItemData() {}

type ExternStructDecl struct {
	Name    string
	Fields  []Field
	Methods []FnSignature
	Js      JsAnnotation
}

func (*ExternStructDecl) isItemData() {}

type FnSignature struct {
	Name       string
	Params     []Param
	ReturnType *Type
}

type ExternTypeDecl struct {
	Name string
	Js   JsAnnotation
}

func (*ExternTypeDecl) isItemData() {}

type ExprStmtItem struct {
	Expr Expr
}

func (*ExprStmtItem) isItemData() {}

// ---- Blocks and statements ----------------------------------------------

// Block distinguishes a statement sequence from a pure expression. Tail is
// the implicit return when the final statement omits its semicolon (§3).
type Block struct {
	Span  logger.Span
	Stmts []Stmt
	Tail  *Expr
}

type Stmt struct {
	Span logger.Span
	Data StmtData
}

type StmtData interface{ isStmtData() }

type SVarDecl struct{ Decl VarDecl }

func (*SVarDecl) isStmtData() {}

type SReturn struct{ Value *Expr }

func (*SReturn) isStmtData() {}

type SExpr struct{ Value Expr }

func (*SExpr) isStmtData() {}

type SIf struct {
	Cond Expr
	Then Block
	// Else holds either another SIf-shaped block (else if) or a plain
	// block; nil when there is no else clause.
	Else *Block
}

func (*SIf) isStmtData() {}

type SWhile struct {
	Cond Expr
	Body Block
}

func (*SWhile) isStmtData() {}

type SFor struct {
	Binding string
	Iter    Expr
	Body    Block
}

func (*SFor) isStmtData() {}

type SAssign struct {
	Target Expr
	Op     AssignOp
	Value  Expr
}

func (*SAssign) isStmtData() {}

type AssignOp uint8

const (
	AssignSet AssignOp = iota
	AssignAdd
	AssignSub
	AssignMul
	AssignDiv
)

type SCatchClause struct {
	Binding string
	Body    Block
}

type STry struct {
	Body  Block
	Catch SCatchClause
}

func (*STry) isStmtData() {}

// ---- Expressions ---------------------------------------------------------

type Expr struct {
	Span logger.Span
	Data ExprData
}

type ExprData interface{ isExprData() }

type EIdent struct{ Name string }

func (*EIdent) isExprData() {}

type EInt struct{ Value int64 }

func (*EInt) isExprData() {}

type EFloat struct{ Value float64 }

func (*EFloat) isExprData() {}

type EString struct{ Value string }

func (*EString) isExprData() {}

type EBool struct{ Value bool }

func (*EBool) isExprData() {}

type ENil struct{}

func (*ENil) isExprData() {}

// ETemplate represents a template string: alternating Parts (literal text)
// and Exprs (interpolations), len(Parts) == len(Exprs)+1.
type ETemplate struct {
	Parts []string
	Exprs []Expr
}

func (*ETemplate) isExprData() {}

type EArray struct{ Elements []Expr }

func (*EArray) isExprData() {}

type MapEntry struct {
	Key   Expr
	Value Expr
}

type EMap struct{ Entries []MapEntry }

func (*EMap) isExprData() {}

type StructFieldInit struct {
	Name  string
	Value Expr
}

type EStructLit struct {
	Name   string
	Fields []StructFieldInit
}

func (*EStructLit) isExprData() {}

// EEnumConstruct is "Enum::Variant(f: v, ...)".
type EEnumConstruct struct {
	Enum    string
	Variant string
	Fields  []StructFieldInit
}

func (*EEnumConstruct) isExprData() {}

type UnaryOp uint8

const (
	UnaryNot UnaryOp = iota
	UnaryNeg
)

type EUnary struct {
	Op      UnaryOp
	Operand Expr
}

func (*EUnary) isExprData() {}

type BinaryOp uint8

const (
	BinAdd BinaryOp = iota
	BinSub
	BinMul
	BinDiv
	BinMod
	BinPow
	BinEq
	BinNotEq
	BinLt
	BinGt
	BinLtEq
	BinGtEq
	BinAnd
	BinOr
	BinNullish
)

type EBinary struct {
	Op    BinaryOp
	Left  Expr
	Right Expr
}

func (*EBinary) isExprData() {}

type EAssign struct {
	Target Expr
	Op     AssignOp
	Value  Expr
}

func (*EAssign) isExprData() {}

type ECall struct {
	Callee Expr
	Args   []Expr
	// PlaceholderIndex is the index of a "_" argument when this call is
	// the right side of a pipe with an explicit placeholder
	// ("a |> f(_, b)"); -1 when not present (§4.2, §4.6).
	PlaceholderIndex int
}

func (*ECall) isExprData() {}

type EMember struct {
	Target   Expr
	Name     string
	Optional bool // "?." vs "."
}

func (*EMember) isExprData() {}

type EScope struct {
	Target Expr // always an EIdent naming the enum/struct
	Name   string
}

func (*EScope) isExprData() {}

type EIndex struct {
	Target Expr
	Index  Expr
}

func (*EIndex) isExprData() {}

// EErrorPropagate is the postfix "expr?" operator.
type EErrorPropagate struct{ Operand Expr }

func (*EErrorPropagate) isExprData() {}

// EPipe is "a |> f" or "a |> f(_, b)"; Call is the right-hand call
// expression (its Callee is f). The parser has already spliced Left into
// Call's Args (at the "_" position, or first when there is none) and reset
// its PlaceholderIndex to -1.
type EPipe struct {
	Left Expr
	Call Expr
}

func (*EPipe) isExprData() {}

type ELambda struct {
	Params []Param
	Body   Block // a single tail expression is represented as Block{Tail: &expr}
}

func (*ELambda) isExprData() {}

type EBlock struct{ Block Block }

func (*EBlock) isExprData() {}

type EAwait struct{ Operand Expr }

func (*EAwait) isExprData() {}

type MatchArm struct {
	Pattern Pattern
	Guard   *Expr
	Body    Expr
}

type EMatch struct {
	Scrutinee Expr
	Arms      []MatchArm
}

func (*EMatch) isExprData() {}

// EErrorNode is a placeholder produced by error recovery (§4.2).
type EErrorNode struct{}

func (*EErrorNode) isExprData() {}

// ---- Patterns ------------------------------------------------------------

type Pattern struct {
	Span logger.Span
	Data PatternData
}

type PatternData interface{ isPatternData() }

type PWildcard struct{}

func (*PWildcard) isPatternData() {}

type PBind struct{ Name string }

func (*PBind) isPatternData() {}

type PLiteral struct{ Value Expr }

func (*PLiteral) isPatternData() {}

type PRange struct {
	Low  Expr
	High Expr
}

func (*PRange) isPatternData() {}

type PFieldBind struct {
	Name    string
	Binding string // the local name the field is bound to; equals Name when not renamed
}

type PStruct struct {
	Name   string
	Fields []PFieldBind
}

func (*PStruct) isPatternData() {}

type PEnumVariant struct {
	Enum    string
	Variant string
	Fields  []PFieldBind
}

func (*PEnumVariant) isPatternData() {}

// ---- Types -----------------------------------------------------------

type Type struct {
	Span logger.Span
	Data TypeData
}

type TypeData interface{ isTypeData() }

type TNamed struct{ Name string } // str, int, num, bool, nil, any, unknown, or a user type

func (*TNamed) isTypeData() {}

type TArray struct{ Elem Type }

func (*TArray) isTypeData() {}

type TMap struct{ Key, Value Type }

func (*TMap) isTypeData() {}

type TNullable struct{ Inner Type }

func (*TNullable) isTypeData() {}

type TUnion struct{ Options []Type }

func (*TUnion) isTypeData() {}

type TFunction struct {
	Params   []Type
	Return   Type
	Variadic bool
}

func (*TFunction) isTypeData() {}

type TObjectField struct {
	Name string
	Type Type
}

type TInlineObject struct{ Fields []TObjectField }

func (*TInlineObject) isTypeData() {}

type TPromise struct{ Inner Type }

func (*TPromise) isTypeData() {}

// TUnknown is the error-recovery placeholder (§4.2).
type TUnknown struct{}

func (*TUnknown) isTypeData() {}
