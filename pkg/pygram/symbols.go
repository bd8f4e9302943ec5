package pygram

// Grammar symbol numbers, in the order the table generator assigns them:
// the start symbol first, then alphabetical.
const (
	FileInput = iota + 256
	AndExpr
	AndTest
	Annassign
	Arglist
	Argument
	ArithExpr
	AssertStmt
	AsyncFuncdef
	AsyncStmt
	Atom
	Augassign
	BreakStmt
	Classdef
	CompFor
	CompIf
	CompIter
	CompOp
	Comparison
	CompoundStmt
	ContinueStmt
	Decorated
	Decorator
	Decorators
	DelStmt
	Dictsetmaker
	DottedAsName
	DottedAsNames
	DottedName
	EncodingDecl
	EvalInput
	ExceptClause
	ExecStmt
	Expr
	ExprStmt
	Exprlist
	Factor
	FlowStmt
	ForStmt
	Fstring
	FstringFormatSpec
	FstringMiddle
	FstringReplacementField
	Funcdef
	GlobalStmt
	IfStmt
	ImportAsName
	ImportAsNames
	ImportFrom
	ImportName
	ImportStmt
	Lambdef
	Listmaker
	NamedexprTest
	NotTest
	OldLambdef
	OldTest
	OrTest
	Parameters
	PassStmt
	Power
	PrintStmt
	RaiseStmt
	ReturnStmt
	ShiftExpr
	SimpleStmt
	SingleInput
	Sliceop
	SmallStmt
	StarExpr
	Stmt
	Subscript
	Subscriptlist
	Suite
	Term
	Test
	Testlist
	Testlist1
	TestlistGexp
	TestlistStarExpr
	Tfpdef
	Tfplist
	Tname
	Trailer
	TryStmt
	Typedargslist
	Varargslist
	Vfpdef
	Vfplist
	Vname
	WhileStmt
	WithItem
	WithStmt
	XorExpr
	YieldArg
	YieldExpr
	YieldStmt
)

var symbolNumbers = map[string]int{
	"file_input":                FileInput,
	"and_expr":                  AndExpr,
	"and_test":                  AndTest,
	"annassign":                 Annassign,
	"arglist":                   Arglist,
	"argument":                  Argument,
	"arith_expr":                ArithExpr,
	"assert_stmt":               AssertStmt,
	"async_funcdef":             AsyncFuncdef,
	"async_stmt":                AsyncStmt,
	"atom":                      Atom,
	"augassign":                 Augassign,
	"break_stmt":                BreakStmt,
	"classdef":                  Classdef,
	"comp_for":                  CompFor,
	"comp_if":                   CompIf,
	"comp_iter":                 CompIter,
	"comp_op":                   CompOp,
	"comparison":                Comparison,
	"compound_stmt":             CompoundStmt,
	"continue_stmt":             ContinueStmt,
	"decorated":                 Decorated,
	"decorator":                 Decorator,
	"decorators":                Decorators,
	"del_stmt":                  DelStmt,
	"dictsetmaker":              Dictsetmaker,
	"dotted_as_name":            DottedAsName,
	"dotted_as_names":           DottedAsNames,
	"dotted_name":               DottedName,
	"encoding_decl":             EncodingDecl,
	"eval_input":                EvalInput,
	"except_clause":             ExceptClause,
	"exec_stmt":                 ExecStmt,
	"expr":                      Expr,
	"expr_stmt":                 ExprStmt,
	"exprlist":                  Exprlist,
	"factor":                    Factor,
	"flow_stmt":                 FlowStmt,
	"for_stmt":                  ForStmt,
	"fstring":                   Fstring,
	"fstring_format_spec":       FstringFormatSpec,
	"fstring_middle":            FstringMiddle,
	"fstring_replacement_field": FstringReplacementField,
	"funcdef":                   Funcdef,
	"global_stmt":               GlobalStmt,
	"if_stmt":                   IfStmt,
	"import_as_name":            ImportAsName,
	"import_as_names":           ImportAsNames,
	"import_from":               ImportFrom,
	"import_name":               ImportName,
	"import_stmt":               ImportStmt,
	"lambdef":                   Lambdef,
	"listmaker":                 Listmaker,
	"namedexpr_test":            NamedexprTest,
	"not_test":                  NotTest,
	"old_lambdef":               OldLambdef,
	"old_test":                  OldTest,
	"or_test":                   OrTest,
	"parameters":                Parameters,
	"pass_stmt":                 PassStmt,
	"power":                     Power,
	"print_stmt":                PrintStmt,
	"raise_stmt":                RaiseStmt,
	"return_stmt":               ReturnStmt,
	"shift_expr":                ShiftExpr,
	"simple_stmt":               SimpleStmt,
	"single_input":              SingleInput,
	"sliceop":                   Sliceop,
	"small_stmt":                SmallStmt,
	"star_expr":                 StarExpr,
	"stmt":                      Stmt,
	"subscript":                 Subscript,
	"subscriptlist":             Subscriptlist,
	"suite":                     Suite,
	"term":                      Term,
	"test":                      Test,
	"testlist":                  Testlist,
	"testlist1":                 Testlist1,
	"testlist_gexp":             TestlistGexp,
	"testlist_star_expr":        TestlistStarExpr,
	"tfpdef":                    Tfpdef,
	"tfplist":                   Tfplist,
	"tname":                     Tname,
	"trailer":                   Trailer,
	"try_stmt":                  TryStmt,
	"typedargslist":             Typedargslist,
	"varargslist":               Varargslist,
	"vfpdef":                    Vfpdef,
	"vfplist":                   Vfplist,
	"vname":                     Vname,
	"while_stmt":                WhileStmt,
	"with_item":                 WithItem,
	"with_stmt":                 WithStmt,
	"xor_expr":                  XorExpr,
	"yield_arg":                 YieldArg,
	"yield_expr":                YieldExpr,
	"yield_stmt":                YieldStmt,
}
