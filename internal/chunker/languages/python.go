package languages

import (
	"github.com/smacker/go-tree-sitter/python"

	"github.com/Asishkarthikeya/Codebase-Agent/internal/chunker"
)

func RegisterPython(r *chunker.Registry) {
	r.Register("python", &chunker.LanguageSpec{
		Language:   python.GetLanguage(),
		Extensions: []string{"py", "pyi"},
		ClassKinds: set("class_definition"),
		FunctionKinds: set(
			"function_definition",
			"decorated_definition",
		),
		CallKinds: set("call"),
		ImportKinds: set(
			"import_statement",
			"import_from_statement",
		),
		BranchKinds: set(
			"if_statement",
			"elif_clause",
			"for_statement",
			"while_statement",
			"except_clause",
			"case_clause",
			"conditional_expression",
			"boolean_operator",
		),
	})
}
