package languages

import (
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/Asishkarthikeya/Codebase-Agent/internal/chunker"
)

func RegisterTypeScript(r *chunker.Registry) {
	r.Register("typescript", &chunker.LanguageSpec{
		Language:   typescript.GetLanguage(),
		Extensions: []string{"ts", "tsx"},
		ClassKinds: set(
			"class_declaration",
			"interface_declaration",
		),
		FunctionKinds: set(
			"function_declaration",
			"method_definition",
			"generator_function_declaration",
		),
		CallKinds:   set("call_expression"),
		ImportKinds: set("import_statement"),
		BranchKinds: set(
			"if_statement",
			"for_statement",
			"for_in_statement",
			"while_statement",
			"do_statement",
			"catch_clause",
			"switch_case",
			"ternary_expression",
		),
	})
}
