package languages

import (
	"github.com/smacker/go-tree-sitter/javascript"

	"github.com/Asishkarthikeya/Codebase-Agent/internal/chunker"
)

func RegisterJavaScript(r *chunker.Registry) {
	r.Register("javascript", &chunker.LanguageSpec{
		Language:   javascript.GetLanguage(),
		Extensions: []string{"js", "jsx", "mjs", "cjs"},
		ClassKinds: set(
			"class_declaration",
			"class",
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
