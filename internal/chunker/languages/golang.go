package languages

import (
	"github.com/smacker/go-tree-sitter/golang"

	"github.com/Asishkarthikeya/Codebase-Agent/internal/chunker"
)

func RegisterGo(r *chunker.Registry) {
	r.Register("go", &chunker.LanguageSpec{
		Language:   golang.GetLanguage(),
		Extensions: []string{"go"},
		ClassKinds: set("type_declaration"),
		FunctionKinds: set(
			"function_declaration",
			"method_declaration",
		),
		CallKinds:   set("call_expression"),
		ImportKinds: set("import_declaration"),
		BranchKinds: set(
			"if_statement",
			"for_statement",
			"expression_switch_statement",
			"type_switch_statement",
			"select_statement",
		),
	})
}

func set(kinds ...string) map[string]bool {
	m := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		m[k] = true
	}
	return m
}
