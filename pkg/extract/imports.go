package extract

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/fridayops/crossing/pkg/models"
)

// handleImport handles 'import foo' and 'import foo as bar' style imports.
// The local binding for a dotted 'import a.b' is its top package name.
func (w *walker) handleImport(node *sitter.Node) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "dotted_name":
			path := w.text(child)
			alias := path
			if idx := strings.Index(path, "."); idx >= 0 {
				alias = path[:idx]
			}
			w.facts.Imports = append(w.facts.Imports, models.ImportRecord{
				Module: path,
				Alias:  alias,
			})
		case "aliased_import":
			var path, alias string
			for j := 0; j < int(child.ChildCount()); j++ {
				grandchild := child.Child(j)
				switch grandchild.Type() {
				case "dotted_name":
					path = w.text(grandchild)
				case "identifier":
					alias = w.text(grandchild)
				}
			}
			if path != "" {
				w.facts.Imports = append(w.facts.Imports, models.ImportRecord{
					Module: path,
					Alias:  alias,
				})
			}
		}
	}
}

// handleImportFrom handles 'from x import y [as z]' style imports, including
// relative and wildcard forms.
func (w *walker) handleImportFrom(node *sitter.Node) {
	var modulePath string
	var isRelative, isWildcard, sawImport bool
	type binding struct{ name, alias string }
	var names []binding

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "from":
		case "import":
			sawImport = true
		case "relative_import":
			isRelative = true
			modulePath = w.text(child)
		case "dotted_name":
			name := w.text(child)
			if !sawImport {
				modulePath = name
			} else {
				names = append(names, binding{name: name, alias: name})
			}
		case "wildcard_import":
			isWildcard = true
		case "aliased_import":
			var importName, alias string
			for j := 0; j < int(child.ChildCount()); j++ {
				grandchild := child.Child(j)
				switch grandchild.Type() {
				case "dotted_name":
					if importName == "" {
						importName = w.text(grandchild)
					}
				case "identifier":
					if importName == "" {
						importName = w.text(grandchild)
					} else {
						alias = w.text(grandchild)
					}
				}
			}
			if importName != "" {
				if alias == "" {
					alias = importName
				}
				names = append(names, binding{name: importName, alias: alias})
			}
		case "identifier":
			if sawImport {
				name := w.text(child)
				names = append(names, binding{name: name, alias: name})
			}
		}
	}

	if modulePath == "" && !isRelative {
		return
	}
	if modulePath == "" {
		modulePath = "."
	}

	if isWildcard {
		w.facts.Imports = append(w.facts.Imports, models.ImportRecord{
			Module:     modulePath,
			IsRelative: isRelative,
			IsWildcard: true,
		})
		return
	}
	for _, b := range names {
		w.facts.Imports = append(w.facts.Imports, models.ImportRecord{
			Module:     modulePath,
			Name:       b.name,
			Alias:      b.alias,
			IsRelative: isRelative,
		})
	}
}
