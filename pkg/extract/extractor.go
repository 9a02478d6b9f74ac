package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/fridayops/crossing/pkg/models"
)

// DefaultMaxFileSize is the largest source file the extractor will accept.
const DefaultMaxFileSize = 10 * 1024 * 1024

// Extractor builds per-file program model facts from Python source. Each
// ExtractFile call creates its own tree-sitter parser instance, so a single
// Extractor is safe for concurrent use across files.
type Extractor struct {
	logger         *slog.Logger
	detectImplicit bool
	maxFileSize    int64
}

// NewExtractor creates an extractor. When detectImplicit is set, structural
// raise sites (required-key lookups, iterator exhaustion, required-attribute
// access, value conversions) are modeled alongside explicit raise statements.
func NewExtractor(logger *slog.Logger, detectImplicit bool) *Extractor {
	return &Extractor{
		logger:         logger,
		detectImplicit: detectImplicit,
		maxFileSize:    DefaultMaxFileSize,
	}
}

// ExtractFile parses one source file and returns its facts. A non-nil error
// means the file is unusable (too large, not UTF-8, or syntactically broken)
// and should be recorded as a parse failure; it never aborts the run.
func (e *Extractor) ExtractFile(ctx context.Context, path, module string, content []byte) (*models.FileFacts, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("extraction canceled: %w", err)
	}
	if int64(len(content)) > e.maxFileSize {
		return nil, fmt.Errorf("file exceeds size limit (%d bytes)", len(content))
	}
	if !utf8.Valid(content) {
		return nil, fmt.Errorf("content is not valid UTF-8")
	}

	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return nil, fmt.Errorf("parser returned no syntax tree")
	}
	if root.HasError() {
		return nil, fmt.Errorf("source contains syntax errors")
	}

	facts := &models.FileFacts{
		Path:   path,
		Module: module,
	}

	w := &walker{
		content:  content,
		path:     path,
		module:   module,
		facts:    facts,
		implicit: e.detectImplicit,
	}

	// Top-level statements belong to the per-file module pseudo-function.
	moduleFn := w.newFunction(models.ModuleFunction, module, "", root)
	w.facts.Functions = append(w.facts.Functions, moduleFn)
	w.visit(root, &scope{fn: moduleFn, prefix: module}, false)

	e.logger.Debug("extracted file",
		"file", path,
		"functions", len(facts.Functions),
		"classes", len(facts.Classes),
		"imports", len(facts.Imports))

	return facts, nil
}

// scope carries the naming context while walking one file.
type scope struct {
	fn     *models.FunctionNode
	prefix string // qualified prefix for definitions at this level
	class  string // innermost class name, "" outside class bodies
}

type walker struct {
	content  []byte
	path     string
	module   string
	facts    *models.FileFacts
	implicit bool
}

func (w *walker) text(n *sitter.Node) string {
	return string(w.content[n.StartByte():n.EndByte()])
}

func (w *walker) location(n *sitter.Node) models.Location {
	return models.Location{
		File:   w.path,
		Line:   int(n.StartPoint().Row) + 1,
		Column: int(n.StartPoint().Column),
	}
}

func (w *walker) newFunction(name, module, class string, node *sitter.Node) *models.FunctionNode {
	qualified := name
	if module != "" {
		qualified = module + "." + name
	}
	return &models.FunctionNode{
		Qualified:          qualified,
		Name:               name,
		Module:             w.module,
		Class:              class,
		Location:           w.location(node),
		LocalConstructions: map[string]string{},
	}
}

// visit walks a subtree collecting facts. store marks subscript/attribute
// positions that are assignment targets, which are not raise sites.
func (w *walker) visit(node *sitter.Node, sc *scope, store bool) {
	switch node.Type() {
	case "function_definition":
		w.handleFunction(node, sc, nil)
	case "class_definition":
		w.handleClass(node, sc, nil)
	case "decorated_definition":
		w.handleDecorated(node, sc)
	case "import_statement":
		w.handleImport(node)
	case "import_from_statement":
		w.handleImportFrom(node)
	case "try_statement":
		w.handleTry(node, sc)
		w.visitChildren(node, sc, store)
	case "raise_statement":
		w.handleRaise(node, sc)
	case "call":
		w.handleCall(node, sc)
	case "subscript":
		if !store && w.implicit {
			w.addRaise(node, sc, "KeyError", models.OriginKeyLookup, "")
		}
		w.visitChildren(node, sc, false)
	case "assignment", "augmented_assignment":
		w.handleAssignment(node, sc)
	case "delete_statement":
		w.visitChildren(node, sc, true)
	default:
		w.visitChildren(node, sc, store)
	}
}

func (w *walker) visitChildren(node *sitter.Node, sc *scope, store bool) {
	for i := 0; i < int(node.ChildCount()); i++ {
		w.visit(node.Child(i), sc, store)
	}
}

func (w *walker) handleDecorated(node *sitter.Node, sc *scope) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "function_definition":
			w.handleFunction(child, sc, nil)
		case "class_definition":
			w.handleClass(child, sc, nil)
		}
	}
}

func (w *walker) handleFunction(node *sitter.Node, sc *scope, _ []string) {
	nameNode := node.ChildByFieldName("name")
	body := node.ChildByFieldName("body")
	if nameNode == nil || body == nil {
		return
	}
	name := w.text(nameNode)

	fn := w.newFunction(name, sc.prefix, sc.class, node)
	fn.Abstract = isNotImplementedStub(body, w.content)
	w.facts.Functions = append(w.facts.Functions, fn)

	inner := &scope{fn: fn, prefix: fn.Qualified}
	w.visitChildren(body, inner, false)
}

func (w *walker) handleClass(node *sitter.Node, sc *scope, _ []string) {
	nameNode := node.ChildByFieldName("name")
	body := node.ChildByFieldName("body")
	if nameNode == nil {
		return
	}
	name := w.text(nameNode)

	decl := models.ClassDecl{
		Name:     name,
		Module:   w.module,
		Location: w.location(node),
	}
	if supers := node.ChildByFieldName("superclasses"); supers != nil {
		for i := 0; i < int(supers.ChildCount()); i++ {
			arg := supers.Child(i)
			if arg.Type() == "identifier" || arg.Type() == "attribute" {
				decl.Bases = append(decl.Bases, w.text(arg))
			}
		}
	}
	w.facts.Classes = append(w.facts.Classes, decl)

	if body != nil {
		qualified := name
		if sc.prefix != "" {
			qualified = sc.prefix + "." + name
		}
		// Class-body statements outside methods still execute in the
		// enclosing function's frame.
		inner := &scope{fn: sc.fn, prefix: qualified, class: name}
		w.visitChildren(body, inner, false)
	}
}

func (w *walker) handleAssignment(node *sitter.Node, sc *scope) {
	left := node.ChildByFieldName("left")
	right := node.ChildByFieldName("right")

	if left != nil && right != nil && left.Type() == "identifier" && right.Type() == "call" {
		if fnNode := right.ChildByFieldName("function"); fnNode != nil && fnNode.Type() == "identifier" {
			sc.fn.LocalConstructions[w.text(left)] = w.text(fnNode)
		}
	}

	if left != nil {
		w.visit(left, sc, true)
	}
	if right != nil {
		w.visit(right, sc, false)
	}
}

func (w *walker) addRaise(node *sitter.Node, sc *scope, typeName string, origin models.OriginKind, message string) {
	sc.fn.RaiseSites = append(sc.fn.RaiseSites, models.RaiseSite{
		Location:          w.location(node),
		EnclosingFunction: sc.fn.Qualified,
		TypeName:          typeName,
		Origin:            origin,
		Message:           message,
		Context:           w.controlContext(node, sc.fn.Name),
	})
}

// controlContext returns the nearest enclosing control-flow condition of a
// raise, as written in the source. A raise with no enclosing condition gets
// "in <function>" so findings always carry something to show.
func (w *walker) controlContext(node *sitter.Node, fnName string) string {
	child := node
	for n := node.Parent(); n != nil; n = n.Parent() {
		switch n.Type() {
		case "function_definition", "class_definition", "module":
			return "in " + fnName
		case "elif_clause":
			if cond := n.ChildByFieldName("condition"); cond != nil {
				return "elif " + w.text(cond)
			}
		case "while_statement":
			if cond := n.ChildByFieldName("condition"); cond != nil {
				return "while " + w.text(cond)
			}
		case "if_statement":
			// An else branch runs when the condition is false; keep climbing.
			if child.Type() != "else_clause" {
				if cond := n.ChildByFieldName("condition"); cond != nil {
					return "if " + w.text(cond)
				}
			}
		case "for_statement":
			left := n.ChildByFieldName("left")
			right := n.ChildByFieldName("right")
			if left != nil && right != nil {
				return "for " + w.text(left) + " in " + w.text(right)
			}
		}
		child = n
	}
	return "in " + fnName
}

// isNotImplementedStub reports whether a function body consists only of a
// NotImplementedError raise, with an optional leading docstring.
func isNotImplementedStub(body *sitter.Node, content []byte) bool {
	var stmts []*sitter.Node
	for i := 0; i < int(body.NamedChildCount()); i++ {
		stmts = append(stmts, body.NamedChild(i))
	}
	if len(stmts) > 0 && stmts[0].Type() == "expression_statement" &&
		stmts[0].NamedChildCount() > 0 && stmts[0].NamedChild(0).Type() == "string" {
		stmts = stmts[1:] // docstring
	}
	if len(stmts) != 1 || stmts[0].Type() != "raise_statement" {
		return false
	}
	name := raisedTypeName(stmts[0], content)
	return name == "NotImplementedError"
}

// raisedTypeName returns the error type name of a raise statement as written,
// or "" for a bare re-raise.
func raisedTypeName(raise *sitter.Node, content []byte) string {
	for i := 0; i < int(raise.ChildCount()); i++ {
		child := raise.Child(i)
		switch child.Type() {
		case "raise", "from", "comment":
			continue
		case "identifier", "attribute":
			return string(content[child.StartByte():child.EndByte()])
		case "call":
			if fn := child.ChildByFieldName("function"); fn != nil {
				return string(content[fn.StartByte():fn.EndByte()])
			}
			return ""
		default:
			// First expression child decides; "from" causes come later.
			return ""
		}
	}
	return ""
}

// literalMessage extracts the plain string-literal first argument of a raise
// call, or "" when the argument is absent or not a literal (f-strings and
// interpolated values carry no stable template).
func literalMessage(call *sitter.Node, content []byte) string {
	args := call.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() == 0 {
		return ""
	}
	first := args.NamedChild(0)
	if first.Type() != "string" {
		return ""
	}
	raw := string(content[first.StartByte():first.EndByte()])
	if !strings.HasPrefix(raw, `"`) && !strings.HasPrefix(raw, `'`) {
		return "" // prefixed string: f-string, raw, bytes
	}
	return strings.Trim(raw, `"'`)
}
