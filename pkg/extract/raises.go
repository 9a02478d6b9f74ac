package extract

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/fridayops/crossing/pkg/models"
)

// handleRaise records an explicit raise site. A bare raise carries no type
// name; it is the re-raise marker inside a handler, not a new site.
func (w *walker) handleRaise(node *sitter.Node, sc *scope) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "raise", "comment":
			continue
		case "from":
			// The cause expression may itself contain calls.
			return
		case "identifier", "attribute":
			w.addRaise(node, sc, w.text(child), models.OriginExplicit, "")
			return
		case "call":
			fn := child.ChildByFieldName("function")
			if fn == nil {
				return
			}
			w.addRaise(node, sc, w.text(fn), models.OriginExplicit, literalMessage(child, w.content))
			// Arguments may contain nested calls or lookups.
			if args := child.ChildByFieldName("arguments"); args != nil {
				w.visitChildren(args, sc, false)
			}
			return
		default:
			return
		}
	}
}

// handleCall records a call site and, when implicit detection is on, the
// structural raise sites hiding behind well-known call shapes.
func (w *walker) handleCall(node *sitter.Node, sc *scope) {
	fn := node.ChildByFieldName("function")
	args := node.ChildByFieldName("arguments")
	if fn == nil {
		return
	}

	argCount := 0
	if args != nil {
		argCount = int(args.NamedChildCount())
	}

	switch fn.Type() {
	case "identifier":
		name := w.text(fn)
		sc.fn.CallSites = append(sc.fn.CallSites, models.CallSite{
			Location: w.location(node),
			Callee:   name,
			ArgCount: argCount,
		})
		if w.implicit {
			w.checkImplicitCall(node, sc, name, argCount)
		}
	case "attribute":
		object := fn.ChildByFieldName("object")
		attr := fn.ChildByFieldName("attribute")
		if attr == nil {
			break
		}
		// The receiver keeps the object expression as written. A dotted
		// path like a.b stays resolvable as a module; anything else can
		// never collide with a plain local name.
		receiver := ""
		if object != nil {
			receiver = w.text(object)
		}
		method := w.text(attr)
		sc.fn.CallSites = append(sc.fn.CallSites, models.CallSite{
			Location: w.location(node),
			Callee:   method,
			Receiver: receiver,
			ArgCount: argCount,
		})
		if w.implicit && method == "index" {
			w.addRaise(node, sc, "ValueError", models.OriginConversion, "")
		}
		if object != nil && object.Type() != "identifier" {
			// Chained receivers may contain further calls.
			w.visit(object, sc, false)
		}
	default:
		// Calling the result of another expression; keep walking it.
		w.visit(fn, sc, false)
	}

	if args != nil {
		w.visitChildren(args, sc, false)
	}
}

// checkImplicitCall models the built-in call shapes that raise without any
// raise statement at the call's location.
func (w *walker) checkImplicitCall(node *sitter.Node, sc *scope, name string, argCount int) {
	switch name {
	case "next":
		// next(it, default) never raises StopIteration.
		if argCount == 1 {
			w.addRaise(node, sc, "StopIteration", models.OriginIteration, "")
		}
	case "getattr":
		// getattr(obj, name, default) never raises AttributeError.
		if argCount == 2 {
			w.addRaise(node, sc, "AttributeError", models.OriginAttribute, "")
		}
	case "int", "float":
		// int() / float() without arguments return zero values.
		if argCount >= 1 {
			w.addRaise(node, sc, "ValueError", models.OriginConversion, "")
		}
	}
}
