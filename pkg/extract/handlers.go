package extract

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/fridayops/crossing/pkg/models"
)

// handleTry records one HandlerSite per except clause of a try statement. A
// clause listing several types keeps them as ordered catch-arms on the one
// site; clauses of the same try share one guarded region.
func (w *walker) handleTry(node *sitter.Node, sc *scope) {
	var guarded models.Span
	if body := node.ChildByFieldName("body"); body != nil {
		guarded = models.Span{
			StartLine: int(body.StartPoint().Row) + 1,
			EndLine:   int(body.EndPoint().Row) + 1,
		}
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		clause := node.Child(i)
		if clause.Type() != "except_clause" {
			continue
		}
		site := models.HandlerSite{
			Location:          w.location(clause),
			EnclosingFunction: sc.fn.Qualified,
			CaughtTypes:       w.caughtTypes(clause),
			GuardedRegion:     guarded,
			Disposition:       w.classifyDisposition(clause),
		}
		sc.fn.HandlerSites = append(sc.fn.HandlerSites, site)
	}
}

// caughtTypes returns the ordered type names an except clause intercepts.
// A bare except intercepts everything and is modeled as BaseException.
func (w *walker) caughtTypes(clause *sitter.Node) []string {
	for i := 0; i < int(clause.ChildCount()); i++ {
		child := clause.Child(i)
		switch child.Type() {
		case "except", ":", "block", "comment":
			continue
		case "as":
			continue
		case "identifier", "attribute":
			return []string{w.text(child)}
		case "tuple":
			return w.tupleTypes(child)
		case "parenthesized_expression":
			if child.NamedChildCount() == 1 {
				inner := child.NamedChild(0)
				if inner.Type() == "tuple" {
					return w.tupleTypes(inner)
				}
				return []string{w.text(inner)}
			}
		case "as_pattern":
			// except E as e: the caught expression is the first child.
			if child.NamedChildCount() > 0 {
				inner := child.NamedChild(0)
				switch inner.Type() {
				case "identifier", "attribute":
					return []string{w.text(inner)}
				case "tuple":
					return w.tupleTypes(inner)
				case "parenthesized_expression":
					if inner.NamedChildCount() == 1 && inner.NamedChild(0).Type() == "tuple" {
						return w.tupleTypes(inner.NamedChild(0))
					}
				}
			}
		}
	}
	return []string{"BaseException"}
}

func (w *walker) tupleTypes(tuple *sitter.Node) []string {
	var names []string
	for i := 0; i < int(tuple.NamedChildCount()); i++ {
		el := tuple.NamedChild(i)
		if el.Type() == "identifier" || el.Type() == "attribute" {
			names = append(names, w.text(el))
		}
	}
	if len(names) == 0 {
		return []string{"BaseException"}
	}
	return names
}

// classifyDisposition inspects a handler body and classifies what it does
// with the caught error. Re-raise forms win over value-producing forms.
func (w *walker) classifyDisposition(clause *sitter.Node) models.Disposition {
	var body *sitter.Node
	for i := int(clause.ChildCount()) - 1; i >= 0; i-- {
		if clause.Child(i).Type() == "block" {
			body = clause.Child(i)
			break
		}
	}
	if body == nil {
		return models.DispositionSuppress
	}

	var bareRaise, typedRaise, returns, assigns bool
	scanHandlerBody(body, &bareRaise, &typedRaise, &returns, &assigns, w.content)

	switch {
	case bareRaise:
		return models.DispositionReraise
	case typedRaise:
		return models.DispositionTransformReraise
	case returns:
		return models.DispositionReturnDefault
	case assigns:
		return models.DispositionAssignDefault
	default:
		return models.DispositionSuppress
	}
}

// scanHandlerBody walks a handler body without descending into nested
// function or class definitions, which run in a different frame.
func scanHandlerBody(node *sitter.Node, bareRaise, typedRaise, returns, assigns *bool, content []byte) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "function_definition", "class_definition", "decorated_definition":
			continue
		case "raise_statement":
			if raisedTypeName(child, content) == "" {
				*bareRaise = true
			} else {
				*typedRaise = true
			}
		case "return_statement":
			*returns = true
		case "assignment", "augmented_assignment":
			*assigns = true
		}
		scanHandlerBody(child, bareRaise, typedRaise, returns, assigns, content)
	}
}
