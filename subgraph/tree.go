package subgraph

import "github.com/sbl8/attrgraph/core"

// TreeValue is one (name, attribute, type) tuple attached to a tree element
// via AddTreeValue.
type TreeValue struct {
	Name      string
	Attribute core.AttributeID
	TypeID    uint32
}

// TreeElement is spec.md §5's optional tree annotation: a named scope,
// bracketed by BeginTreeElement/EndTreeElement, whose Members are the
// attributes passed to AddTreeValue while it was current. Attributes created
// with AddAttribute while it is current are not recorded.
type TreeElement struct {
	Name     string
	TypeID   uint32
	Parent   *TreeElement
	Children []*TreeElement
	Values   []TreeValue
	Members  []core.AttributeID
}

// BeginTreeElement pushes a new tree element named name onto s's current
// tree root, nesting it under whatever element is currently open.
func (s *Subgraph) BeginTreeElement(name string, typeID uint32) *TreeElement {
	s.mu.Lock()
	defer s.mu.Unlock()

	el := &TreeElement{Name: name, TypeID: typeID, Parent: s.treeRoot}
	if s.treeRoot != nil {
		s.treeRoot.Children = append(s.treeRoot.Children, el)
	}
	s.treeRoot = el
	return el
}

// EndTreeElement closes el, restoring its parent as the current tree root.
// Trapping on mismatch catches an unbalanced begin/end pair rather than
// silently corrupting the tree (spec.md §7).
func (s *Subgraph) EndTreeElement(el *TreeElement) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.treeRoot != el {
		core.Trap("subgraph: EndTreeElement called out of order")
	}
	s.treeRoot = el.Parent
}

// AddTreeValue attaches a (name, attribute, type) tuple to the currently
// open tree element. It is a no-op when no element is open, matching the
// source library's "tree annotation is best-effort" posture.
func (s *Subgraph) AddTreeValue(name string, attribute core.AttributeID, typeID uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.treeRoot == nil {
		return
	}
	s.treeRoot.Values = append(s.treeRoot.Values, TreeValue{Name: name, Attribute: attribute, TypeID: typeID})
	s.treeRoot.Members = append(s.treeRoot.Members, attribute)
}

// CurrentTreeElement returns the tree element currently open on s, or nil.
func (s *Subgraph) CurrentTreeElement() *TreeElement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.treeRoot
}
