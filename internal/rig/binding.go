package rig

// Binding is how the pose synthesizer reaches a rig, resolved once per bind:
// Bound when a head or chest exists, Unbound when only the root can move,
// Detached when nothing can.
type Binding interface {
	isBinding()
}

// Bound drives individual bones. Either field may be nil.
type Bound struct {
	Head  *Node
	Chest *Node
}

// Unbound sways the whole rig from its root.
type Unbound struct {
	Root *Node
}

// Detached has nothing to move.
type Detached struct{}

func (Bound) isBinding()    {}
func (Unbound) isBinding()  {}
func (Detached) isBinding() {}

// Bind resolves the binding for r. The chest falls back to upperChest.
func Bind(r Rig) Binding {
	if r == nil {
		return Detached{}
	}

	head, _ := r.Bone(Head)
	chest, ok := r.Bone(Chest)
	if !ok {
		chest, _ = r.Bone(UpperChest)
	}
	if head != nil || chest != nil {
		return Bound{Head: head, Chest: chest}
	}

	if root, ok := r.Root(); ok {
		return Unbound{Root: root}
	}
	return Detached{}
}
