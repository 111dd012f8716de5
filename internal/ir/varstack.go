package ir

import "peach/internal/types"

// VarStack is the compile-time symbol table of one function body. Decls
// only grows; visible holds indices into Decls for the names currently in
// scope, innermost last.
type VarStack struct {
	Decls   []VarDecl
	visible []int
}

// Add declares a new variable and returns its slot.
func (s *VarStack) Add(name string, ty types.Ty) int {
	s.Decls = append(s.Decls, VarDecl{Name: name, Ty: ty})
	slot := len(s.Decls) - 1
	s.visible = append(s.visible, slot)
	return slot
}

// Find returns the slot of the innermost visible variable called name.
func (s *VarStack) Find(name string) (int, bool) {
	for i := len(s.visible) - 1; i >= 0; i-- {
		if slot := s.visible[i]; s.Decls[slot].Name == name {
			return slot, true
		}
	}
	return 0, false
}

func (s *VarStack) Ty(slot int) types.Ty {
	return s.Decls[slot].Ty
}

// SetTy refines the type of a slot declared without one.
func (s *VarStack) SetTy(slot int, ty types.Ty) {
	s.Decls[slot].Ty = ty
}

// Mark records the current visibility depth for a later Truncate.
func (s *VarStack) Mark() int {
	return len(s.visible)
}

// Truncate hides every variable declared since mark.
func (s *VarStack) Truncate(mark int) {
	if mark < len(s.visible) {
		s.visible = s.visible[:mark]
	}
}

// Visible returns the names currently in scope, outermost first.
func (s *VarStack) Visible() []string {
	out := make([]string, 0, len(s.visible))
	for _, slot := range s.visible {
		out = append(out, s.Decls[slot].Name)
	}
	return out
}

// Snapshot captures the stack so a failed REPL input can be undone,
// including types refined by assignment since.
type Snapshot struct {
	decls, visible int
	tys            []types.Ty
}

func (s *VarStack) Snapshot() Snapshot {
	tys := make([]types.Ty, len(s.Decls))
	for i, d := range s.Decls {
		tys[i] = d.Ty
	}
	return Snapshot{decls: len(s.Decls), visible: len(s.visible), tys: tys}
}

// Restore drops everything declared after snap was taken and resets the
// types of the variables that remain.
func (s *VarStack) Restore(snap Snapshot) {
	if snap.decls < len(s.Decls) {
		s.Decls = s.Decls[:snap.decls]
	}
	if snap.visible < len(s.visible) {
		s.visible = s.visible[:snap.visible]
	}
	for i, ty := range snap.tys {
		if i < len(s.Decls) {
			s.Decls[i].Ty = ty
		}
	}
}
