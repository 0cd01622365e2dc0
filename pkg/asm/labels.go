package asm

// LabelTable maps case-sensitive label names to byte offsets. It is filled by
// pass 1 and only read afterwards.
type LabelTable struct {
	addrs map[string]uint32
	names []string
}

func newLabelTable() *LabelTable {
	return &LabelTable{addrs: make(map[string]uint32)}
}

func (t *LabelTable) define(name string, addr uint32, lineNo int) error {
	if _, exists := t.addrs[name]; exists {
		return &DuplicateLabelError{Label: name, Line: lineNo}
	}
	t.addrs[name] = addr
	t.names = append(t.names, name)
	return nil
}

// Lookup returns the address bound to name.
func (t *LabelTable) Lookup(name string) (uint32, bool) {
	addr, ok := t.addrs[name]
	return addr, ok
}

// Names returns label names in declaration order.
func (t *LabelTable) Names() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

func (t *LabelTable) Len() int {
	return len(t.names)
}

// ByAddress groups label names by the address they point at, keeping
// declaration order within each address.
func (t *LabelTable) ByAddress() map[uint32][]string {
	out := make(map[uint32][]string, len(t.names))
	for _, name := range t.names {
		addr := t.addrs[name]
		out[addr] = append(out[addr], name)
	}
	return out
}
