package script

import (
	"fmt"
	"slices"

	"github.com/aretw0/docbridge/pkg/domain"
	lua "github.com/yuin/gopher-lua"
)

const (
	nodeTypeName = "docbridge.node"
	listTypeName = "docbridge.items"
)

// nodeRef and listRef are the userdata payloads. Views borrow the snapshot node;
// writes through them mutate the turn's snapshot directly.
type nodeRef struct{ node *domain.Node }

type listRef struct{ owner *domain.Node }

func (r *run) registerViews() {
	node := r.L.NewTypeMetatable(nodeTypeName)
	r.L.SetFuncs(node, map[string]lua.LGFunction{
		"__index":    r.nodeIndex,
		"__newindex": r.nodeNewIndex,
		"__tostring": nodeToString,
		"__eq":       viewsEqual,
	})

	list := r.L.NewTypeMetatable(listTypeName)
	r.L.SetFuncs(list, map[string]lua.LGFunction{
		"__index":    r.listIndex,
		"__newindex": r.listNewIndex,
		"__len":      listLen,
		"__tostring": listToString,
		"__eq":       viewsEqual,
	})
}

func (r *run) nodeView(n *domain.Node) *lua.LUserData {
	ud := r.L.NewUserData()
	ud.Value = &nodeRef{node: n}
	r.L.SetMetatable(ud, r.L.GetTypeMetatable(nodeTypeName))
	return ud
}

func (r *run) listView(owner *domain.Node) *lua.LUserData {
	ud := r.L.NewUserData()
	ud.Value = &listRef{owner: owner}
	r.L.SetMetatable(ud, r.L.GetTypeMetatable(listTypeName))
	return ud
}

func checkNode(L *lua.LState, n int) *domain.Node {
	ud := L.CheckUserData(n)
	if ref, ok := ud.Value.(*nodeRef); ok {
		return ref.node
	}
	L.ArgError(n, "item expected")
	return nil
}

func checkList(L *lua.LState, n int) *domain.Node {
	ud := L.CheckUserData(n)
	if ref, ok := ud.Value.(*listRef); ok {
		return ref.owner
	}
	L.ArgError(n, "item list expected")
	return nil
}

func (r *run) nodeIndex(L *lua.LState) int {
	node := checkNode(L, 1)
	key := L.CheckString(2)

	switch key {
	case domain.KeyName:
		L.Push(lua.LString(node.Name))
	case domain.KeyItems:
		if node.Items == nil {
			L.Push(lua.LNil)
		} else {
			L.Push(r.listView(node))
		}
	default:
		L.Push(r.toLua(node.Attrs[key]))
	}
	return 1
}

func (r *run) nodeNewIndex(L *lua.LState) int {
	node := checkNode(L, 1)
	key := L.CheckString(2)
	value := L.Get(3)

	switch key {
	case domain.KeyName:
		node.Name = lua.LVAsString(value)
	case domain.KeyItems:
		if value == lua.LNil {
			node.Items = nil
			return 0
		}
		items, err := r.toNodes(value)
		if err != nil {
			return r.raise(err)
		}
		node.Items = items
	default:
		node.Set(key, fromLua(value))
	}
	return 0
}

// toNodes accepts a list view or a sequence of templates.
func (r *run) toNodes(v lua.LValue) ([]*domain.Node, error) {
	if ud, ok := v.(*lua.LUserData); ok {
		if ref, ok := ud.Value.(*listRef); ok {
			return domain.CloneNodes(ref.owner.Items), nil
		}
	}
	tbl, ok := v.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("%w: items must be a list, got %s", domain.ErrInvalidOperation, v.Type())
	}
	items := make([]*domain.Node, 0, tbl.Len())
	for i := 1; i <= tbl.Len(); i++ {
		n, err := toNode(tbl.RawGetInt(i))
		if err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	return items, nil
}

func (r *run) listIndex(L *lua.LState) int {
	owner := checkList(L, 1)
	idx, ok := L.Get(2).(lua.LNumber)
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	i := int(idx)
	if i < 1 || i > len(owner.Items) {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(r.nodeView(owner.Items[i-1]))
	return 1
}

// listNewIndex replaces an entry, appends at #items+1, or removes on nil.
func (r *run) listNewIndex(L *lua.LState) int {
	owner := checkList(L, 1)
	i := L.CheckInt(2)
	value := L.Get(3)

	if i < 1 || i > len(owner.Items)+1 {
		return r.raise(fmt.Errorf("%w: index %d out of range for %d items", domain.ErrInvalidOperation, i, len(owner.Items)))
	}
	if value == lua.LNil {
		if i <= len(owner.Items) {
			owner.Items = slices.Delete(owner.Items, i-1, i)
		}
		return 0
	}

	n, err := toNode(value)
	if err != nil {
		return r.raise(err)
	}
	if ud, ok := value.(*lua.LUserData); ok {
		// Re-inserting an existing view keeps identity.
		if ref, ok := ud.Value.(*nodeRef); ok {
			n = ref.node
		}
	}
	if i == len(owner.Items)+1 {
		owner.Items = append(owner.Items, n)
	} else {
		owner.Items[i-1] = n
	}
	return 0
}

func listLen(L *lua.LState) int {
	L.Push(lua.LNumber(len(checkList(L, 1).Items)))
	return 1
}

func nodeToString(L *lua.LState) int {
	node := checkNode(L, 1)
	if t := node.Type(); t != "" {
		L.Push(lua.LString(fmt.Sprintf("%s(%s)", t, node.Name)))
	} else {
		L.Push(lua.LString(fmt.Sprintf("Item(%s)", node.Name)))
	}
	return 1
}

func listToString(L *lua.LState) int {
	L.Push(lua.LString(fmt.Sprintf("Items(%d)", len(checkList(L, 1).Items))))
	return 1
}

func viewsEqual(L *lua.LState) int {
	a, okA := L.Get(1).(*lua.LUserData)
	b, okB := L.Get(2).(*lua.LUserData)
	if !okA || !okB {
		L.Push(lua.LFalse)
		return 1
	}
	switch x := a.Value.(type) {
	case *nodeRef:
		y, ok := b.Value.(*nodeRef)
		L.Push(lua.LBool(ok && x.node == y.node))
	case *listRef:
		y, ok := b.Value.(*listRef)
		L.Push(lua.LBool(ok && x.owner == y.owner))
	default:
		L.Push(lua.LFalse)
	}
	return 1
}
