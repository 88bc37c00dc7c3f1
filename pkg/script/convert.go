package script

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/aretw0/docbridge/pkg/domain"
	lua "github.com/yuin/gopher-lua"
)

// toLua converts a Go value into a Lua value. Nodes become live views.
func (r *run) toLua(v any) lua.LValue {
	switch t := v.(type) {
	case nil:
		return lua.LNil
	case lua.LValue:
		return t
	case bool:
		return lua.LBool(t)
	case string:
		return lua.LString(t)
	case int:
		return lua.LNumber(t)
	case int32:
		return lua.LNumber(t)
	case int64:
		return lua.LNumber(t)
	case uint:
		return lua.LNumber(t)
	case uint64:
		return lua.LNumber(t)
	case float32:
		return lua.LNumber(t)
	case float64:
		return lua.LNumber(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return lua.LString(t.String())
		}
		return lua.LNumber(f)
	case *domain.Node:
		if t == nil {
			return lua.LNil
		}
		return r.nodeView(t)
	case []*domain.Node:
		tbl := r.L.CreateTable(len(t), 0)
		for _, n := range t {
			tbl.Append(r.nodeView(n))
		}
		return tbl
	case []any:
		tbl := r.L.CreateTable(len(t), 0)
		for _, item := range t {
			tbl.Append(r.toLua(item))
		}
		return tbl
	case []string:
		tbl := r.L.CreateTable(len(t), 0)
		for _, item := range t {
			tbl.Append(lua.LString(item))
		}
		return tbl
	case map[string]any:
		tbl := r.L.CreateTable(0, len(t))
		for k, item := range t {
			tbl.RawSetString(k, r.toLua(item))
		}
		return tbl
	default:
		return lua.LString(fmt.Sprint(t))
	}
}

// fromLua converts a Lua value into plain Go data. Integral numbers become int64,
// sequences become []any and other tables map[string]any. Functions are dropped.
func fromLua(v lua.LValue) any {
	switch t := v.(type) {
	case lua.LBool:
		return bool(t)
	case lua.LString:
		return string(t)
	case lua.LNumber:
		f := float64(t)
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return int64(f)
		}
		return f
	case *lua.LTable:
		return tableToGo(t)
	case *lua.LUserData:
		switch view := t.Value.(type) {
		case *nodeRef:
			return view.node.ToMap()
		case *listRef:
			return fromNodes(view.owner.Items)
		}
		return nil
	default:
		return nil
	}
}

func fromNodes(nodes []*domain.Node) []any {
	out := make([]any, len(nodes))
	for i, n := range nodes {
		out[i] = n.ToMap()
	}
	return out
}

func tableToGo(t *lua.LTable) any {
	n := t.Len()
	count := 0
	t.ForEach(func(_, _ lua.LValue) { count++ })

	if n > 0 && n == count {
		list := make([]any, 0, n)
		for i := 1; i <= n; i++ {
			list = append(list, fromLua(t.RawGetInt(i)))
		}
		return list
	}

	m := make(map[string]any, count)
	t.ForEach(func(k, v lua.LValue) {
		var key string
		switch kk := k.(type) {
		case lua.LString:
			key = string(kk)
		case lua.LNumber:
			key = strconv.FormatFloat(float64(kk), 'f', -1, 64)
		default:
			return
		}
		if value := fromLua(v); value != nil {
			m[key] = value
		}
	})
	return m
}

// toNode builds a detached node from a template table or copies an existing view.
func toNode(v lua.LValue) (*domain.Node, error) {
	switch t := v.(type) {
	case *lua.LNilType:
		return domain.NewNode("", nil), nil
	case *lua.LTable:
		m, ok := tableToGo(t).(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: item template must be a table of fields, not a list", domain.ErrInvalidOperation)
		}
		return domain.NodeFromMap(m)
	case *lua.LUserData:
		if ref, ok := t.Value.(*nodeRef); ok {
			return ref.node.Clone(), nil
		}
	}
	return nil, fmt.Errorf("%w: cannot use a %s as an item", domain.ErrInvalidOperation, v.Type())
}

// encodeJSON renders a value for console output.
func encodeJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
