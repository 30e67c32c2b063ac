package renderer

import (
	"fmt"
	"sort"
	"text/template/parse"
)

var builtinFuncs = map[string]struct{}{
	"and": {}, "call": {}, "html": {}, "index": {}, "slice": {}, "js": {},
	"len": {}, "not": {}, "or": {}, "print": {}, "printf": {}, "println": {},
	"urlquery": {}, "eq": {}, "ge": {}, "gt": {}, "le": {}, "lt": {}, "ne": {},
}

// FreeVariables parses src without executing it and returns, sorted, the
// names of the root-level variables it reads. A name counts when it is used
// as {{ .name }}, {{ $.name }}, {{ index . "name" }} or as a bare {{ name }}
// that no filter answers to. Templates invoked with the root dot, whether
// defined inline or loaded into the environment, are followed. Bare names
// count anywhere in src, including definitions that are never invoked.
func (e *Environment) FreeVariables(name, src string) ([]string, error) {
	trees := make(map[string]*parse.Tree)
	tree := parse.New(name)
	tree.Mode = parse.SkipFuncCheck
	if _, err := tree.Parse(src, "", "", trees); err != nil {
		return nil, fmt.Errorf("failed to parse template '%s': %w", name, err)
	}

	w := &varWalker{
		env:     e,
		local:   trees,
		free:    make(map[string]struct{}),
		visited: make(map[string]bool),
	}
	if root, ok := trees[name]; ok && root.Root != nil {
		w.visited[visitKey(name, true)] = true
		w.walk(root.Root, true, true)
	}
	// Definitions that are never invoked are not executed, but a bare name
	// in them must still resolve for the template to parse.
	for n := range trees {
		if !w.visited[visitKey(n, true)] && !w.visited[visitKey(n, false)] {
			w.template(n, false)
		}
	}

	names := make([]string, 0, len(w.free))
	for n := range w.free {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

type varWalker struct {
	env     *Environment
	local   map[string]*parse.Tree
	free    map[string]struct{}
	visited map[string]bool
}

func visitKey(name string, root bool) string {
	if root {
		return "root:" + name
	}
	return "nested:" + name
}

// walk visits node. dot reports whether "." still refers to the render
// data; dollar reports the same for "$".
func (w *varWalker) walk(node parse.Node, dot, dollar bool) {
	switch n := node.(type) {
	case *parse.ListNode:
		if n == nil {
			return
		}
		for _, child := range n.Nodes {
			w.walk(child, dot, dollar)
		}
	case *parse.ActionNode:
		w.pipe(n.Pipe, dot, dollar)
	case *parse.IfNode:
		w.pipe(n.Pipe, dot, dollar)
		w.walk(n.List, dot, dollar)
		w.walk(n.ElseList, dot, dollar)
	case *parse.RangeNode:
		w.pipe(n.Pipe, dot, dollar)
		w.walk(n.List, false, dollar)
		w.walk(n.ElseList, dot, dollar)
	case *parse.WithNode:
		w.pipe(n.Pipe, dot, dollar)
		w.walk(n.List, false, dollar)
		w.walk(n.ElseList, dot, dollar)
	case *parse.TemplateNode:
		root := false
		if n.Pipe != nil {
			w.pipe(n.Pipe, dot, dollar)
			root = isRootPipe(n.Pipe, dot, dollar)
		}
		w.template(n.Name, root)
	}
}

func (w *varWalker) template(name string, root bool) {
	key := visitKey(name, root)
	if w.visited[key] {
		return
	}
	w.visited[key] = true

	tree := w.local[name]
	if tree == nil {
		if t := w.env.base.Lookup(name); t != nil {
			tree = t.Tree
		}
	}
	if tree == nil || tree.Root == nil {
		return
	}
	w.walk(tree.Root, root, root)
}

func (w *varWalker) pipe(p *parse.PipeNode, dot, dollar bool) {
	if p == nil {
		return
	}
	for _, cmd := range p.Cmds {
		if key, ok := indexedKey(cmd, dot, dollar); ok {
			w.free[key] = struct{}{}
		}
		for _, arg := range cmd.Args {
			w.arg(arg, dot, dollar)
		}
	}
}

func (w *varWalker) arg(node parse.Node, dot, dollar bool) {
	switch n := node.(type) {
	case *parse.IdentifierNode:
		if !w.env.IsFunc(n.Ident) {
			w.free[n.Ident] = struct{}{}
		}
	case *parse.FieldNode:
		if dot && len(n.Ident) > 0 {
			w.free[n.Ident[0]] = struct{}{}
		}
	case *parse.VariableNode:
		if dollar && len(n.Ident) > 1 && n.Ident[0] == "$" {
			w.free[n.Ident[1]] = struct{}{}
		}
	case *parse.ChainNode:
		w.arg(n.Node, dot, dollar)
	case *parse.PipeNode:
		w.pipe(n, dot, dollar)
	}
}

// indexedKey recognises {{ index . "key" }} and {{ index $ "key" }}.
func indexedKey(cmd *parse.CommandNode, dot, dollar bool) (string, bool) {
	if len(cmd.Args) < 3 {
		return "", false
	}
	fn, ok := cmd.Args[0].(*parse.IdentifierNode)
	if !ok || fn.Ident != "index" || !isRootRef(cmd.Args[1], dot, dollar) {
		return "", false
	}
	key, ok := cmd.Args[2].(*parse.StringNode)
	if !ok {
		return "", false
	}
	return key.Text, true
}

func isRootPipe(p *parse.PipeNode, dot, dollar bool) bool {
	if len(p.Decl) > 0 || len(p.Cmds) != 1 || len(p.Cmds[0].Args) != 1 {
		return false
	}
	return isRootRef(p.Cmds[0].Args[0], dot, dollar)
}

func isRootRef(node parse.Node, dot, dollar bool) bool {
	switch n := node.(type) {
	case *parse.DotNode:
		return dot
	case *parse.VariableNode:
		return dollar && len(n.Ident) == 1 && n.Ident[0] == "$"
	}
	return false
}
