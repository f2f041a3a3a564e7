// Package dsl compiles a small text format directly into a wired graph of
// int32 attributes, instead of the teacher compiler's binary .subl model.
//
// Grounded on the teacher's compiler.parseSpec / dslParser: the same
// line-oriented scan (blank lines and '#' comments skipped, whitespace-split
// fields, a parser struct carrying accumulation state), the same "iterate
// VAR START END { ... }" block-expansion construct with %VAR substitution —
// but each line emits a graph.Graph attribute instead of a model.Node, and
// there is no second binary-serialization stage: the DSL's compile output
// *is* the live graph.
//
// Grammar:
//
//	const NAME VALUE                 int32 constant attribute
//	map NAME OP <- INPUT              unary combinator (identity, double, inc, square)
//	map2 NAME OP <- INPUT_A INPUT_B    binary combinator (add, mul, max)
//	iterate VAR START END { ... }      expand the block once per VAR in [START, END]
package dsl

import (
	"fmt"
	"strconv"
	"strings"
	"unsafe"

	"github.com/sbl8/attrgraph/combinators"
	"github.com/sbl8/attrgraph/core"
	"github.com/sbl8/attrgraph/graph"
	"github.com/sbl8/attrgraph/subgraph"
)

// UnaryOps is the fixed catalog of single-input combinators the "map"
// directive may name — the DSL analogue of the teacher's kernel opcodes.
var UnaryOps = map[string]func(int32) int32{
	"identity": func(v int32) int32 { return v },
	"double":   func(v int32) int32 { return v * 2 },
	"inc":      func(v int32) int32 { return v + 1 },
	"square":   func(v int32) int32 { return v * v },
}

// BinaryOps is the fixed catalog of two-input combinators the "map2"
// directive may name.
var BinaryOps = map[string]func(int32, int32) int32{
	"add": func(a, b int32) int32 { return a + b },
	"mul": func(a, b int32) int32 { return a * b },
	"max": func(a, b int32) int32 {
		if a > b {
			return a
		}
		return b
	},
}

// Result is a compiled DSL program: the subgraph its attributes were built
// in and a name -> AttributeID table for every declared attribute, so a
// caller can look up outputs by the names the source used.
type Result struct {
	Subgraph   *subgraph.Subgraph
	Attributes map[string]core.AttributeID
}

// Compile parses src and builds its attributes into a fresh subgraph of g.
func Compile(g *graph.Graph, src string) (*Result, error) {
	sg := g.SubgraphCreate(nil)
	return CompileInto(g, sg, src)
}

// CompileInto parses src and builds its attributes into the given subgraph,
// for callers composing a DSL program alongside hand-built attributes.
func CompileInto(g *graph.Graph, sg *subgraph.Subgraph, src string) (*Result, error) {
	p := &parser{g: g, sg: sg, attrs: make(map[string]core.AttributeID)}

	lines := strings.Split(src, "\n")
	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		next, err := p.parseLine(lines, i)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		i = next
	}

	return &Result{Subgraph: sg, Attributes: p.attrs}, nil
}

// parser carries the accumulation state across lines, mirroring the
// teacher's dslParser.
type parser struct {
	g     *graph.Graph
	sg    *subgraph.Subgraph
	attrs map[string]core.AttributeID
}

func (p *parser) parseLine(lines []string, idx int) (int, error) {
	line := strings.TrimSpace(lines[idx])
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return idx, nil
	}

	if fields[0] == "iterate" {
		return p.parseIterateBlock(lines, idx, fields)
	}
	return idx, p.processSimpleLine(line, fields)
}

func (p *parser) parseIterateBlock(lines []string, idx int, fields []string) (int, error) {
	if len(fields) < 4 {
		return idx, fmt.Errorf("invalid iterate spec: %s", strings.Join(fields, " "))
	}
	varName := fields[1]
	start, err := strconv.Atoi(fields[2])
	if err != nil {
		return idx, fmt.Errorf("invalid iterate start %q: %w", fields[2], err)
	}
	end, err := strconv.Atoi(fields[3])
	if err != nil {
		return idx, fmt.Errorf("invalid iterate end %q: %w", fields[3], err)
	}

	blockStart := idx + 1
	for blockStart < len(lines) && strings.TrimSpace(lines[blockStart]) == "" {
		blockStart++
	}
	if blockStart >= len(lines) || strings.TrimSpace(lines[blockStart]) != "{" {
		return idx, fmt.Errorf("missing '{' after iterate")
	}

	block, blockEnd, err := collectBlockLines(lines, blockStart)
	if err != nil {
		return idx, err
	}

	for v := start; v <= end; v++ {
		for _, bline := range block {
			expanded := expandVariable(bline, varName, v)
			if err := p.processSimpleLine(expanded, strings.Fields(expanded)); err != nil {
				return idx, fmt.Errorf("iterate expansion error: %w", err)
			}
		}
	}
	return blockEnd, nil
}

func collectBlockLines(lines []string, startIdx int) ([]string, int, error) {
	var block []string
	i := startIdx + 1
	for i < len(lines) {
		line := strings.TrimSpace(lines[i])
		if line == "}" {
			return block, i, nil
		}
		if line != "" && !strings.HasPrefix(line, "#") {
			block = append(block, line)
		}
		i++
	}
	return nil, i, fmt.Errorf("unterminated iterate block")
}

func expandVariable(line, varName string, value int) string {
	return strings.ReplaceAll(line, "%"+varName, strconv.Itoa(value))
}

func (p *parser) processSimpleLine(line string, fields []string) error {
	if len(fields) == 0 {
		return nil
	}
	switch fields[0] {
	case "const":
		return p.parseConst(fields)
	case "map":
		return p.parseMap(fields)
	case "map2":
		return p.parseMap2(fields)
	default:
		return fmt.Errorf("unknown directive: %s", fields[0])
	}
}

// parseConst: const NAME VALUE
func (p *parser) parseConst(fields []string) error {
	if len(fields) != 3 {
		return fmt.Errorf("invalid const spec: needs name and value")
	}
	name := fields[1]
	value, err := strconv.Atoi(fields[2])
	if err != nil {
		return fmt.Errorf("invalid const value %q: %w", fields[2], err)
	}
	typeID := combinators.Const[int32](p.g.Types())
	v := int32(value)
	a := p.sg.AddAttribute(typeID, nil, unsafe.Pointer(&v), 0)
	p.attrs[name] = a
	return nil
}

// parseMap: map NAME OP <- INPUT
func (p *parser) parseMap(fields []string) error {
	if len(fields) != 5 || fields[3] != "<-" {
		return fmt.Errorf("invalid map spec: want 'map NAME OP <- INPUT'")
	}
	name, op, inputName := fields[1], fields[2], fields[4]
	fn, ok := UnaryOps[op]
	if !ok {
		return fmt.Errorf("unknown unary op %q", op)
	}
	input, ok := p.attrs[inputName]
	if !ok {
		return fmt.Errorf("undefined attribute %q", inputName)
	}
	typeID := combinators.Map[int32](p.g.Types(), fn)
	a := p.sg.AddAttribute(typeID, nil, nil, 0)
	p.sg.Store.AddInput(a, input, 0)
	p.attrs[name] = a
	return nil
}

// parseMap2: map2 NAME OP <- INPUT_A INPUT_B
func (p *parser) parseMap2(fields []string) error {
	if len(fields) != 6 || fields[3] != "<-" {
		return fmt.Errorf("invalid map2 spec: want 'map2 NAME OP <- INPUT_A INPUT_B'")
	}
	name, op, inA, inB := fields[1], fields[2], fields[4], fields[5]
	fn, ok := BinaryOps[op]
	if !ok {
		return fmt.Errorf("unknown binary op %q", op)
	}
	a1, ok := p.attrs[inA]
	if !ok {
		return fmt.Errorf("undefined attribute %q", inA)
	}
	a2, ok := p.attrs[inB]
	if !ok {
		return fmt.Errorf("undefined attribute %q", inB)
	}
	typeID := combinators.Map2[int32](p.g.Types(), fn)
	a := p.sg.AddAttribute(typeID, nil, nil, 0)
	p.sg.Store.AddInput(a, a1, 0)
	p.sg.Store.AddInput(a, a2, 0)
	p.attrs[name] = a
	return nil
}
