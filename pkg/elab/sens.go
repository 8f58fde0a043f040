package elab

import (
	"github.com/raymyers/vflow/pkg/dataflow"
	"github.com/raymyers/vflow/pkg/vast"
)

// checkSens rejects a sensitivity list that mixes edge and level entries
func (e *Elaborator) checkSens(a vast.Always) {
	if a.Kind == vast.AlwaysComb {
		return
	}
	edges, levels := 0, 0
	for _, s := range a.Sens.List {
		switch s.Edge {
		case vast.EdgePos, vast.EdgeNeg:
			edges++
		default:
			levels++
		}
	}
	if edges > 0 && levels > 0 {
		dataflow.Fail(dataflow.Formatf("sensitivity list of %s mixes edge and level signals", e.cur.Name))
	}
}

// alwaysInfo classifies the sensitivity list of an always process. Edge
// entries become the clock and the reset, preferring names that look like
// one; level entries are kept as a plain list.
func (e *Elaborator) alwaysInfo(a vast.Always) *dataflow.AlwaysInfo {
	e.checkSens(a)
	info := &dataflow.AlwaysInfo{}
	if a.Kind == vast.AlwaysComb || len(a.Sens.List) == 0 {
		info.Combinational = true
		return info
	}
	var level []dataflow.SensEntry
	edges := 0
	for _, s := range a.Sens.List {
		if s.Edge == vast.EdgeAll {
			info.Combinational = true
			continue
		}
		name, bit := e.sensSignal(s.Sig)
		if s.Edge == vast.EdgeLevel {
			level = append(level, dataflow.SensEntry{Edge: dataflow.NoEdge, Name: name})
			continue
		}
		edges++
		edge := dataflow.Posedge
		if s.Edge == vast.EdgeNeg {
			edge = dataflow.Negedge
		}
		short := name.Last().Name
		switch {
		case info.ClockEdge == dataflow.NoEdge && e.isClock(short):
			info.ClockName, info.ClockEdge, info.ClockBit = name, edge, bit
		case info.ResetEdge == dataflow.NoEdge && e.isReset(short):
			info.ResetName, info.ResetEdge, info.ResetBit = name, edge, bit
		case info.ClockEdge == dataflow.NoEdge:
			info.ClockName, info.ClockEdge, info.ClockBit = name, edge, bit
		case info.ResetEdge == dataflow.NoEdge:
			info.ResetName, info.ResetEdge, info.ResetBit = name, edge, bit
		default:
			dataflow.Fail(dataflow.Formatf("too many edge signals in sensitivity list of %s", e.cur.Name))
		}
	}
	if edges > 0 && info.ClockEdge == dataflow.NoEdge {
		info.ClockName, info.ClockEdge, info.ClockBit = info.ResetName, info.ResetEdge, info.ResetBit
		info.ResetName, info.ResetEdge, info.ResetBit = nil, dataflow.NoEdge, nil
	}
	if edges == 0 {
		info.SensList = level
		info.Combinational = true
	}
	return info
}

// sensSignal resolves a sensitivity entry to a signal and an optional bit
func (e *Elaborator) sensSignal(x vast.Expr) (dataflow.ScopeChain, dataflow.Node) {
	switch s := unparen(x).(type) {
	case vast.Ident, vast.HierRef:
		return e.destName(s), nil
	case vast.Index:
		return e.destName(s.X), e.opt.Optimize(e.expr(s.Index))
	}
	dataflow.Fail(dataflow.Formatf("unsupported sensitivity entry %s", vast.ExprString(x)))
	return nil, nil
}
