// conditional.go implements `ifdef / `ifndef / `elsif / `else / `endif.
package vpp

import "fmt"

// ConditionState tracks the state of one nesting level.
type ConditionState struct {
	active    bool // true if current branch is active (included)
	seenElse  bool // true if `else has been seen for this level
	anyActive bool // true if any branch at this level was active
}

// ConditionalProcessor handles conditional compilation directives.
type ConditionalProcessor struct {
	macros *MacroTable
	stack  []ConditionState
}

// NewConditionalProcessor creates a new conditional processor.
func NewConditionalProcessor(macros *MacroTable) *ConditionalProcessor {
	return &ConditionalProcessor{
		macros: macros,
		stack:  []ConditionState{},
	}
}

// IsActive returns true if text at the current location is kept.
func (cp *ConditionalProcessor) IsActive() bool {
	for _, state := range cp.stack {
		if !state.active {
			return false
		}
	}
	return true
}

func (cp *ConditionalProcessor) parentActive() bool {
	for i := 0; i < len(cp.stack)-1; i++ {
		if !cp.stack[i].active {
			return false
		}
	}
	return true
}

func (cp *ConditionalProcessor) push(cond bool) {
	if !cp.IsActive() {
		cp.stack = append(cp.stack, ConditionState{active: false, anyActive: true})
		return
	}
	cp.stack = append(cp.stack, ConditionState{active: cond, anyActive: cond})
}

// ProcessIfdef handles `ifdef.
func (cp *ConditionalProcessor) ProcessIfdef(name string) {
	cp.push(cp.macros.IsDefined(name))
}

// ProcessIfndef handles `ifndef.
func (cp *ConditionalProcessor) ProcessIfndef(name string) {
	cp.push(!cp.macros.IsDefined(name))
}

// ProcessElsif handles `elsif.
func (cp *ConditionalProcessor) ProcessElsif(name string) error {
	if len(cp.stack) == 0 {
		return fmt.Errorf("`elsif without matching `ifdef")
	}
	state := &cp.stack[len(cp.stack)-1]
	if state.seenElse {
		return fmt.Errorf("`elsif after `else")
	}
	state.active = cp.parentActive() && !state.anyActive && cp.macros.IsDefined(name)
	if state.active {
		state.anyActive = true
	}
	return nil
}

// ProcessElse handles `else.
func (cp *ConditionalProcessor) ProcessElse() error {
	if len(cp.stack) == 0 {
		return fmt.Errorf("`else without matching `ifdef")
	}
	state := &cp.stack[len(cp.stack)-1]
	if state.seenElse {
		return fmt.Errorf("duplicate `else")
	}
	state.seenElse = true
	state.active = cp.parentActive() && !state.anyActive
	if state.active {
		state.anyActive = true
	}
	return nil
}

// ProcessEndif handles `endif.
func (cp *ConditionalProcessor) ProcessEndif() error {
	if len(cp.stack) == 0 {
		return fmt.Errorf("`endif without matching `ifdef")
	}
	cp.stack = cp.stack[:len(cp.stack)-1]
	return nil
}

// Depth returns the nesting depth of conditionals.
func (cp *ConditionalProcessor) Depth() int {
	return len(cp.stack)
}

// CheckBalanced returns an error if conditionals are left open.
func (cp *ConditionalProcessor) CheckBalanced() error {
	if len(cp.stack) > 0 {
		return fmt.Errorf("unterminated `ifdef (%d open)", len(cp.stack))
	}
	return nil
}
