package rules

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/specialistvlad/cipipe/internal/ctxlog"
)

// Engine evaluates rules and keeps one compiled Rule per distinct source, so
// a rule used by many instructions or schedule entries is compiled once.
type Engine struct {
	mu    sync.Mutex
	rules map[string]*Rule
}

// NewEngine creates an Engine with an empty rule cache.
func NewEngine() *Engine {
	return &Engine{rules: make(map[string]*Rule)}
}

// Rule returns the cached Rule for source, creating it if needed.
func (e *Engine) Rule(source string) *Rule {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.rules[source]
	if !ok {
		r = New(source)
		e.rules[source] = r
	}
	return r
}

// Evaluate evaluates source against vars.
func (e *Engine) Evaluate(ctx context.Context, source string, vars map[string]any) (any, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Evaluating rule.", "rule", source)

	out, err := e.Rule(source).Evaluate(vars)
	if err != nil {
		return nil, err
	}
	logger.Debug("Rule evaluated.", "rule", source, "result", out)
	return out, nil
}

// Instruction is one step of an instruction list: an optional "rule" key and
// any number of commands with their arguments.
type Instruction map[string]any

// RuleKey is the instruction key holding the rule that guards it.
const RuleKey = "rule"

// Command handles one instruction command. Returning true counts as a hit.
type Command func(ctx context.Context, instruction Instruction, command string, argument any, vars map[string]any) (bool, error)

// InstructionOptions tune EvaluateInstructions.
type InstructionOptions struct {
	// DefaultRule guards instructions without a rule. Empty means "True".
	DefaultRule string
	// StopAtFirstHit skips the remaining commands of an instruction once a
	// command reports a hit.
	StopAtFirstHit bool
	// IgnoreUnhandledCommands logs commands without a handler instead of
	// failing.
	IgnoreUnhandledCommands bool
}

// EvaluateInstructions walks instructions in order. For each one the context
// is refreshed by calling vars, the guarding rule is evaluated, and when it
// holds every command is dispatched to its handler. Commands run in sorted
// key order.
func (e *Engine) EvaluateInstructions(
	ctx context.Context,
	instructions []Instruction,
	commands map[string]Command,
	vars func(ctx context.Context) map[string]any,
	opts InstructionOptions,
) error {
	logger := ctxlog.FromContext(ctx)

	defaultRule := opts.DefaultRule
	if defaultRule == "" {
		defaultRule = "True"
	}

	for i, instruction := range instructions {
		loopVars := vars(ctx)

		rule := defaultRule
		if raw, ok := instruction[RuleKey]; ok {
			rule = fmt.Sprint(raw)
		}

		ok, err := e.Rule(rule).EvaluateBool(loopVars)
		if err != nil {
			return fmt.Errorf("instruction #%d: %w", i+1, err)
		}
		if !ok {
			logger.Debug("Instruction denied by rules.", "index", i+1, "rule", rule)
			continue
		}

		keys := make([]string, 0, len(instruction))
		for k := range instruction {
			if k != RuleKey {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)

		for _, command := range keys {
			handler, ok := commands[command]
			if !ok {
				if opts.IgnoreUnhandledCommands {
					logger.Warn("No callback for command.", "command", command)
					continue
				}
				return fmt.Errorf("instruction #%d: no callback for command '%s'", i+1, command)
			}

			hit, err := handler(ctx, instruction, command, instruction[command], loopVars)
			if err != nil {
				return fmt.Errorf("instruction #%d: command '%s': %w", i+1, command, err)
			}
			if hit && opts.StopAtFirstHit {
				logger.Debug("Command handled, skipping the rest of the instruction.", "command", command)
				break
			}
		}
	}
	return nil
}
