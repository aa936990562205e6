package script

import (
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/labkit/databox/pkg/config"
	"github.com/labkit/databox/pkg/errors"
	"github.com/labkit/databox/pkg/logger"
	"github.com/labkit/databox/pkg/metrics"
)

// DefaultMaxDepth caps nested where-bindings when no config is given.
const DefaultMaxDepth = 1000

const whereSep = " where "

// DepthHook is asked whether to keep going once a where-binding chain
// exceeds the depth cap. Returning false aborts the evaluation.
type DepthHook func(depth int, script string) bool

// Engine evaluates scripts against one Source. It never mutates the source.
type Engine struct {
	src      Source
	root     *Env
	maxDepth int
	onDepth  DepthHook
	logger   *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig applies the script section of the configuration.
func WithConfig(cfg config.ScriptConfig) Option {
	return func(e *Engine) {
		if cfg.MaxDepth > 0 {
			e.maxDepth = cfg.MaxDepth
		}
		for name, f := range cfg.Globals {
			e.root.Define(name, Number(f))
		}
	}
}

// WithGlobals adds extra names visible to every script.
func WithGlobals(globals map[string]Value) Option {
	return func(e *Engine) {
		for name, v := range globals {
			e.root.Define(name, v)
		}
	}
}

// WithMaxDepth sets the where-binding depth cap.
func WithMaxDepth(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxDepth = n
		}
	}
}

// OnDepthExceeded installs the hook consulted when the cap is passed.
func OnDepthExceeded(hook DepthHook) Option {
	return func(e *Engine) { e.onDepth = hook }
}

// WithLogger sets the logger for evaluation diagnostics.
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.logger = log
		}
	}
}

// NewEngine creates an engine whose scripts see the numeric namespace, the
// extra globals, and c, h and self bound to src.
func NewEngine(src Source, opts ...Option) *Engine {
	root := NewEnv(nil)
	for name, v := range Constants() {
		root.Define(name, v)
	}
	for name, v := range Builtins() {
		root.Define(name, v)
	}
	e := &Engine{src: src, root: root, maxDepth: DefaultMaxDepth}
	root.Define("c", Func("c", e.columnFn))
	root.Define("h", Func("h", e.headerFn))
	root.Define("self", Table(src))

	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logger.Get().Named("script")
	}
	return e
}

func (e *Engine) columnFn(args []Value) (Value, error) {
	if err := arity("c", args, 1, 1); err != nil {
		return Undefined, err
	}
	key, err := accessorKey("c", args[0])
	if err != nil {
		return Undefined, err
	}
	return e.src.Column(key)
}

func (e *Engine) headerFn(args []Value) (Value, error) {
	if err := arity("h", args, 1, 1); err != nil {
		return Undefined, err
	}
	key, err := accessorKey("h", args[0])
	if err != nil {
		return Undefined, err
	}
	return e.src.Header(key)
}

func accessorKey(name string, v Value) (any, error) {
	if v.kind == KindString {
		return v.str, nil
	}
	i, err := intArg(name, v)
	if err != nil {
		return nil, err
	}
	return i, nil
}

// Execute evaluates a script, which may be:
//
//	nil                 yields None
//	int                 the column at that index, negative from the end
//	string              an expression, optionally "expr where a=...; b=..."
//	[]string or []any   each element evaluated independently, in order
//
// Failures yield Undefined together with a script error; list scripts
// collect every element's error and keep going.
func (e *Engine) Execute(script any) (Value, error) {
	v, err := e.execute(script, 0, e.root)
	status := "success"
	switch {
	case errors.IsType(err, errors.ErrorTypeRecursion):
		status = "recursion"
	case err != nil:
		status = "failure"
	}
	metrics.Script(status)
	return v, err
}

func (e *Engine) execute(script any, depth int, env *Env) (Value, error) {
	switch s := script.(type) {
	case nil:
		return None, nil
	case int:
		v, err := e.src.Column(s)
		if err != nil {
			return Undefined, e.fail(strconv.Itoa(s), err)
		}
		return v, nil
	case string:
		return e.executeString(s, depth, env)
	case []string:
		items := make([]any, len(s))
		for i, item := range s {
			items[i] = item
		}
		return e.executeList(items, depth, env)
	case []any:
		return e.executeList(s, depth, env)
	}
	return Undefined, errors.Newf(errors.ErrorTypeScript, "unsupported script type %T", script)
}

func (e *Engine) executeList(scripts []any, depth int, env *Env) (Value, error) {
	var result *multierror.Error
	out := make([]Value, len(scripts))
	for i, s := range scripts {
		v, err := e.execute(s, depth, env)
		if err != nil {
			result = multierror.Append(result, errors.Wrap(err, errors.TypeOf(err), "script "+strconv.Itoa(i)))
		}
		out[i] = v
	}
	return ListOf(out...), result.ErrorOrNil()
}

func (e *Engine) executeString(s string, depth int, env *Env) (Value, error) {
	if depth > e.maxDepth {
		if e.onDepth == nil || !e.onDepth(depth, s) {
			e.logger.Warn("where-binding depth cap exceeded, aborting",
				zap.Int("depth", depth), zap.Int("max_depth", e.maxDepth))
			return Undefined, errors.Newf(errors.ErrorTypeRecursion,
				"where-binding depth %d exceeds the cap of %d", depth, e.maxDepth)
		}
	}

	expr, bindings, hasWhere := strings.Cut(s, whereSep)
	if !hasWhere {
		if depth == 0 && e.src.HasColumn(s) {
			return e.src.Column(s)
		}
		return e.evaluate(s, env)
	}

	local := NewEnv(env)
	for _, binding := range strings.Split(bindings, ";") {
		if strings.TrimSpace(binding) == "" {
			continue
		}
		name, sub, ok := strings.Cut(binding, "=")
		name = strings.TrimSpace(name)
		if !ok || !validName(name) {
			return Undefined, e.fail(s, errors.Newf(errors.ErrorTypeScript, "malformed binding %q", strings.TrimSpace(binding)))
		}
		v, err := e.execute(strings.TrimSpace(sub), depth+1, local)
		if err != nil {
			if errors.IsType(err, errors.ErrorTypeRecursion) {
				return Undefined, err
			}
			return Undefined, e.fail(s, errors.Wrap(err, errors.ErrorTypeScript, "binding "+name+" failed"))
		}
		local.Define(name, v)
	}
	return e.evaluate(strings.TrimSpace(expr), local)
}

func (e *Engine) evaluate(src string, env *Env) (Value, error) {
	n, err := Parse(src)
	if err != nil {
		return Undefined, e.fail(src, err)
	}
	v, err := Eval(n, env)
	if err != nil {
		return Undefined, e.fail(src, err)
	}
	return v, nil
}

func (e *Engine) fail(script string, err error) error {
	e.logger.Warn("could not evaluate script", zap.String("script", script), zap.Error(err))
	if errors.IsType(err, errors.ErrorTypeScript) {
		return err
	}
	return errors.Wrap(err, errors.ErrorTypeScript, "could not evaluate "+strconv.Quote(script))
}

func validName(name string) bool {
	if name == "" || !isIdentStart(name[0]) {
		return false
	}
	for i := 1; i < len(name); i++ {
		if !isIdentPart(name[i]) || name[i] == '.' {
			return false
		}
	}
	return true
}
