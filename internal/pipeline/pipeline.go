package pipeline

import (
	"fmt"
	"strconv"

	"github.com/google/cel-go/cel"

	"github.com/vyrodovalexey/avaimg/internal/config"
	"github.com/vyrodovalexey/avaimg/internal/imaging"
	"github.com/vyrodovalexey/avaimg/internal/observability"
	"github.com/vyrodovalexey/avaimg/internal/processor"
	"github.com/vyrodovalexey/avaimg/internal/source"
	"github.com/vyrodovalexey/avaimg/internal/util"
)

// paramsVar is the CEL variable holding the request parameters.
const paramsVar = "params"

// DefaultMaxDimension bounds resize and crop sizes when no limit is set.
const DefaultMaxDimension = 8192

// Option configures Compile.
type Option func(*options)

type options struct {
	maxDimension int
}

// WithMaxDimension rejects resize and crop sizes above n pixels on either
// side. Zero or less keeps DefaultMaxDimension.
func WithMaxDimension(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxDimension = n
		}
	}
}

// arg is a step argument, either literal or resolved per request.
type arg struct {
	tmpl *source.Template
}

func newArg(s string) *arg {
	if s == "" {
		return nil
	}
	return &arg{tmpl: source.Parse(s)}
}

func (a *arg) literal() bool {
	return a != nil && len(a.tmpl.Names()) == 0
}

func (a *arg) resolve(params map[string]string) (string, error) {
	if a == nil {
		return "", nil
	}
	return a.tmpl.Resolve(params)
}

type step struct {
	index  int
	op     string
	maxDim int
	width  *arg
	height *arg
	value  *arg
	when   cel.Program
}

// Compile builds a transform function applying steps in order. An empty
// step list yields a function that returns the source image unchanged.
func Compile(steps []config.Step, opts ...Option) (processor.TransformFunc, error) {
	o := options{maxDimension: DefaultMaxDimension}
	for _, opt := range opts {
		opt(&o)
	}

	compiled, err := compileSteps(steps, o)
	if err != nil {
		return nil, err
	}

	return func(img *imaging.Image, c *processor.Context) (processor.Result, error) {
		out, err := run(compiled, img, c)
		if err != nil {
			return processor.Result{}, err
		}
		return processor.Done(out), nil
	}, nil
}

func compileSteps(steps []config.Step, o options) ([]*step, error) {
	env, err := newEnv()
	if err != nil {
		return nil, err
	}

	compiled := make([]*step, 0, len(steps))
	for i := range steps {
		s, err := compileStep(env, i, &steps[i], o)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, s)
	}
	return compiled, nil
}

func newEnv() (*cel.Env, error) {
	env, err := cel.NewEnv(
		cel.Variable(paramsVar, cel.MapType(cel.StringType, cel.StringType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return env, nil
}

func compileStep(env *cel.Env, index int, cfg *config.Step, o options) (*step, error) {
	field := fmt.Sprintf("steps[%d]", index)
	s := &step{
		index:  index,
		op:     cfg.Op,
		maxDim: o.maxDimension,
		width:  newArg(cfg.Width),
		height: newArg(cfg.Height),
		value:  newArg(cfg.Value),
	}

	switch s.op {
	case config.OpResize, config.OpCrop:
		if s.width == nil && s.height == nil {
			return nil, util.NewConfigError(field, s.op+" needs width or height")
		}
		for _, a := range []*arg{s.width, s.height} {
			if a.literal() {
				if _, err := parseSize(a.tmpl.String(), s.maxDim); err != nil {
					return nil, util.NewConfigErrorWithCause(field, err.Error(), err)
				}
			}
		}
	case config.OpGravity, config.OpQuality, config.OpFormat:
		if s.value == nil {
			return nil, util.NewConfigError(field, s.op+" needs a value")
		}
		if s.value.literal() {
			if err := checkValue(s.op, s.value.tmpl.String()); err != nil {
				return nil, util.NewConfigErrorWithCause(field, err.Error(), err)
			}
		}
	default:
		return nil, util.NewConfigError(field, fmt.Sprintf("unknown operation %q", s.op))
	}

	if cfg.When != "" {
		prg, err := compileCondition(env, cfg.When)
		if err != nil {
			return nil, util.NewConfigErrorWithCause(field+".when", err.Error(), err)
		}
		s.when = prg
	}

	return s, nil
}

func compileCondition(env *cel.Env, expr string) (cel.Program, error) {
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile expression: %w", issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("expression must be boolean, got %s", ast.OutputType())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to build program: %w", err)
	}
	return prg, nil
}

func run(steps []*step, img *imaging.Image, c *processor.Context) (*imaging.Image, error) {
	for _, s := range steps {
		ok, err := s.applies(c.Params)
		if err != nil {
			return nil, err
		}
		if !ok {
			c.Logger().Debug("pipeline step skipped",
				observability.Int("step", s.index),
				observability.String("op", s.op),
			)
			continue
		}

		img, err = s.apply(img, c.Params)
		if err != nil {
			return nil, err
		}
		if err := img.Err(); err != nil {
			return nil, err
		}
	}
	return img, nil
}

func (s *step) applies(params map[string]string) (bool, error) {
	if s.when == nil {
		return true, nil
	}
	if params == nil {
		params = map[string]string{}
	}
	out, _, err := s.when.Eval(map[string]any{paramsVar: params})
	if err != nil {
		return false, fmt.Errorf("step %d condition: %w", s.index, err)
	}
	ok, isBool := out.Value().(bool)
	if !isBool {
		return false, fmt.Errorf("step %d condition is not boolean", s.index)
	}
	return ok, nil
}

func (s *step) apply(img *imaging.Image, params map[string]string) (*imaging.Image, error) {
	switch s.op {
	case config.OpResize, config.OpCrop:
		w, h, err := s.size(params)
		if err != nil {
			return nil, err
		}
		if s.op == config.OpResize {
			return img.Resize(w, h), nil
		}
		if w == 0 {
			w = img.Width()
		}
		if h == 0 {
			h = img.Height()
		}
		return img.Crop(w, h), nil
	}

	v, err := s.value.resolve(params)
	if err != nil {
		return nil, err
	}
	if err := checkValue(s.op, v); err != nil {
		return nil, fmt.Errorf("step %d: %w", s.index, err)
	}

	switch s.op {
	case config.OpGravity:
		g, _ := imaging.ParseGravity(v)
		return img.Gravity(g), nil
	case config.OpQuality:
		q, _ := strconv.Atoi(v)
		return img.Quality(q), nil
	default:
		return img.Format(v), nil
	}
}

func (s *step) size(params map[string]string) (int, int, error) {
	var dims [2]int
	for i, a := range []*arg{s.width, s.height} {
		raw, err := a.resolve(params)
		if err != nil {
			return 0, 0, err
		}
		if raw == "" {
			continue
		}
		n, err := parseSize(raw, s.maxDim)
		if err != nil {
			return 0, 0, fmt.Errorf("step %d: %w", s.index, err)
		}
		dims[i] = n
	}
	return dims[0], dims[1], nil
}

func parseSize(s string, limit int) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	if n > limit {
		return 0, fmt.Errorf("size %d exceeds the %d pixel limit", n, limit)
	}
	return n, nil
}

func checkValue(op, v string) error {
	switch op {
	case config.OpGravity:
		_, err := imaging.ParseGravity(v)
		return err
	case config.OpQuality:
		q, err := strconv.Atoi(v)
		if err != nil || q < 1 || q > 100 {
			return fmt.Errorf("invalid quality %q", v)
		}
	case config.OpFormat:
		_, err := imaging.ParseFormat(v)
		return err
	}
	return nil
}
