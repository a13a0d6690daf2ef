package compiler

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"cuelang.org/go/cue"

	"github.com/rwp0/Cor/internal/decl"
)

// Ops understood by the body compiler. A body in CUE is a tree of
// structs, each carrying an "op" discriminator; compilation turns the
// tree into one closure, so the runtime core never sees op structs.
const (
	opConst  = "const"  // {op: "const", value: 42}
	opArg    = "arg"    // {op: "arg", name: "greeting"} or {op: "arg", index: 0}
	opGet    = "get"    // {op: "get", field: "name"}
	opSet    = "set"    // {op: "set", field: "name", value: <expr>}
	opInc    = "inc"    // {op: "inc", field: "count", by: -1}; by defaults to 1
	opConcat = "concat" // {op: "concat", parts: [<expr>, ...]}
	opSelf   = "self"   // {op: "self"} - the dispatch target's class name
	opNext   = "next"   // {op: "next"} forwards args; {op: "next", args: [...]} evaluates them
	opSeq    = "seq"    // {op: "seq", steps: [<expr>, ...]} - value of the last step
	opFail   = "fail"   // {op: "fail", message: "..."}
)

// CompileBody compiles an op tree into an executable method body.
// params names the method's declared arguments in order; arg ops may
// reference them by name or by position.
func CompileBody(v cue.Value, params []string) (decl.Body, error) {
	fn, err := compileOp(v, params)
	if err != nil {
		return nil, err
	}
	return fn, nil
}

// compileHookBody compiles an op tree into a lifecycle hook body.
// Hooks take no arguments and discard the tree's value; a next op in
// a hook compiles fine and fails at run time, which is the dispatch
// rule, not a parse rule.
func compileHookBody(v cue.Value) (decl.HookBody, error) {
	fn, err := compileOp(v, nil)
	if err != nil {
		return nil, err
	}
	return func(fr decl.Frame) error {
		_, err := fn(fr, nil)
		return err
	}, nil
}

func compileOp(v cue.Value, params []string) (decl.Body, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	opVal := v.LookupPath(cue.ParsePath("op"))
	if !opVal.Exists() {
		return nil, &CompileError{
			Field:   "body",
			Message: "op is required",
			Pos:     v.Pos(),
		}
	}
	op, err := opVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}

	switch op {
	case opConst:
		return compileConst(v)
	case opArg:
		return compileArg(v, params)
	case opGet:
		return compileGet(v)
	case opSet:
		return compileSet(v, params)
	case opInc:
		return compileInc(v)
	case opConcat:
		return compileConcat(v, params)
	case opSelf:
		return func(fr decl.Frame, _ []decl.Value) (decl.Value, error) {
			return decl.String(fr.ClassName()), nil
		}, nil
	case opNext:
		return compileNext(v, params)
	case opSeq:
		return compileSeq(v, params)
	case opFail:
		return compileFail(v)
	default:
		return nil, &CompileError{
			Field:   "body.op",
			Message: fmt.Sprintf("unknown op %q", op),
			Pos:     opVal.Pos(),
		}
	}
}

func compileConst(v cue.Value) (decl.Body, error) {
	val := v.LookupPath(cue.ParsePath("value"))
	if !val.Exists() {
		return nil, &CompileError{
			Field:   "body.const",
			Message: "const needs a value",
			Pos:     v.Pos(),
		}
	}
	dv, err := decodeValue(val)
	if err != nil {
		return nil, err
	}
	return func(decl.Frame, []decl.Value) (decl.Value, error) {
		return dv, nil
	}, nil
}

func compileArg(v cue.Value, params []string) (decl.Body, error) {
	idx := -1
	if nameVal := v.LookupPath(cue.ParsePath("name")); nameVal.Exists() {
		name, err := nameVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		idx = slices.Index(params, name)
		if idx < 0 {
			return nil, &CompileError{
				Field:   "body.arg",
				Message: fmt.Sprintf("unknown argument %q", name),
				Pos:     nameVal.Pos(),
			}
		}
	} else if idxVal := v.LookupPath(cue.ParsePath("index")); idxVal.Exists() {
		n, err := idxVal.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		if n < 0 {
			return nil, &CompileError{
				Field:   "body.arg",
				Message: "argument index must be zero or positive",
				Pos:     idxVal.Pos(),
			}
		}
		idx = int(n)
	} else {
		return nil, &CompileError{
			Field:   "body.arg",
			Message: "arg needs a name or an index",
			Pos:     v.Pos(),
		}
	}

	return func(_ decl.Frame, args []decl.Value) (decl.Value, error) {
		if idx >= len(args) {
			return nil, fmt.Errorf("argument %d out of range (%d supplied)", idx, len(args))
		}
		return args[idx], nil
	}, nil
}

func compileGet(v cue.Value) (decl.Body, error) {
	field, err := fieldName(v)
	if err != nil {
		return nil, err
	}
	return func(fr decl.Frame, _ []decl.Value) (decl.Value, error) {
		return fr.Get(field)
	}, nil
}

func compileSet(v cue.Value, params []string) (decl.Body, error) {
	field, err := fieldName(v)
	if err != nil {
		return nil, err
	}
	sub := v.LookupPath(cue.ParsePath("value"))
	if !sub.Exists() {
		return nil, &CompileError{
			Field:   "body.set",
			Message: "set needs a value expression",
			Pos:     v.Pos(),
		}
	}
	expr, err := compileOp(sub, params)
	if err != nil {
		return nil, err
	}
	// A set evaluates to the stored value, so it can end a body.
	return func(fr decl.Frame, args []decl.Value) (decl.Value, error) {
		val, err := expr(fr, args)
		if err != nil {
			return nil, err
		}
		if err := fr.Set(field, val); err != nil {
			return nil, err
		}
		return val, nil
	}, nil
}

func compileInc(v cue.Value) (decl.Body, error) {
	field, err := fieldName(v)
	if err != nil {
		return nil, err
	}
	by := int64(1)
	if byVal := v.LookupPath(cue.ParsePath("by")); byVal.Exists() {
		by, err = byVal.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
	}
	// Null counts as zero so counters need no explicit default.
	return func(fr decl.Frame, _ []decl.Value) (decl.Value, error) {
		cur, err := fr.Get(field)
		if err != nil {
			return nil, err
		}
		base := int64(0)
		switch n := cur.(type) {
		case decl.Int:
			base = int64(n)
		case decl.Null:
		default:
			return nil, fmt.Errorf("field %q holds %T, not an int", field, cur)
		}
		next := decl.Int(base + by)
		if err := fr.Set(field, next); err != nil {
			return nil, err
		}
		return next, nil
	}, nil
}

func compileConcat(v cue.Value, params []string) (decl.Body, error) {
	partsVal := v.LookupPath(cue.ParsePath("parts"))
	if !partsVal.Exists() {
		return nil, &CompileError{
			Field:   "body.concat",
			Message: "concat needs a parts list",
			Pos:     v.Pos(),
		}
	}
	exprs, err := compileExprList(partsVal, params)
	if err != nil {
		return nil, err
	}
	return func(fr decl.Frame, args []decl.Value) (decl.Value, error) {
		var sb strings.Builder
		for _, expr := range exprs {
			val, err := expr(fr, args)
			if err != nil {
				return nil, err
			}
			s, err := stringify(val)
			if err != nil {
				return nil, err
			}
			sb.WriteString(s)
		}
		return decl.String(sb.String()), nil
	}, nil
}

func compileNext(v cue.Value, params []string) (decl.Body, error) {
	argsVal := v.LookupPath(cue.ParsePath("args"))
	if !argsVal.Exists() {
		// No args clause forwards the invocation's own arguments.
		return func(fr decl.Frame, args []decl.Value) (decl.Value, error) {
			return fr.Next(args)
		}, nil
	}
	exprs, err := compileExprList(argsVal, params)
	if err != nil {
		return nil, err
	}
	return func(fr decl.Frame, args []decl.Value) (decl.Value, error) {
		vals := make([]decl.Value, len(exprs))
		for i, expr := range exprs {
			val, err := expr(fr, args)
			if err != nil {
				return nil, err
			}
			vals[i] = val
		}
		return fr.Next(vals)
	}, nil
}

func compileSeq(v cue.Value, params []string) (decl.Body, error) {
	stepsVal := v.LookupPath(cue.ParsePath("steps"))
	if !stepsVal.Exists() {
		return nil, &CompileError{
			Field:   "body.seq",
			Message: "seq needs a steps list",
			Pos:     v.Pos(),
		}
	}
	exprs, err := compileExprList(stepsVal, params)
	if err != nil {
		return nil, err
	}
	return func(fr decl.Frame, args []decl.Value) (decl.Value, error) {
		var last decl.Value = decl.Null{}
		for _, expr := range exprs {
			val, err := expr(fr, args)
			if err != nil {
				return nil, err
			}
			last = val
		}
		return last, nil
	}, nil
}

func compileFail(v cue.Value) (decl.Body, error) {
	msgVal := v.LookupPath(cue.ParsePath("message"))
	if !msgVal.Exists() {
		return nil, &CompileError{
			Field:   "body.fail",
			Message: "fail needs a message",
			Pos:     v.Pos(),
		}
	}
	msg, err := msgVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	failErr := errors.New(msg)
	return func(decl.Frame, []decl.Value) (decl.Value, error) {
		return nil, failErr
	}, nil
}

// fieldName reads the field attribute shared by get, set and inc.
func fieldName(v cue.Value) (string, error) {
	fieldVal := v.LookupPath(cue.ParsePath("field"))
	if !fieldVal.Exists() {
		return "", &CompileError{
			Field:   "body",
			Message: "op needs a field name",
			Pos:     v.Pos(),
		}
	}
	field, err := fieldVal.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return field, nil
}

// compileExprList compiles a CUE list of op trees.
func compileExprList(v cue.Value, params []string) ([]decl.Body, error) {
	var exprs []decl.Body

	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		expr, err := compileOp(iter.Value(), params)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, expr)
	}

	return exprs, nil
}

// stringify renders a scalar for concat. Aggregates and refs do not
// concatenate.
func stringify(v decl.Value) (string, error) {
	switch val := v.(type) {
	case decl.Null:
		return "", nil
	case decl.String:
		return string(val), nil
	case decl.Int:
		return strconv.FormatInt(int64(val), 10), nil
	case decl.Bool:
		return strconv.FormatBool(bool(val)), nil
	default:
		return "", fmt.Errorf("cannot concatenate %T", v)
	}
}

// decodeValue converts a concrete CUE value into a runtime value.
// Floats are forbidden: declaration fingerprints and trace payloads
// must be deterministic.
func decodeValue(v cue.Value) (decl.Value, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	switch v.Kind() {
	case cue.NullKind:
		return decl.Null{}, nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return decl.Bool(b), nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return decl.String(s), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return decl.Int(n), nil
	case cue.FloatKind, cue.NumberKind:
		return nil, &CompileError{
			Field:   "value",
			Message: "float values are forbidden in declarations - use int instead",
			Pos:     v.Pos(),
		}
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		arr := decl.Array{}
		for iter.Next() {
			elem, err := decodeValue(iter.Value())
			if err != nil {
				return nil, err
			}
			arr = append(arr, elem)
		}
		return arr, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		obj := decl.Object{}
		for iter.Next() {
			elem, err := decodeValue(iter.Value())
			if err != nil {
				return nil, err
			}
			obj[labelOf(iter.Selector())] = elem
		}
		return obj, nil
	default:
		return nil, &CompileError{
			Field:   "value",
			Message: fmt.Sprintf("unsupported value kind: %v", v.Kind()),
			Pos:     v.Pos(),
		}
	}
}
