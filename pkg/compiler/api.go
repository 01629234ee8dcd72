package compiler

import (
	"fmt"
	"math"
	"strings"

	"github.com/d5/tengo/v2"
	"github.com/jwebster45206/robot-engine/pkg/action"
	"github.com/jwebster45206/robot-engine/pkg/level"
	"github.com/jwebster45206/robot-engine/pkg/value"
)

// builder collects the actions a script queues.
type builder struct {
	actions []action.Action
	max     int
	world   World
}

func (b *builder) push(a action.Action, n int) error {
	if len(b.actions)+n > b.max {
		return fmt.Errorf("script queued more than %d actions", b.max)
	}
	for i := 0; i < n; i++ {
		b.actions = append(b.actions, a)
	}
	return nil
}

// robotAPI is the `robot` global.
func (b *builder) robotAPI() *tengo.ImmutableMap {
	values := map[string]tengo.Object{
		"moveUp":    b.moveFunc("moveUp", action.Back),
		"moveDown":  b.moveFunc("moveDown", action.Front),
		"moveLeft":  b.moveFunc("moveLeft", action.Left),
		"moveRight": b.moveFunc("moveRight", action.Right),
		"pickUp":    &tengo.UserFunction{Name: "pickUp", Value: b.pickUp},
		"attack":    &tengo.UserFunction{Name: "attack", Value: b.attack},
		"find":      &tengo.UserFunction{Name: "find", Value: b.find},
	}
	return &tengo.ImmutableMap{Value: values}
}

// globals are helpers available outside the robot namespace.
func (b *builder) globals() map[string]tengo.Object {
	return map[string]tengo.Object{
		"find":     &tengo.UserFunction{Name: "find", Value: b.find},
		"typeof":   &tengo.UserFunction{Name: "typeof", Value: typeOf},
		"includes": &tengo.UserFunction{Name: "includes", Value: includes},
	}
}

func (b *builder) moveFunc(name string, dir action.Direction) *tengo.UserFunction {
	return &tengo.UserFunction{Name: name, Value: func(args ...tengo.Object) (tengo.Object, error) {
		n := 1
		switch len(args) {
		case 0:
		case 1:
			v, ok := objectAsInt(args[0])
			if !ok {
				return nil, tengo.ErrInvalidArgumentType{Name: "steps", Expected: "int", Found: args[0].TypeName()}
			}
			if v < 0 {
				return nil, fmt.Errorf("%s: steps must not be negative, got %d", name, v)
			}
			n = v
		default:
			return nil, tengo.ErrWrongNumArguments
		}
		if err := b.push(action.Move(dir), n); err != nil {
			return nil, err
		}
		return tengo.UndefinedValue, nil
	}}
}

func (b *builder) pickUp(args ...tengo.Object) (tengo.Object, error) {
	if len(args) > 1 {
		return nil, tengo.ErrWrongNumArguments
	}
	var filter *value.TypeTag
	if len(args) == 1 && !isUndefined(args[0]) {
		s, ok := args[0].(*tengo.String)
		if !ok {
			return nil, tengo.ErrInvalidArgumentType{Name: "type", Expected: "string", Found: args[0].TypeName()}
		}
		tag, err := value.ParseTag(s.Value)
		if err != nil {
			return nil, fmt.Errorf("pickUp: %w", err)
		}
		filter = &tag
	}
	if err := b.push(action.Pickup(filter), 1); err != nil {
		return nil, err
	}
	return tengo.UndefinedValue, nil
}

func (b *builder) attack(args ...tengo.Object) (tengo.Object, error) {
	if len(args) != 1 {
		return nil, tengo.ErrWrongNumArguments
	}
	id, ok := targetID(args[0])
	if !ok {
		return nil, fmt.Errorf("attack: target must be an object with an id, got %s", args[0].TypeName())
	}
	if err := b.push(action.Attack(id), 1); err != nil {
		return nil, err
	}
	return tengo.UndefinedValue, nil
}

func (b *builder) find(args ...tengo.Object) (tengo.Object, error) {
	if len(args) != 1 {
		return nil, tengo.ErrWrongNumArguments
	}
	s, ok := args[0].(*tengo.String)
	if !ok {
		return nil, tengo.ErrInvalidArgumentType{Name: "selector", Expected: "string", Found: args[0].TypeName()}
	}
	if b.world == nil {
		return tengo.UndefinedValue, nil
	}
	view, ok := b.world.Query(strings.TrimSpace(s.Value))
	if !ok || view == nil {
		return tengo.UndefinedValue, nil
	}
	return viewObject(view), nil
}

func viewObject(v *EntityView) *tengo.ImmutableMap {
	values := map[string]tengo.Object{
		"id":   &tengo.String{Value: v.ID},
		"kind": &tengo.String{Value: string(v.Kind)},
		"x":    &tengo.Int{Value: int64(v.X)},
		"y":    &tengo.Int{Value: int64(v.Y)},
		"hp":   &tengo.Int{Value: int64(v.HP)},
	}
	if v.Weakness != "" {
		values["weakness"] = &tengo.String{Value: string(v.Weakness)}
	}
	if v.Kind == level.KindChest {
		contents := make([]tengo.Object, 0, len(v.Contents))
		for _, tag := range v.Contents {
			contents = append(contents, &tengo.String{Value: string(tag)})
		}
		values["contents"] = &tengo.ImmutableArray{Value: contents}
	}
	return &tengo.ImmutableMap{Value: values}
}

func targetID(obj tengo.Object) (string, bool) {
	var fields map[string]tengo.Object
	switch v := obj.(type) {
	case *tengo.ImmutableMap:
		fields = v.Value
	case *tengo.Map:
		fields = v.Value
	default:
		return "", false
	}
	id, ok := fields["id"].(*tengo.String)
	if !ok || id.Value == "" {
		return "", false
	}
	return id.Value, true
}

// typeOf reports the puzzle type of a value: string, number or boolean for
// scalars, and array, object or undefined for everything else.
func typeOf(args ...tengo.Object) (tengo.Object, error) {
	if len(args) != 1 {
		return nil, tengo.ErrWrongNumArguments
	}
	var name string
	switch args[0].(type) {
	case *tengo.String, *tengo.Char:
		name = "string"
	case *tengo.Int, *tengo.Float:
		name = "number"
	case *tengo.Bool:
		name = "boolean"
	case *tengo.Array, *tengo.ImmutableArray:
		name = "array"
	case *tengo.Map, *tengo.ImmutableMap:
		name = "object"
	case *tengo.Undefined:
		name = "undefined"
	default:
		name = args[0].TypeName()
	}
	return &tengo.String{Value: name}, nil
}

func includes(args ...tengo.Object) (tengo.Object, error) {
	if len(args) != 2 {
		return nil, tengo.ErrWrongNumArguments
	}
	var items []tengo.Object
	switch v := args[0].(type) {
	case *tengo.Array:
		items = v.Value
	case *tengo.ImmutableArray:
		items = v.Value
	case *tengo.Undefined:
		return tengo.FalseValue, nil
	default:
		return nil, tengo.ErrInvalidArgumentType{Name: "list", Expected: "array", Found: args[0].TypeName()}
	}
	for _, item := range items {
		if item.Equals(args[1]) {
			return tengo.TrueValue, nil
		}
	}
	return tengo.FalseValue, nil
}

func isUndefined(obj tengo.Object) bool {
	_, ok := obj.(*tengo.Undefined)
	return ok
}

func objectAsInt(obj tengo.Object) (int, bool) {
	switch v := obj.(type) {
	case *tengo.Int:
		return int(v.Value), true
	case *tengo.Float:
		if v.Value != math.Trunc(v.Value) {
			return 0, false
		}
		return int(v.Value), true
	}
	return 0, false
}
