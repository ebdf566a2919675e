package command

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"

	"github.com/mitchellh/mapstructure"

	"github.com/roach88/contentgraph/internal/dimension"
)

var commandTypes = map[string]reflect.Type{}

func register(cmds ...Command) {
	for _, c := range cmds {
		commandTypes[c.CommandType()] = reflect.TypeOf(c)
	}
}

func init() {
	register(
		CreateContentStream{},
		ForkContentStream{},
		CloseContentStream{},
		ReopenContentStream{},
		RemoveContentStream{},
		CreateRootWorkspace{},
		CreateWorkspace{},
		RenameWorkspace{},
		ChangeWorkspaceOwner{},
		DeleteWorkspace{},
		PublishWorkspace{},
		RebaseWorkspace{},
		DiscardWorkspace{},
		PublishIndividualNodesFromWorkspace{},
		DiscardIndividualNodesFromWorkspace{},
		CreateRootNodeAggregateWithNode{},
		CreateNodeAggregateWithNode{},
		SetNodeProperties{},
		SetNodeReferences{},
		RemoveNodeAggregate{},
		DisableNodeAggregate{},
		EnableNodeAggregate{},
		ChangeNodeAggregateName{},
		ChangeNodeAggregateType{},
		CreateNodeVariant{},
		MoveNodeAggregate{},
		CopyNodesRecursively{},
	)
}

// Types returns every known command type, sorted.
func Types() []string {
	types := make([]string, 0, len(commandTypes))
	for t := range commandTypes {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// ToFlatMap serializes a command into a JSON-compatible map, the form stored
// in event metadata.
func ToFlatMap(c Command) (map[string]any, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("flatten %s: %w", c.CommandType(), err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("flatten %s: %w", c.CommandType(), err)
	}
	return m, nil
}

// FromFlatMap restores and validates a command from its type name and flat
// map.
func FromFlatMap(commandType string, m map[string]any) (Command, error) {
	rt, ok := commandTypes[commandType]
	if !ok {
		return nil, fmt.Errorf("unknown command type %q", commandType)
	}
	ptr := reflect.New(rt)
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: dimensionPointHook,
		TagName:    "json",
		Result:     ptr.Interface(),
	})
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", commandType, err)
	}
	if err := decoder.Decode(m); err != nil {
		return nil, fmt.Errorf("decode %s: %w", commandType, err)
	}
	c := ptr.Elem().Interface().(Command)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("decode %s: %w", commandType, err)
	}
	return c, nil
}

var (
	pointType  = reflect.TypeOf(dimension.DimensionSpacePoint{})
	originType = reflect.TypeOf(dimension.OriginDimensionSpacePoint{})
)

// dimensionPointHook turns coordinate objects into points. Points keep their
// coordinates unexported, so mapstructure cannot fill them field by field.
func dimensionPointHook(from, to reflect.Type, data any) (any, error) {
	if to != pointType && to != originType {
		return data, nil
	}
	var coordinates map[string]string
	switch v := data.(type) {
	case nil:
	case map[string]string:
		coordinates = v
	case map[string]any:
		coordinates = make(map[string]string, len(v))
		for k, raw := range v {
			s, ok := raw.(string)
			if !ok {
				return nil, fmt.Errorf("dimension %q: coordinate must be a string, got %T", k, raw)
			}
			coordinates[k] = s
		}
	case dimension.DimensionSpacePoint:
		coordinates = v.Coordinates()
	case dimension.OriginDimensionSpacePoint:
		coordinates = v.Coordinates()
	default:
		return nil, fmt.Errorf("cannot decode %s from %s", to, from)
	}
	point := dimension.NewDimensionSpacePoint(coordinates)
	if to == originType {
		return dimension.OriginFromPoint(point), nil
	}
	return point, nil
}
