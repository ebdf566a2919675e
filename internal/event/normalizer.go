package event

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
)

// registry maps every persisted event type to its Go type. It is fixed at
// startup; there is no runtime registration.
var registry = map[Type]reflect.Type{}

func register(events ...Event) {
	for _, e := range events {
		registry[e.EventType()] = reflect.TypeOf(e)
	}
}

func init() {
	register(
		ContentStreamWasCreated{},
		ContentStreamWasForked{},
		ContentStreamWasClosed{},
		ContentStreamWasReopened{},
		ContentStreamWasRemoved{},
		RootWorkspaceWasCreated{},
		WorkspaceWasCreated{},
		WorkspaceWasRenamed{},
		WorkspaceOwnerWasChanged{},
		WorkspaceWasRemoved{},
		WorkspaceWasPublished{},
		WorkspaceWasPartiallyPublished{},
		WorkspaceWasDiscarded{},
		WorkspaceWasPartiallyDiscarded{},
		WorkspaceRebaseWasStarted{},
		WorkspaceWasRebased{},
		WorkspaceRebaseFailed{},
		RootNodeAggregateWithNodeWasCreated{},
		NodeAggregateWithNodeWasCreated{},
		NodePropertiesWereSet{},
		NodeReferencesWereSet{},
		NodeAggregateWasRemoved{},
		NodeAggregateWasDisabled{},
		NodeAggregateWasEnabled{},
		NodeAggregateNameWasChanged{},
		NodeAggregateTypeWasChanged{},
		NodeSpecializationVariantWasCreated{},
		NodeGeneralizationVariantWasCreated{},
		NodePeerVariantWasCreated{},
		NodeAggregateWasMoved{},
	)
}

// UnknownTypeError is returned when decoding an unregistered event type.
type UnknownTypeError struct {
	Type string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown event type %q", e.Type)
}

// Types returns every registered event type, sorted.
func Types() []Type {
	types := make([]Type, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Encode serializes an event's payload.
func Encode(e Event) (json.RawMessage, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", e.EventType(), err)
	}
	return data, nil
}

// Decode restores a typed event from its persisted type name and payload.
func Decode(eventType string, payload []byte) (Event, error) {
	rt, ok := registry[Type(eventType)]
	if !ok {
		return nil, &UnknownTypeError{Type: eventType}
	}
	ptr := reflect.New(rt)
	if err := json.Unmarshal(payload, ptr.Interface()); err != nil {
		return nil, fmt.Errorf("decode %s: %w", eventType, err)
	}
	e, ok := ptr.Elem().Interface().(Event)
	if !ok {
		return nil, fmt.Errorf("decode %s: %s does not implement Event", eventType, rt)
	}
	if fixer, ok := e.(interface{ normalize() Event }); ok {
		e = fixer.normalize()
	}
	return e, nil
}

// Property values come back from JSON with float64 numbers.

func (e NodeAggregateWithNodeWasCreated) normalize() Event {
	e.InitialPropertyValues = e.InitialPropertyValues.NormalizeNumbers()
	return e
}

func (e NodePropertiesWereSet) normalize() Event {
	e.PropertyValues = e.PropertyValues.NormalizeNumbers()
	return e
}

func (e NodeReferencesWereSet) normalize() Event {
	for i := range e.References {
		e.References[i].Properties = e.References[i].Properties.NormalizeNumbers()
	}
	return e
}
