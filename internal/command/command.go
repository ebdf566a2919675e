package command

import (
	"fmt"

	"github.com/roach88/contentgraph/internal/dimension"
	"github.com/roach88/contentgraph/internal/event"
	"github.com/roach88/contentgraph/internal/ir"
)

// Command is an intent to change the content repository.
type Command interface {
	CommandType() string
	Validate() error
}

// NodeCommand targets a workspace's content. Node commands are recorded in
// event metadata and replayed by rebase and partial publish or discard.
type NodeCommand interface {
	Command
	GetWorkspaceName() ir.WorkspaceName
	// MatchesNodeRef reports whether the command changes the selected node.
	MatchesNodeRef(ref event.NodeRef) bool
}

// IDGenerator produces unique ids for aggregates and content streams.
type IDGenerator interface {
	Generate() string
}

// NodeVariantSelectionStrategy selects which variants removal, disabling
// and enabling affect.
type NodeVariantSelectionStrategy string

const (
	StrategyAllVariants        NodeVariantSelectionStrategy = "allVariants"
	StrategyAllSpecializations NodeVariantSelectionStrategy = "allSpecializations"
)

func (s NodeVariantSelectionStrategy) validate() error {
	switch s {
	case StrategyAllVariants, StrategyAllSpecializations:
		return nil
	}
	return fmt.Errorf("invalid node variant selection strategy %q", s)
}

// RelationDistributionStrategy selects which variants a move affects.
type RelationDistributionStrategy string

const (
	MoveScatter               RelationDistributionStrategy = "scatter"
	MoveGatherAll             RelationDistributionStrategy = "gatherAll"
	MoveGatherSpecializations RelationDistributionStrategy = "gatherSpecializations"
)

func (s RelationDistributionStrategy) validate() error {
	switch s {
	case MoveScatter, MoveGatherAll, MoveGatherSpecializations:
		return nil
	}
	return fmt.Errorf("invalid relation distribution strategy %q", s)
}

// TypeChangeStrategy decides what happens to children the new type no
// longer allows.
type TypeChangeStrategy string

const (
	// TypeChangeHappyPath rejects the change if any child would become
	// disallowed.
	TypeChangeHappyPath TypeChangeStrategy = "happypath"
	// TypeChangeDelete removes disallowed children.
	TypeChangeDelete TypeChangeStrategy = "delete"
)

func (s TypeChangeStrategy) validate() error {
	switch s {
	case TypeChangeHappyPath, TypeChangeDelete:
		return nil
	}
	return fmt.Errorf("invalid type change strategy %q", s)
}

// RebaseStrategy decides what happens when replayed commands fail.
type RebaseStrategy string

const (
	// RebaseFail keeps the workspace on its stream and reports the conflict.
	RebaseFail RebaseStrategy = "fail"
	// RebaseForce skips failing commands and switches anyway.
	RebaseForce RebaseStrategy = "force"
)

func (s RebaseStrategy) validate() error {
	switch s {
	case "", RebaseFail, RebaseForce:
		return nil
	}
	return fmt.Errorf("invalid rebase strategy %q", s)
}

// matchesRef compares an aggregate and, when the selector names a point, the
// point the command is about.
func matchesRef(ref event.NodeRef, id ir.NodeAggregateID, point dimension.DimensionSpacePoint) bool {
	if ref.NodeAggregateID != id {
		return false
	}
	if len(ref.DimensionSpacePoint.Coordinates()) == 0 {
		return true
	}
	return ref.DimensionSpacePoint.Equal(point)
}

func validateOptionalName(name ir.NodeName) error {
	if name == "" {
		return nil
	}
	return name.Validate()
}

func validateOptionalID(id ir.NodeAggregateID) error {
	if id == "" {
		return nil
	}
	return id.Validate()
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
