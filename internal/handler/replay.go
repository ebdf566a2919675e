package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/roach88/contentgraph/internal/command"
	"github.com/roach88/contentgraph/internal/event"
	"github.com/roach88/contentgraph/internal/ir"
	"github.com/roach88/contentgraph/internal/store"
	"github.com/roach88/contentgraph/internal/workspace"
)

// recordedCommand is a node command read back from event metadata.
type recordedCommand struct {
	cmd  command.NodeCommand
	user ir.UserID
}

// recordedCommands rebuilds the node commands written to cs, in order.
func (d Deps) recordedCommands(ctx context.Context, cs ir.ContentStreamID) ([]recordedCommand, error) {
	stored, err := d.Events.LoadStream(ctx, event.ContentStreamStreamName(cs), 0)
	if err != nil {
		return nil, err
	}
	var out []recordedCommand
	for _, s := range stored {
		md, err := event.DecodeMetadata(s.Metadata)
		if err != nil {
			return nil, fmt.Errorf("event %s: %w", s.ID, err)
		}
		if !md.HasCommand() {
			continue
		}
		cmd, err := command.FromFlatMap(md.CommandType, md.CommandPayload)
		if err != nil {
			return nil, fmt.Errorf("event %s: %w", s.ID, err)
		}
		nc, ok := cmd.(command.NodeCommand)
		if !ok {
			return nil, fmt.Errorf("event %s: %s is not a node command", s.ID, md.CommandType)
		}
		out = append(out, recordedCommand{cmd: nc, user: md.InitiatingUserID})
	}
	return out, nil
}

// partition splits commands into those touching one of refs and the rest.
func partition(cmds []recordedCommand, refs []event.NodeRef) (matching, remaining []recordedCommand) {
	for _, rc := range cmds {
		if command.MatchesAny(rc.cmd, refs) {
			matching = append(matching, rc)
		} else {
			remaining = append(remaining, rc)
		}
	}
	return matching, remaining
}

// replay handles and commits every command against cs. Rejected commands
// are collected; other errors abort. ctx is checked between commands.
func (d Deps) replay(ctx context.Context, cs ir.ContentStreamID, cmds []recordedCommand) ([]event.RebaseErrorItem, error) {
	var failures []event.RebaseErrorItem
	for i, rc := range cmds {
		if err := ctx.Err(); err != nil {
			return failures, err
		}
		deps := d.withContentStream(cs)
		deps.User = rc.user
		if _, err := deps.run(ctx, rc.cmd); err != nil {
			var de *DomainError
			if !errors.As(err, &de) {
				return failures, fmt.Errorf("replay %s: %w", rc.cmd.CommandType(), err)
			}
			failures = append(failures, event.RebaseErrorItem{
				Position:    i,
				CommandType: rc.cmd.CommandType(),
				Message:     de.Error(),
			})
		}
	}
	return failures, nil
}

func replayConflict(reason, msg string, failures []event.RebaseErrorItem) *DomainError {
	details := map[string]string{"reason": reason}
	for _, f := range failures {
		details[strconv.Itoa(f.Position)] = f.CommandType + ": " + f.Message
	}
	return &DomainError{Code: CodeRebaseConflict, Message: msg, Details: details}
}

// publishChanges copies the publishable events of source onto base and
// reports whether there were any. The base must still be at the version
// source was forked from.
func (d Deps) publishChanges(ctx context.Context, source *workspace.ContentStream, base ir.ContentStreamID) (bool, error) {
	if source.SourceID != base {
		return false, NewConcurrencyConflict("BaseWorkspaceHasBeenModifiedInTheMeantime",
			fmt.Errorf("content stream %s was not forked from %s", source.ID, base))
	}
	stored, err := d.Events.LoadStream(ctx, event.ContentStreamStreamName(source.ID), 0)
	if err != nil {
		return false, err
	}
	out := EventsToPublish{
		Stream:          event.ContentStreamStreamName(base),
		ExpectedVersion: store.ExpectVersion(source.SourceVersion),
	}
	for _, s := range stored {
		e, err := event.Decode(s.Type, s.Payload)
		if err != nil {
			return false, err
		}
		p, ok := e.(event.Publishable)
		if !ok {
			continue
		}
		md, err := event.DecodeMetadata(s.Metadata)
		if err != nil {
			return false, err
		}
		out.Events = append(out.Events, PendingEvent{Event: p.WithContentStreamID(base), Metadata: md})
	}
	if len(out.Events) == 0 {
		return false, nil
	}
	if _, err := d.commit(ctx, out); err != nil {
		if store.IsConcurrencyError(err) {
			return false, NewConcurrencyConflict("BaseWorkspaceHasBeenModifiedInTheMeantime", err)
		}
		return false, err
	}
	return true, nil
}

// rollback reopens a workspace stream closed for a partial operation and
// removes the temporary streams created so far. It runs even when ctx was
// cancelled.
func (d Deps) rollback(ctx context.Context, cause error, closed *workspace.ContentStream, temporary ...ir.ContentStreamID) error {
	ctx = context.WithoutCancel(ctx)
	errs := []error{cause}
	if _, err := d.run(ctx, command.ReopenContentStream{ContentStreamID: closed.ID, PreviousState: string(closed.State)}); err != nil {
		errs = append(errs, fmt.Errorf("reopen %s: %w", closed.ID, err))
	}
	for _, id := range temporary {
		cs, err := d.ContentStreams.FindByID(ctx, id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if cs == nil || cs.Removed {
			continue
		}
		if _, err := d.run(ctx, command.RemoveContentStream{ContentStreamID: id}); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", id, err))
		}
	}
	if len(errs) == 1 {
		return cause
	}
	return errors.Join(errs...)
}
