package handler

import (
	"context"

	"github.com/roach88/contentgraph/internal/command"
	"github.com/roach88/contentgraph/internal/event"
	"github.com/roach88/contentgraph/internal/store"
)

func (d Deps) createContentStream(ctx context.Context, c command.CreateContentStream) (EventsToPublish, error) {
	if err := d.requireContentStreamAbsent(ctx, c.ContentStreamID); err != nil {
		return EventsToPublish{}, err
	}
	return d.plain(event.ContentStreamStreamName(c.ContentStreamID), store.ExpectNoStream(),
		event.ContentStreamWasCreated{ContentStreamID: c.ContentStreamID}), nil
}

func (d Deps) forkContentStream(ctx context.Context, c command.ForkContentStream) (EventsToPublish, error) {
	source, err := d.requireContentStream(ctx, c.SourceContentStreamID)
	if err != nil {
		return EventsToPublish{}, err
	}
	if err := d.requireContentStreamAbsent(ctx, c.NewContentStreamID); err != nil {
		return EventsToPublish{}, err
	}
	return d.plain(event.ContentStreamStreamName(c.NewContentStreamID), store.ExpectNoStream(),
		event.ContentStreamWasForked{
			NewContentStreamID:           c.NewContentStreamID,
			SourceContentStreamID:        source.ID,
			VersionOfSourceContentStream: source.Version,
		}), nil
}

func (d Deps) closeContentStream(ctx context.Context, c command.CloseContentStream) (EventsToPublish, error) {
	cs, err := d.requireOpenContentStream(ctx, c.ContentStreamID)
	if err != nil {
		return EventsToPublish{}, err
	}
	return d.plain(event.ContentStreamStreamName(cs.ID), store.ExpectVersion(cs.Version),
		event.ContentStreamWasClosed{ContentStreamID: cs.ID}), nil
}

func (d Deps) reopenContentStream(ctx context.Context, c command.ReopenContentStream) (EventsToPublish, error) {
	cs, err := d.requireContentStream(ctx, c.ContentStreamID)
	if err != nil {
		return EventsToPublish{}, err
	}
	if !cs.Closed {
		return EventsToPublish{}, violation("ContentStreamIsNotClosed", "content stream %s is not closed", cs.ID)
	}
	return d.plain(event.ContentStreamStreamName(cs.ID), store.ExpectVersion(cs.Version),
		event.ContentStreamWasReopened{ContentStreamID: cs.ID, PreviousState: c.PreviousState}), nil
}

func (d Deps) removeContentStream(ctx context.Context, c command.RemoveContentStream) (EventsToPublish, error) {
	cs, err := d.requireContentStream(ctx, c.ContentStreamID)
	if err != nil {
		return EventsToPublish{}, err
	}
	return d.plain(event.ContentStreamStreamName(cs.ID), store.ExpectVersion(cs.Version),
		event.ContentStreamWasRemoved{ContentStreamID: cs.ID}), nil
}
