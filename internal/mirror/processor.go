package mirror

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"docmirror/internal/event"
)

// DB is the slice of the relational pool the processor needs.
// *pgxpool.Pool satisfies it; tests use a fake.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Processor maps events to stored procedures and executes them. Every
// mirrored procedure shares one calling contract, so execution needs no
// per-domain branches; the procedure reads domain ids out of the
// metadata JSON and performs an idempotent upsert or delete.
type Processor struct {
	db     DB
	routes Routes
	log    *zap.Logger
}

func NewProcessor(db DB, routes Routes, log *zap.Logger) *Processor {
	return &Processor{db: db, routes: routes, log: log}
}

// Resolve returns the procedure for an event type, or ("", false) when
// the type is outside the vocabulary.
func (p *Processor) Resolve(eventType string) (string, bool) {
	return p.routes.Procedure(eventType)
}

// Execute calls the procedure with the fixed parameter set. A nil
// document or previous document binds as the JSON literal null.
func (p *Processor) Execute(ctx context.Context, procedure string, ev *event.Envelope) error {
	doc, err := jsonOrNull(ev.Data.Document)
	if err != nil {
		return fmt.Errorf("marshal document for %s: %w", ev.ID, err)
	}
	prev, err := jsonOrNull(ev.Data.PreviousDocument)
	if err != nil {
		return fmt.Errorf("marshal previous document for %s: %w", ev.ID, err)
	}
	meta, err := json.Marshal(ev.Data)
	if err != nil {
		return fmt.Errorf("marshal metadata for %s: %w", ev.ID, err)
	}

	// Procedure names come from the static routing table, never from
	// message content.
	sql := fmt.Sprintf("call %s($1,$2,$3,$4,$5,$6,$7,$8)", procedure)
	_, err = p.db.Exec(ctx, sql,
		ev.Type,
		string(ev.Data.Operation),
		ev.Source,
		ev.ID,
		ev.Time.UTC(),
		doc,
		prev,
		string(meta),
	)
	if err != nil {
		return fmt.Errorf("execute %s for event %s: %w", procedure, ev.ID, err)
	}
	return nil
}

func jsonOrNull(m map[string]any) (string, error) {
	if m == nil {
		return "null", nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
