package save

import (
	"context"
	"fmt"
	"log/slog"
	"maps"

	"github.com/TrueNine/jimmer"
	"github.com/TrueNine/jimmer/dialect/sql"
	"github.com/TrueNine/jimmer/schema"
)

// Mode selects the statements issued for the entities of a command.
type Mode int

// Save modes.
const (
	// Upsert inserts new rows and updates existing ones, matched by id or,
	// for entities without id, by business key.
	Upsert Mode = iota
	// InsertOnly inserts every entity.
	InsertOnly
	// UpdateOnly updates every entity by id.
	UpdateOnly
)

// String implements the fmt.Stringer interface.
func (m Mode) String() string {
	switch m {
	case Upsert:
		return "upsert"
	case InsertOnly:
		return "insert-only"
	case UpdateOnly:
		return "update-only"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode returns the mode named name.
func ParseMode(name string) (Mode, error) {
	for _, m := range []Mode{Upsert, InsertOnly, UpdateOnly} {
		if m.String() == name {
			return m, nil
		}
	}
	return Upsert, fmt.Errorf("save: unknown mode %q", name)
}

// Client runs save commands against one entity model and one flavor. Its
// configuration is read-only once built and it is safe for concurrent
// use; every command runs on its own Executor.
type Client struct {
	model       *schema.Model
	flavor      sql.Flavor
	translators jimmer.Translators
	logger      *slog.Logger
	policy      BatchPolicy
	generators  map[string]IDGenerator
	batch       bool
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithTranslators appends process-wide translators shared by every command.
func WithTranslators(ts ...jimmer.Translator) ClientOption {
	return func(c *Client) {
		c.translators = c.translators.With(ts...)
	}
}

// WithLogger sets the logger of the client.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// WithBatchPolicy replaces the default batch policy.
func WithBatchPolicy(p BatchPolicy) ClientOption {
	return func(c *Client) {
		c.policy = p
	}
}

// WithIDGenerator sets the id generator of the entity type typ, or of
// every type without one when typ is empty.
func WithIDGenerator(typ string, g IDGenerator) ClientOption {
	return func(c *Client) {
		c.generators[typ] = g
	}
}

// WithBatch enables or disables batched execution for every command.
func WithBatch(enabled bool) ClientOption {
	return func(c *Client) {
		c.batch = enabled
	}
}

// NewClient returns a client saving entities of model with the given
// flavor.
func NewClient(model *schema.Model, flavor sql.Flavor, opts ...ClientOption) (*Client, error) {
	if model == nil {
		return nil, fmt.Errorf("save: nil model")
	}
	if err := flavor.Validate(); err != nil {
		return nil, err
	}
	c := &Client{
		model:      model,
		flavor:     flavor,
		logger:     slog.Default(),
		policy:     DefaultBatchPolicy(),
		generators: make(map[string]IDGenerator),
		batch:      true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Model returns the entity model of the client.
func (c *Client) Model() *schema.Model { return c.model }

// Flavor returns the flavor of the client.
func (c *Client) Flavor() sql.Flavor { return c.flavor }

// Option configures one save command.
type Option func(*command)

// WithMode sets the mode of the command. The default is Upsert.
func WithMode(m Mode) Option {
	return func(cmd *command) {
		cmd.mode = m
	}
}

// WithCommandTranslator registers translators for this command only.
// They run before the process-wide ones.
func WithCommandTranslator(ts ...jimmer.Translator) Option {
	return func(cmd *command) {
		cmd.translators = cmd.translators.With(ts...)
	}
}

// WithCommandIDGenerator overrides the id generator of typ, or of every
// type when typ is empty, for this command only.
func WithCommandIDGenerator(typ string, g IDGenerator) Option {
	return func(cmd *command) {
		cmd.generators[typ] = g
	}
}

// WithoutBatch disables batched execution for this command.
func WithoutBatch() Option {
	return func(cmd *command) {
		cmd.batch = false
	}
}

// Result reports what a save command wrote.
type Result struct {
	affected map[string]int64
	ids      map[*Entity]any
}

func newResult() *Result {
	return &Result{affected: make(map[string]int64), ids: make(map[*Entity]any)}
}

// Affected returns the number of rows affected in the table of the entity
// type, or in the junction table, named name.
func (r *Result) Affected(name string) int64 {
	return r.affected[name]
}

// AffectedAll returns a copy of the affected row counts, keyed by entity
// type or junction table name.
func (r *Result) AffectedAll() map[string]int64 {
	return maps.Clone(r.affected)
}

// TotalAffected returns the number of affected rows across all tables.
func (r *Result) TotalAffected() int64 {
	var n int64
	for _, v := range r.affected {
		n += v
	}
	return n
}

// ID returns the id of a saved entity, including ids assigned by the
// database or a generator.
func (r *Result) ID(e *Entity) (any, bool) {
	id, ok := r.ids[e]
	return id, ok
}

// command is the state of one save invocation.
type command struct {
	*Client
	exec        Executor
	mode        Mode
	translators jimmer.Translators
	generators  map[string]IDGenerator
	batch       bool
	result      *Result
}

// Save writes the graphs of roots with the statements of exec and returns
// the affected row counts. Statements run sequentially in dependency order.
//
// Diagnosed constraint violations are returned as *jimmer.SaveError, or as
// the error a translator replaced them with. Misuses are returned as
// *jimmer.ConfigurationError before any statement runs, other failures as
// *jimmer.ExecutionError. On failure the caller is expected to roll back
// the transaction of exec.
func (c *Client) Save(ctx context.Context, exec Executor, roots []*Entity, opts ...Option) (*Result, error) {
	cmd := &command{
		Client:      c,
		exec:        exec,
		translators: c.translators.With(),
		generators:  maps.Clone(c.generators),
		batch:       c.batch,
		result:      newResult(),
	}
	for _, opt := range opts {
		opt(cmd)
	}
	r := newResolver(c.model, cmd.mode, cmd.generatorOf)
	for _, root := range roots {
		if err := r.collect(root); err != nil {
			return nil, err
		}
	}
	deferred, err := r.order()
	if err != nil {
		return nil, err
	}
	if err := r.plan(ctx); err != nil {
		return nil, err
	}
	for _, b := range r.batches() {
		if err := cmd.write(ctx, b); err != nil {
			return nil, err
		}
	}
	if err := cmd.writeDeferred(ctx, deferred); err != nil {
		return nil, err
	}
	if err := cmd.reconcile(ctx, r.middles); err != nil {
		return nil, err
	}
	for _, n := range r.nodes {
		if !n.hasID {
			continue
		}
		for _, e := range n.entities {
			cmd.result.ids[e] = n.id
		}
	}
	return cmd.result, nil
}

// generatorOf returns the id generator of typ: type entries before
// defaults, command entries before client entries.
func (cmd *command) generatorOf(typ *schema.Type) IDGenerator {
	if g, ok := cmd.generators[typ.Name]; ok {
		return g
	}
	return cmd.generators[""]
}

func (cmd *command) strategyOf(typ *schema.Type) IDStrategy {
	if g := cmd.generatorOf(typ); g != nil {
		return g.Strategy()
	}
	return StrategyNone
}

// batched reports whether a statement of the given strategy runs as one
// batched call.
func (cmd *command) batched(s IDStrategy) bool {
	return cmd.batch && cmd.flavor.Batch && cmd.policy.Allows(cmd.flavor.Name, s)
}

// translate runs the translator chain on a diagnosed error.
func (cmd *command) translate(ctx context.Context, se *jimmer.SaveError, stmt *Statement) error {
	path := se.Path
	if se.Kind == jimmer.IllegalTargetID {
		path = path.Parent()
	}
	return cmd.translators.Translate(ctx, se, jimmer.TranslateContext{
		Dialect: cmd.flavor.Name,
		SQL:     stmt.SQL,
		Rows:    stmt.Rows,
		Path:    path,
	})
}
