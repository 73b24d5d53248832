package star

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/leapstar/pkg/adapter"
	"github.com/leapstack-labs/leapstar/pkg/core"
	"github.com/leapstack-labs/leapstar/pkg/dialect"
)

// Schema is the validated star layout: the dimension registry, the fact
// spec and the naming rules that tie them together.
type Schema struct {
	registry *Registry
	fact     core.FactSpec
	naming   core.Naming
}

// NewSchema validates a fact spec against the registry. When the fact spec
// lists no dimensions, every registered dimension is referenced in
// registration order.
func NewSchema(reg *Registry, fact core.FactSpec, naming core.Naming) (*Schema, error) {
	if fact.Table == "" {
		return nil, &core.ConfigurationError{Reason: "fact table name is empty"}
	}
	if naming.KeyPrefix == "" {
		return nil, &core.ConfigurationError{Reason: "key prefix is empty"}
	}
	if len(fact.Dimensions) == 0 {
		fact.Dimensions = reg.Names()
	}

	s := &Schema{
		registry: reg,
		fact: core.FactSpec{
			Table:      fact.Table,
			Measures:   append([]core.Field(nil), fact.Measures...),
			Dimensions: append([]string(nil), fact.Dimensions...),
		},
		naming: naming,
	}

	columns := map[string]string{s.FactKey(): "fact key"}
	claim := func(name, owner string) error {
		if prev, taken := columns[name]; taken {
			return &core.ConfigurationError{Reason: fmt.Sprintf("fact column %s is used by both %s and %s", name, prev, owner)}
		}
		columns[name] = owner
		return nil
	}
	for _, m := range s.fact.Measures {
		if m.Type != core.TypeInteger {
			return nil, &core.ConfigurationError{Reason: fmt.Sprintf("measure %s must be integer, got %s", m.Name, m.Type)}
		}
		if err := claim(m.Name, "measure "+m.Name); err != nil {
			return nil, err
		}
	}
	for _, dim := range s.fact.Dimensions {
		if _, ok := reg.Get(dim); !ok {
			return nil, &core.ConfigurationError{Reason: fmt.Sprintf("fact %s references unknown dimension %s", fact.Table, dim)}
		}
		if err := claim(s.naming.KeyColumn(dim), "dimension "+dim); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Registry returns the dimension registry.
func (s *Schema) Registry() *Registry { return s.registry }

// Naming returns the naming rules.
func (s *Schema) Naming() core.Naming { return s.naming }

// FactTable returns the fact table name.
func (s *Schema) FactTable() string { return s.fact.Table }

// FactKey returns the fact table's surrogate key column.
func (s *Schema) FactKey() string { return s.naming.KeyColumn(s.fact.Table) }

// Measures returns the measure fields in order.
func (s *Schema) Measures() []core.Field {
	return append([]core.Field(nil), s.fact.Measures...)
}

// Dimensions returns the specs referenced by the fact table, in fact order.
func (s *Schema) Dimensions() []core.DimensionSpec {
	out := make([]core.DimensionSpec, len(s.fact.Dimensions))
	for i, name := range s.fact.Dimensions {
		out[i], _ = s.registry.Get(name)
	}
	return out
}

// KeyField returns the surrogate key field of a dimension. The fact table's
// foreign key to the dimension has the same name.
func (s *Schema) KeyField(dimension string) core.Field {
	return core.Field{Name: s.naming.KeyColumn(dimension), Type: core.TypeInteger}
}

// FactColumns returns the fact table's data columns: measures followed by
// one foreign key per dimension. The store-assigned fact key is excluded.
func (s *Schema) FactColumns() []core.Field {
	cols := s.Measures()
	for _, dim := range s.fact.Dimensions {
		cols = append(cols, s.KeyField(dim))
	}
	return cols
}

// DimensionTableDef describes a dimension table: key column then fields.
func (s *Schema) DimensionTableDef(spec core.DimensionSpec) core.TableDef {
	key := s.KeyField(spec.Name)
	return core.TableDef{
		Name:    spec.Name,
		Columns: append([]core.Field{key}, spec.Fields...),
		NotNull: []string{key.Name},
	}
}

// FactTableDef describes the fact table for appends.
func (s *Schema) FactTableDef() core.TableDef {
	return core.TableDef{
		Name:     s.fact.Table,
		Columns:  s.FactColumns(),
		Identity: s.FactKey(),
	}
}

// Statement is one DDL statement of a fact schema.
type Statement struct {
	// Constraint is the constraint the statement manages, empty for table creation.
	Constraint string
	SQL        string
}

// FactSchema is the ordered DDL that creates the fact table and its foreign keys.
type FactSchema struct {
	Table      string
	Columns    []core.Field
	Statements []Statement
	// Skipped lists foreign keys the dialect cannot add to an existing table.
	Skipped []string
}

// SQL returns the statement texts in order.
func (fs *FactSchema) SQL() []string {
	out := make([]string, len(fs.Statements))
	for i, st := range fs.Statements {
		out[i] = st.SQL
	}
	return out
}

// BuildSchema renders the fact table DDL. It is a pure function of the
// schema and dialect. Every statement is idempotent: the table is created
// only if absent, and each foreign key is dropped if present before it is
// added again.
func BuildSchema(s *Schema, d *dialect.Dialect) (*FactSchema, error) {
	if d == nil {
		return nil, dialect.ErrDialectRequired
	}
	fs := &FactSchema{Table: s.FactTable(), Columns: s.FactColumns()}
	table := d.QuoteQualified(s.FactTable())
	keyType := d.TypeName(core.TypeInteger)

	var keyDef string
	if d.IdentitySequence() {
		seq := s.FactTable() + "_seq"
		fs.Statements = append(fs.Statements, Statement{
			SQL: "CREATE SEQUENCE IF NOT EXISTS " + d.QuoteQualified(seq),
		})
		keyDef = fmt.Sprintf("%s %s DEFAULT nextval('%s') PRIMARY KEY", d.QuoteIdentifier(s.FactKey()), keyType, seq)
	} else {
		keyDef = fmt.Sprintf("%s %s GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY", d.QuoteIdentifier(s.FactKey()), keyType)
	}

	cols := []string{keyDef}
	for _, c := range fs.Columns {
		cols = append(cols, d.QuoteIdentifier(c.Name)+" "+d.TypeName(c.Type))
	}
	fs.Statements = append(fs.Statements, Statement{
		SQL: "CREATE TABLE IF NOT EXISTS " + table + " (" + strings.Join(cols, ", ") + ")",
	})

	naming := s.Naming()
	for _, dim := range s.Dimensions() {
		name := naming.ForeignKeyName(s.FactTable(), dim.Name)
		if !d.SupportsAddForeignKey() {
			fs.Skipped = append(fs.Skipped, name)
			continue
		}
		key := d.QuoteIdentifier(s.KeyField(dim.Name).Name)
		fs.Statements = append(fs.Statements,
			Statement{
				Constraint: name,
				SQL:        fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT IF EXISTS %s", table, d.QuoteIdentifier(name)),
			},
			Statement{
				Constraint: name,
				SQL: fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
					table, d.QuoteIdentifier(name), key, d.QuoteQualified(dim.Name), key),
			},
		)
	}
	return fs, nil
}

// SchemaBuilder applies fact schemas to a store.
type SchemaBuilder struct {
	store  Store
	logger *slog.Logger
}

// NewSchemaBuilder creates a schema builder. A nil logger discards output.
func NewSchemaBuilder(store Store, logger *slog.Logger) *SchemaBuilder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SchemaBuilder{store: store, logger: logger}
}

// Apply executes every statement of fs in one transaction. On failure
// nothing is committed; a failing constraint statement is reported as a
// *core.ConstraintViolationError naming the constraint.
func (b *SchemaBuilder) Apply(ctx context.Context, fs *FactSchema) error {
	for _, name := range fs.Skipped {
		b.logger.Warn("foreign key not supported by store, skipped", "table", fs.Table, "constraint", name)
	}
	err := b.store.ExecInTx(ctx, fs.SQL())
	if err == nil {
		b.logger.Info("fact schema applied", "table", fs.Table, "statements", len(fs.Statements))
		return nil
	}

	var stmtErr *adapter.StatementError
	if errors.As(err, &stmtErr) && stmtErr.Index < len(fs.Statements) {
		if c := fs.Statements[stmtErr.Index].Constraint; c != "" {
			err = &core.ConstraintViolationError{Table: fs.Table, Constraint: c, Err: stmtErr.Err}
		}
	}
	return &core.StageError{Entity: fs.Table, Stage: core.StageSchema, Err: err}
}
