package repository

import (
	"context"
	"fmt"
	"strings"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"

	entschema "github.com/joseph-ayodele/docextract/db/ent/schema"
)

// definitions are the ent schemas backing the store, in creation order.
var definitions = []ent.Interface{
	entschema.Extraction{},
	entschema.ExtractionPrompt{},
}

// Tables builds the migration tables from the ent schema definitions.
func Tables() ([]*schema.Table, error) {
	out := make([]*schema.Table, 0, len(definitions))
	for _, d := range definitions {
		t, err := tableOf(d)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// Migrate creates or updates the store's tables.
func (d *DB) Migrate(ctx context.Context) error {
	tables, err := Tables()
	if err != nil {
		return err
	}
	m, err := schema.NewMigrate(d.drv)
	if err != nil {
		return fmt.Errorf("init migrate: %w", err)
	}
	if err := m.Create(ctx, tables...); err != nil {
		d.logger.Error("db.migrate.failed", "error", err)
		return fmt.Errorf("migrate: %w", err)
	}
	d.logger.Info("db.migrate.ok", "dialect", d.dialect, "tables", len(tables))
	return nil
}

func tableOf(s ent.Interface) (*schema.Table, error) {
	name := tableName(s)
	if name == "" {
		return nil, fmt.Errorf("schema %T has no table annotation", s)
	}
	t := &schema.Table{Name: name}
	cols := make(map[string]*schema.Column)
	for _, f := range s.Fields() {
		desc := f.Descriptor()
		if desc.Err != nil {
			return nil, fmt.Errorf("%s.%s: %w", name, desc.Name, desc.Err)
		}
		c := &schema.Column{
			Name:       columnName(desc),
			Type:       desc.Info.Type,
			SchemaType: desc.SchemaType,
			Size:       int64(desc.Size),
			Nullable:   desc.Optional,
			Unique:     desc.Unique,
		}
		if desc.Name == "id" {
			t.PrimaryKey = []*schema.Column{c}
		}
		t.Columns = append(t.Columns, c)
		cols[desc.Name] = c
	}
	for _, idx := range s.Indexes() {
		desc := idx.Descriptor()
		ix := &schema.Index{
			Name:   name + "_" + strings.Join(desc.Fields, "_"),
			Unique: desc.Unique,
		}
		if desc.StorageKey != "" {
			ix.Name = desc.StorageKey
		}
		for _, f := range desc.Fields {
			c, ok := cols[f]
			if !ok {
				return nil, fmt.Errorf("%s: index on unknown field %q", name, f)
			}
			ix.Columns = append(ix.Columns, c)
		}
		t.Indexes = append(t.Indexes, ix)
	}
	return t, nil
}

func tableName(s ent.Interface) string {
	for _, a := range s.Annotations() {
		switch ann := a.(type) {
		case entsql.Annotation:
			return ann.Table
		case *entsql.Annotation:
			return ann.Table
		}
	}
	return ""
}

func columnName(d *field.Descriptor) string {
	if d.StorageKey != "" {
		return d.StorageKey
	}
	return d.Name
}

// validateRow runs the ent field validators declared on s against the
// string values about to be written.
func validateRow(s ent.Interface, values map[string]string) error {
	for _, f := range s.Fields() {
		desc := f.Descriptor()
		v, ok := values[desc.Name]
		if !ok {
			continue
		}
		for _, fn := range desc.Validators {
			check, ok := fn.(func(string) error)
			if !ok {
				continue
			}
			if err := check(v); err != nil {
				return fmt.Errorf("%s: %w", desc.Name, err)
			}
		}
	}
	return nil
}
