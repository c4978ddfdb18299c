package propagation

import "github.com/ekaya-inc/ekaya-erd/pkg/models"

// Rewrite returns a deep copy of tree with every id and every reference field replaced
// by its mapped persisted id. Values absent from the map are already persisted and are
// kept. The input is never modified; a nil tree yields nil.
func Rewrite(tree *models.SchemaSnapshot, ids *IDMap) *models.SchemaSnapshot {
	if tree == nil {
		return nil
	}
	if ids == nil {
		ids = NewIDMap()
	}

	out := *tree
	out.ID = ids.Resolve(models.KindSchema, tree.ID)
	out.Tables = make([]*models.TableSnapshot, 0, len(tree.Tables))
	for _, t := range tree.Tables {
		out.Tables = append(out.Tables, rewriteTable(t, ids))
	}
	return &out
}

func rewriteTable(t *models.TableSnapshot, ids *IDMap) *models.TableSnapshot {
	out := *t
	out.ID = ids.Resolve(models.KindTable, t.ID)
	out.SchemaID = ids.Resolve(models.KindSchema, t.SchemaID)

	out.Columns = make([]*models.ColumnSnapshot, 0, len(t.Columns))
	for _, c := range t.Columns {
		col := *c
		col.ID = ids.Resolve(models.KindColumn, c.ID)
		col.TableID = ids.Resolve(models.KindTable, c.TableID)
		out.Columns = append(out.Columns, &col)
	}

	out.Indexes = make([]*models.IndexSnapshot, 0, len(t.Indexes))
	for _, i := range t.Indexes {
		idx := *i
		idx.ID = ids.Resolve(models.KindIndex, i.ID)
		idx.TableID = ids.Resolve(models.KindTable, i.TableID)
		idx.Columns = make([]*models.IndexColumnSnapshot, 0, len(i.Columns))
		for _, ic := range i.Columns {
			c := *ic
			c.ID = ids.Resolve(models.KindIndexColumn, ic.ID)
			c.IndexID = ids.Resolve(models.KindIndex, ic.IndexID)
			c.ColumnID = ids.Resolve(models.KindColumn, ic.ColumnID)
			idx.Columns = append(idx.Columns, &c)
		}
		out.Indexes = append(out.Indexes, &idx)
	}

	out.Constraints = make([]*models.ConstraintSnapshot, 0, len(t.Constraints))
	for _, c := range t.Constraints {
		con := *c
		con.ID = ids.Resolve(models.KindConstraint, c.ID)
		con.TableID = ids.Resolve(models.KindTable, c.TableID)
		con.CheckExpr = copyString(c.CheckExpr)
		con.DefaultExpr = copyString(c.DefaultExpr)
		con.Columns = make([]*models.ConstraintColumnSnapshot, 0, len(c.Columns))
		for _, cc := range c.Columns {
			v := *cc
			v.ID = ids.Resolve(models.KindConstraintColumn, cc.ID)
			v.ConstraintID = ids.Resolve(models.KindConstraint, cc.ConstraintID)
			v.ColumnID = ids.Resolve(models.KindColumn, cc.ColumnID)
			con.Columns = append(con.Columns, &v)
		}
		out.Constraints = append(out.Constraints, &con)
	}

	out.Relationships = make([]*models.RelationshipSnapshot, 0, len(t.Relationships))
	for _, r := range t.Relationships {
		rel := *r
		rel.ID = ids.Resolve(models.KindRelationship, r.ID)
		rel.SrcTableID = ids.Resolve(models.KindTable, r.SrcTableID)
		rel.TgtTableID = ids.Resolve(models.KindTable, r.TgtTableID)
		rel.Columns = make([]*models.RelationshipColumnSnapshot, 0, len(r.Columns))
		for _, rc := range r.Columns {
			v := *rc
			v.ID = ids.Resolve(models.KindRelationshipColumn, rc.ID)
			v.RelationshipID = ids.Resolve(models.KindRelationship, rc.RelationshipID)
			v.FkColumnID = ids.Resolve(models.KindColumn, rc.FkColumnID)
			v.RefColumnID = ids.Resolve(models.KindColumn, rc.RefColumnID)
			rel.Columns = append(rel.Columns, &v)
		}
		out.Relationships = append(out.Relationships, &rel)
	}

	return &out
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
