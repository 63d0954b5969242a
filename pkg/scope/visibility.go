package scope

import "strings"

// VisibleItems returns what a position inside target may reference: the
// target's own aliases, the columns of its derived tables and CTE
// references, placeholders for its base tables, and the aliases of its
// immediate parent for correlation. Siblings are never visible: a derived
// table sees none of the other derived tables of the FROM clause it sits in.
func VisibleItems(scopes []Scope, target Scope) VisibilitySet {
	return VisibleItemsDepth(scopes, target, 1)
}

// VisibleItemsDepth is VisibleItems with correlation reaching up to depth
// ancestors, nearest first. A name already contributed by a nearer
// ancestor is not repeated. depth <= 0 disables correlation.
func VisibleItemsDepth(scopes []Scope, target Scope, depth int) VisibilitySet {
	vis := VisibilitySet{
		Aliases:             []VisibleAlias{},
		ParentAliases:       []VisibleAlias{},
		DerivedTableColumns: []DerivedColumns{},
		TableColumns:        []TableColumns{},
	}

	for _, t := range target.Tables {
		name := t.VisibleName()
		if name != "" {
			vis.Aliases = append(vis.Aliases, VisibleAlias{Name: name, Table: t, Scope: target.Index})
		}

		switch {
		case t.IsDerivedTable:
			vis.DerivedTableColumns = append(vis.DerivedTableColumns, DerivedColumns{
				Alias:   t.Alias,
				Scope:   t.DerivedScope,
				Columns: exposedOf(scopes, t.DerivedScope),
			})
		case t.CTEScope >= 0:
			vis.DerivedTableColumns = append(vis.DerivedTableColumns, DerivedColumns{
				Alias:   name,
				Scope:   t.CTEScope,
				Columns: exposedOf(scopes, t.CTEScope),
				IsCTE:   true,
			})
		case t.IsBaseTable():
			vis.TableColumns = append(vis.TableColumns, TableColumns{
				Alias:        name,
				Catalog:      t.Catalog,
				Schema:       t.Schema,
				Table:        t.TableName,
				Quoted:       t.Quoted,
				SchemaQuoted: t.SchemaQuoted,
			})
		}
	}

	seen := map[string]struct{}{}
	child, parent := target.Index, target.Parent
	for hop := 0; hop < depth && parent >= 0 && parent < len(scopes); hop++ {
		ps := scopes[parent]
		// A derived table never sees the other FROM items of its parent
		viaFrom := isFromItem(ps, child)
		var added []string
		for _, t := range ps.Tables {
			name := t.VisibleName()
			if name == "" || (t.IsDerivedTable && (viaFrom || t.DerivedScope == child)) {
				continue
			}
			key := strings.ToUpper(name)
			if _, ok := seen[key]; ok {
				continue
			}
			added = append(added, key)
			vis.ParentAliases = append(vis.ParentAliases, VisibleAlias{
				Name:              name,
				Table:             t,
				Scope:             ps.Index,
				IsFromParentScope: true,
			})
		}
		for _, key := range added {
			seen[key] = struct{}{}
		}
		// Parents always precede their children
		if ps.Parent >= parent {
			break
		}
		child, parent = parent, ps.Parent
	}
	return vis
}

func isFromItem(parent Scope, child int) bool {
	for _, t := range parent.Tables {
		if t.IsDerivedTable && t.DerivedScope == child {
			return true
		}
	}
	return false
}

// exposedOf returns a copy of the exposed columns of scope idx, or an empty
// list when idx does not address a scope.
func exposedOf(scopes []Scope, idx int) []string {
	if idx < 0 || idx >= len(scopes) {
		return []string{}
	}
	return append([]string{}, scopes[idx].ExposedColumns...)
}
