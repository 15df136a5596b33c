package database

import (
	"fmt"
	"strings"

	"github.com/huandu/go-sqlbuilder"
)

func Excluded(column string) string {
	return fmt.Sprintf("%s = EXCLUDED.%s", column, column)
}

func NewSelectBuilder() *sqlbuilder.SelectBuilder {
	return sqlbuilder.PostgreSQL.NewSelectBuilder()
}

func NewInsertBuilder() *sqlbuilder.InsertBuilder {
	return sqlbuilder.PostgreSQL.NewInsertBuilder()
}

func NewUpdateBuilder() *sqlbuilder.UpdateBuilder {
	return sqlbuilder.PostgreSQL.NewUpdateBuilder()
}

func NewDeleteBuilder() *sqlbuilder.DeleteBuilder {
	return sqlbuilder.PostgreSQL.NewDeleteBuilder()
}

// OnConflictUpdate appends an upsert clause that overwrites the given columns from EXCLUDED.
func OnConflictUpdate(ib *sqlbuilder.InsertBuilder, conflict []string, columns ...string) *sqlbuilder.InsertBuilder {
	sets := make([]string, 0, len(columns))
	for _, col := range columns {
		sets = append(sets, Excluded(col))
	}
	ib.SQL(fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s", strings.Join(conflict, ", "), strings.Join(sets, ", ")))
	return ib
}

func OnConflictDoNothing(ib *sqlbuilder.InsertBuilder) *sqlbuilder.InsertBuilder {
	ib.SQL("ON CONFLICT DO NOTHING")
	return ib
}

func NewStruct(v any) *sqlbuilder.Struct {
	return sqlbuilder.NewStruct(v).For(sqlbuilder.PostgreSQL)
}
