package sqlite

import (
	query "github.com/krew-solutions/ascetic-orm-go/asceticorm/query/infrastructure"
)

// Dialect renders SQLite SQL. JSON columns are read with the json1
// functions.
type Dialect struct {
	query.BaseDialect
}

func NewDialect() *Dialect {
	return &Dialect{
		BaseDialect: query.BaseDialect{
			Boolean: func(value bool) string {
				if value {
					return "1"
				}
				return "0"
			},
		},
	}
}

func (*Dialect) Name() string {
	return "sqlite"
}

func (*Dialect) PlaceholderStyle() query.PlaceholderStyle {
	return query.PlaceholderOrdinal
}

func (*Dialect) Placeholder(string, int) string {
	return "?"
}

// Paging needs a LIMIT for every OFFSET, -1 is unbounded.
func (*Dialect) Paging(skip, take string, _ bool) (string, string) {
	switch {
	case skip == "" && take == "":
		return "", ""
	case skip == "":
		return "", " LIMIT " + take
	case take == "":
		return "", " LIMIT -1 OFFSET " + skip
	}
	return "", " LIMIT " + take + " OFFSET " + skip
}
