package metadata

import (
	"fmt"
	"sync"

	"gorm.io/gorm/schema"
)

var cache sync.Map

// Resolve parses model and checks that its mapping is declared explicitly:
// the model must name its table through TableName and every persisted field
// must carry a column tag. Fields ignored by migration and relations are
// skipped.
func Resolve(model any, namer schema.Namer) (*schema.Schema, error) {
	if namer == nil {
		namer = schema.NamingStrategy{}
	}

	s, err := schema.Parse(model, &cache, namer)
	if err != nil {
		return nil, &Error{Kind: KindSchemaMetadata, Detail: err.Error(), Err: err}
	}

	if !hasTableName(model) {
		return nil, NewTableNameNotFound(fmt.Sprintf("Table name not found for %s.", s.Name))
	}

	for _, f := range s.Fields {
		if f.DataType == "" || f.IgnoreMigration {
			continue
		}
		if _, ok := f.TagSettings["COLUMN"]; !ok {
			return nil, NewColumnAnnotationNotFound(fmt.Sprintf("Column Annotation not found for %s.%s.", s.Name, f.Name))
		}
	}

	return s, nil
}

func hasTableName(model any) bool {
	switch m := model.(type) {
	case schema.Tabler:
		return m.TableName() != ""
	case schema.TablerWithNamer:
		return true
	default:
		return false
	}
}
