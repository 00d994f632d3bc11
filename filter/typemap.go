package filter

// typeMapping resolves a Mongo $type alias to the set of dialect-native
// json_type()/JSONType() strings that satisfy it. Neither SQLite's json1
// nor ClickHouse's JSON functions carry Mongo's full BSON type lattice,
// so dates, regexes, and object IDs all collapse onto the dialect's text
// type — a best-effort mapping, not a faithful BSON type check, and
// documented as such in DESIGN.md.
func typeMapping(dialectName, mongoType string) ([]string, bool) {
	switch dialectName {
	case "embedded":
		m := map[string][]string{
			"string":   {"text"},
			"number":   {"integer", "real"},
			"integer":  {"integer"},
			"boolean":  {"true", "false"},
			"object":   {"object"},
			"array":    {"array"},
			"null":     {"null"},
			"date":     {"text"},
			"regex":    {"text"},
			"objectId": {"text"},
		}
		names, ok := m[mongoType]
		return names, ok
	case "analytical":
		m := map[string][]string{
			"string":   {"String"},
			"number":   {"Int64", "Float64"},
			"integer":  {"Int64"},
			"boolean":  {"Bool"},
			"object":   {"Object"},
			"array":    {"Array"},
			"null":     {"Null"},
			"date":     {"String"},
			"regex":    {"String"},
			"objectId": {"String"},
		}
		names, ok := m[mongoType]
		return names, ok
	default:
		return nil, false
	}
}
