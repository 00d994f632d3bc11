package dialect

import "strings"

// embeddedCaps targets the embedded JSON-over-relational store: SQLite's
// json1 extension plus json_each for array iteration. These are genuine
// SQLite built-ins, not invented syntax.
type embeddedCaps struct{}

func (embeddedCaps) Name() string { return "embedded" }

func (embeddedCaps) JSONExtract(col string, pathParts []string) string {
	if len(pathParts) == 0 {
		return col
	}
	return "json_extract(" + col + ", '" + jsonPath(pathParts) + "')"
}

func (e embeddedCaps) JSONTypeAt(col string, pathParts []string) string {
	return "json_type(" + e.JSONExtract(col, pathParts) + ")"
}

func (e embeddedCaps) JSONArrayLength(col string, pathParts []string) string {
	return "json_array_length(" + e.JSONExtract(col, pathParts) + ")"
}

func (embeddedCaps) CastInt(expr string) string     { return "CAST(" + expr + " AS INTEGER)" }
func (embeddedCaps) CastFloat(expr string) string   { return "CAST(" + expr + " AS REAL)" }
func (embeddedCaps) CastText(expr string) string    { return "CAST(" + expr + " AS TEXT)" }
func (embeddedCaps) CastDate(expr string) string    { return "datetime(" + expr + ")" }
func (embeddedCaps) CastDecimal(expr string) string { return "CAST(" + expr + " AS REAL)" }

func (embeddedCaps) AggPush(expr string) string      { return "json_group_array(" + expr + ")" }
func (embeddedCaps) AggAddToSet(expr string) string  { return "json_group_array(DISTINCT " + expr + ")" }
func (embeddedCaps) AggFirst(expr string) string     { return "(SELECT " + expr + " LIMIT 1)" }
func (embeddedCaps) AggLast(expr string) string      { return "(SELECT " + expr + " ORDER BY rowid DESC LIMIT 1)" }
func (embeddedCaps) AggCountStar() string            { return "COUNT(*)" }

func (embeddedCaps) StrConcat(parts []string) string { return strings.Join(parts, " || ") }
func (embeddedCaps) StrLength(expr string) string    { return "LENGTH(" + expr + ")" }
func (embeddedCaps) StrPosition(haystack, needle string) string {
	return "INSTR(" + haystack + ", " + needle + ")"
}
func (embeddedCaps) StrReplace(expr, from, to string) string {
	return "REPLACE(" + expr + ", " + from + ", " + to + ")"
}
func (embeddedCaps) StrLower(expr string) string { return "LOWER(" + expr + ")" }
func (embeddedCaps) StrUpper(expr string) string { return "UPPER(" + expr + ")" }
func (embeddedCaps) StrSubstr(expr, start, length string) string {
	return "SUBSTR(" + expr + ", " + start + ", " + length + ")"
}

func (embeddedCaps) DateParse(expr string) string { return "datetime(" + expr + ")" }
func (embeddedCaps) DateYear(expr string) string  { return "strftime('%Y', " + expr + ")" }
func (embeddedCaps) DateStartOf(unit, expr string) string {
	switch unit {
	case "day":
		return "strftime('%Y-%m-%d 00:00:00', " + expr + ")"
	case "month":
		return "strftime('%Y-%m-01 00:00:00', " + expr + ")"
	case "year":
		return "strftime('%Y-01-01 00:00:00', " + expr + ")"
	default:
		return "datetime(" + expr + ")"
	}
}
func (embeddedCaps) DateDiff(unit, a, b string) string {
	return "CAST((julianday(" + b + ") - julianday(" + a + ")) * " + dateDiffScale(unit) + " AS INTEGER)"
}
func (embeddedCaps) DateAdd(unit, expr, amount string) string {
	return "datetime(" + expr + ", " + amount + " || ' " + unit + "')"
}

func dateDiffScale(unit string) string {
	switch unit {
	case "second":
		return "86400"
	case "minute":
		return "1440"
	case "hour":
		return "24"
	default: // day
		return "1"
	}
}

func (embeddedCaps) UnwindJoin(arrExpr, alias string, preserveNullAndEmpty bool) (string, string, string) {
	joinKind := "JOIN"
	if preserveNullAndEmpty {
		joinKind = "LEFT JOIN"
	}
	join := joinKind + " json_each(" + arrExpr + ") AS " + alias
	return join, alias + ".value", alias + ".key"
}

func (embeddedCaps) ArrayExists(arrExpr, elemAlias, predicateSQL string) string {
	return "EXISTS (SELECT 1 FROM json_each(" + arrExpr + ") AS " + elemAlias + " WHERE " + predicateSQL + ")"
}

func (embeddedCaps) ElemColumn(alias string) string { return alias + ".value" }

func (embeddedCaps) RegexMatch(expr, patternPlaceholder string, caseInsensitive bool) string {
	if caseInsensitive {
		return "LOWER(" + expr + ") LIKE LOWER(" + patternPlaceholder + ")"
	}
	return expr + " LIKE " + patternPlaceholder
}

func (embeddedCaps) Coalesce(parts []string) string {
	return "COALESCE(" + strings.Join(parts, ", ") + ")"
}

func (embeddedCaps) GroupObject(pairs [][2]string) string {
	args := make([]string, 0, len(pairs)*2)
	for _, kv := range pairs {
		args = append(args, "'"+strings.ReplaceAll(kv[0], "'", "''")+"'", kv[1])
	}
	return "json_object(" + strings.Join(args, ", ") + ")"
}

func (embeddedCaps) ObjectRemove(col string, paths []string) string {
	args := make([]string, 0, len(paths)+1)
	args = append(args, col)
	for _, p := range paths {
		args = append(args, "'$."+p+"'")
	}
	return "json_remove(" + strings.Join(args, ", ") + ")"
}

func (embeddedCaps) ObjectSet(col string, path string, valueExpr string) string {
	return "json_set(" + col + ", '$." + path + "', " + valueExpr + ")"
}

func (embeddedCaps) RandomOrder() string { return "RANDOM()" }

func (embeddedCaps) SupportsSearch() bool { return true }

func (embeddedCaps) FTSJoin(collection, ftsTable string) string {
	return "JOIN " + ftsTable + " ON " + collection + ".id = " + ftsTable + ".rowid"
}

func (embeddedCaps) FTSMatch(ftsTable, placeholder string) string {
	return ftsTable + " MATCH " + placeholder
}

func (embeddedCaps) FTSScore(ftsTable string) string {
	return "-bm25(" + ftsTable + ")"
}
