package dialect

import "strings"

// analyticalCaps targets the column-oriented analytical engine. Its
// function names (JSONExtractRaw, groupArray, toInt64, ARRAY JOIN,
// parseDateTimeBestEffort, arrayFilter, has) follow ClickHouse's SQL
// surface, the only column-store dialect spec §4.2's table names
// fragments for.
type analyticalCaps struct{}

func (analyticalCaps) Name() string { return "analytical" }

func (analyticalCaps) JSONExtract(col string, pathParts []string) string {
	if len(pathParts) == 0 {
		return col
	}
	return "JSONExtractRaw(" + col + ", " + quotedParts(pathParts) + ")"
}

func (a analyticalCaps) JSONTypeAt(col string, pathParts []string) string {
	if len(pathParts) == 0 {
		return "JSONType(" + col + ")"
	}
	return "JSONType(" + col + ", " + quotedParts(pathParts) + ")"
}

func (a analyticalCaps) JSONLength(col string, pathParts []string) string {
	if len(pathParts) == 0 {
		return "JSONLength(" + col + ")"
	}
	return "JSONLength(" + col + ", " + quotedParts(pathParts) + ")"
}

func (a analyticalCaps) JSONArrayLength(col string, pathParts []string) string {
	return a.JSONLength(col, pathParts)
}

func (analyticalCaps) CastInt(expr string) string     { return "toInt64(" + expr + ")" }
func (analyticalCaps) CastFloat(expr string) string   { return "toFloat64(" + expr + ")" }
func (analyticalCaps) CastText(expr string) string    { return "toString(" + expr + ")" }
func (analyticalCaps) CastDate(expr string) string    { return "toDateTime(" + expr + ")" }
func (analyticalCaps) CastDecimal(expr string) string { return "toDecimal64(" + expr + ", 4)" }

func (analyticalCaps) AggPush(expr string) string     { return "groupArray(" + expr + ")" }
func (analyticalCaps) AggAddToSet(expr string) string { return "groupUniqArray(" + expr + ")" }
func (analyticalCaps) AggFirst(expr string) string    { return "any(" + expr + ")" }
func (analyticalCaps) AggLast(expr string) string     { return "anyLast(" + expr + ")" }
func (analyticalCaps) AggCountStar() string           { return "count()" }

func (analyticalCaps) StrConcat(parts []string) string {
	return "concat(" + strings.Join(parts, ", ") + ")"
}
func (analyticalCaps) StrLength(expr string) string { return "length(" + expr + ")" }
func (analyticalCaps) StrPosition(haystack, needle string) string {
	return "position(" + haystack + ", " + needle + ")"
}
func (analyticalCaps) StrReplace(expr, from, to string) string {
	return "replaceAll(" + expr + ", " + from + ", " + to + ")"
}
func (analyticalCaps) StrLower(expr string) string { return "lower(" + expr + ")" }
func (analyticalCaps) StrUpper(expr string) string { return "upper(" + expr + ")" }
func (analyticalCaps) StrSubstr(expr, start, length string) string {
	return "substring(" + expr + ", " + start + ", " + length + ")"
}

func (analyticalCaps) DateParse(expr string) string { return "parseDateTimeBestEffort(" + expr + ")" }
func (analyticalCaps) DateYear(expr string) string  { return "toYear(" + expr + ")" }
func (analyticalCaps) DateStartOf(unit, expr string) string {
	switch unit {
	case "day":
		return "toStartOfDay(" + expr + ")"
	case "month":
		return "toStartOfMonth(" + expr + ")"
	case "year":
		return "toStartOfYear(" + expr + ")"
	default:
		return expr
	}
}
func (analyticalCaps) DateDiff(unit, a, b string) string {
	return "dateDiff('" + unit + "', " + a + ", " + b + ")"
}
func (analyticalCaps) DateAdd(unit, expr, amount string) string {
	return "dateAdd(" + unit + ", " + amount + ", " + expr + ")"
}

func (analyticalCaps) UnwindJoin(arrExpr, alias string, preserveNullAndEmpty bool) (string, string, string) {
	// ClickHouse's ARRAY JOIN has no LEFT-join-style null-preservation
	// toggle; LEFT ARRAY JOIN is the closest analog and is selected the
	// same way the embedded dialect promotes to LEFT JOIN.
	kind := "ARRAY JOIN"
	if preserveNullAndEmpty {
		kind = "LEFT ARRAY JOIN"
	}
	join := kind + " " + arrExpr + " AS " + alias
	return join, alias, "arrayEnumerate(" + arrExpr + ")"
}

func (analyticalCaps) ArrayExists(arrExpr, elemAlias, predicateSQL string) string {
	return "arrayExists(" + elemAlias + " -> " + predicateSQL + ", " + arrExpr + ")"
}

func (analyticalCaps) ElemColumn(alias string) string { return alias }

func (analyticalCaps) RegexMatch(expr, patternPlaceholder string, caseInsensitive bool) string {
	// caseInsensitive is folded into ILIKE itself; no LOWER() wrapping
	// needed the way the embedded dialect requires.
	_ = caseInsensitive
	return expr + " ILIKE " + patternPlaceholder
}

func (analyticalCaps) Coalesce(parts []string) string {
	if len(parts) == 2 {
		return "ifNull(" + parts[0] + ", " + parts[1] + ")"
	}
	return "coalesce(" + strings.Join(parts, ", ") + ")"
}

func (analyticalCaps) GroupObject(pairs [][2]string) string {
	args := make([]string, 0, len(pairs)*2)
	for _, kv := range pairs {
		args = append(args, "'"+strings.ReplaceAll(kv[0], "'", "''")+"'", kv[1])
	}
	return "tuple(" + strings.Join(args, ", ") + ")"
}

func (analyticalCaps) ObjectRemove(col string, paths []string) string {
	// No in-place JSON delete in ClickHouse's JSON functions. The $project
	// stage translator raises FeatureUnavailable for exclusion on this
	// dialect before reaching the table (see stage/project.go); this is
	// exposed only so callers that reach it by mistake get a clear panic
	// message instead of silently emitting malformed SQL.
	panic("dialect: analytical ObjectRemove must be handled by the $project stage translator, not called directly")
}

func (analyticalCaps) ObjectSet(col string, path string, valueExpr string) string {
	// Same rationale as ObjectRemove: $addFields raises FeatureUnavailable
	// on this dialect, and $unwind/$lookup build their own select list.
	panic("dialect: analytical ObjectSet must be handled by the $addFields stage translator, not called directly")
}

func (analyticalCaps) RandomOrder() string { return "rand()" }

func (analyticalCaps) SupportsSearch() bool { return false }

func (analyticalCaps) FTSJoin(collection, ftsTable string) string {
	panic("dialect: analytical dialect does not support $search; callers must check SupportsSearch first")
}

func (analyticalCaps) FTSMatch(ftsTable, placeholder string) string {
	panic("dialect: analytical dialect does not support $search; callers must check SupportsSearch first")
}

func (analyticalCaps) FTSScore(ftsTable string) string {
	panic("dialect: analytical dialect does not support $search; callers must check SupportsSearch first")
}
