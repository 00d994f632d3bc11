package expr

// CollectFunctionFields walks e and returns every field path referenced
// as an argument to a $function node anywhere inside it, deduplicated.
// $project uses this to satisfy spec §4.3's rule that a projected value
// embedding a $function must additionally carry the function's source
// fields into the output envelope, since the executor resolves the
// placeholder after the row leaves SQL and needs those fields present.
func CollectFunctionFields(e Expr) []string {
	seen := map[string]bool{}
	var out []string
	var walk func(Expr)
	walk = func(e Expr) {
		switch v := e.(type) {
		case Function:
			for _, a := range v.Args {
				if a.IsField && !seen[string(a.Path)] {
					seen[string(a.Path)] = true
					out = append(out, string(a.Path))
				}
			}
		case Arithmetic:
			walkAll(v.Args, walk)
		case Compare:
			walkAll(v.Args, walk)
		case Logical:
			walkAll(v.Args, walk)
		case Concat:
			walkAll(v.Args, walk)
		case Substr:
			walk(v.Str)
			walk(v.Start)
			walk(v.Length)
		case CaseConv:
			walk(v.Arg)
		case Cond:
			walk(v.If)
			walk(v.Then)
			walk(v.Else)
		case IfNull:
			walkAll(v.Args, walk)
		case Switch:
			for _, br := range v.Branches {
				walk(br.Case)
				walk(br.Then)
			}
			walk(v.Default)
		case ExprWrap:
			walk(v.Inner)
		}
	}
	walk(e)
	return out
}

func walkAll(args []Expr, f func(Expr)) {
	for _, a := range args {
		f(a)
	}
}
