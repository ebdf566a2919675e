// Package queryir provides the property-value criteria of the content
// subgraph read API.
//
// A criterion is a small boolean expression tree over node property
// values. It is built either directly from the types in this package or
// parsed from its string form:
//
//	title ^= 'Hello' AND (views > 10 OR NOT hidden = true)
//
// ARCHITECTURE:
//
//	[string criteria] → Parse → [Criterion AST] → querysql → [SQL fragment]
//
// The AST is backend independent. querysql compiles it against the
// serialized property column of the node table.
//
// SEALED INTERFACES:
//
// Criterion is a sealed interface using the marker method pattern. Only
// types in this package can implement it, so backends can switch
// exhaustively:
//
//	switch c := criterion.(type) {
//	case Comparison:
//	case And:
//	case Or:
//	case Not:
//	}
//
// OPERATORS:
//
//	=   equals                 (string, int, float, bool)
//	!=  not equals             (string, int, float, bool)
//	^=  starts with            (string)
//	$=  ends with              (string)
//	*=  contains               (string)
//	>  >=  <  <=               (string, int, float)
//
// String comparisons are case sensitive unless CaseSensitive is false. The
// string form marks a case-insensitive comparison with a trailing "~" on
// the operator, e.g. "title =~ 'hello'" or "title ^=~ 'he'".
package queryir
