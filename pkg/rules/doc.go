// Package rules decides which schema identifiers a prune keeps.
//
// # Overview
//
// Identifiers are the strings a user writes in a prune configuration:
//
//	squareup.*                  every type below the squareup package
//	squareup.Dinosaur           one type (message, enum or service)
//	squareup.Dinosaur#name      one member of a type (field, enum constant or rpc)
//	*                           everything
//
// An IdentifierSet pairs include and exclude identifiers. Matching walks upward from the
// queried identifier (member, type, package wildcard, parent package wildcard, "*") and
// the first rule found decides. When an include and an exclude name the same level the
// exclude wins.
//
// PruningRules adds semantic-version bounds. Members annotated with since/until options
// are dropped when their window falls outside the configured range.
//
// # Usage Example
//
//	r, err := rules.NewBuilder().
//		AddRoot("squareup.Dinosaur").
//		AddPrune("squareup.Dinosaur#picture_urls").
//		Since("20").
//		Until("30").
//		Build()
//	if err != nil {
//		return err
//	}
//
//	usage := rules.NewUsage()
//	d := r.IsRoot("squareup.Dinosaur")
//	usage.Record(d)
//
//	for _, unused := range usage.UnusedPrunes(r) {
//		log.Printf("unused prune %s", unused)
//	}
//
// Matching never mutates the rule set. Callers that want to report stale configuration
// feed every Decision into a Usage accumulator.
package rules
