// Package prune computes the part of a schema reachable from a set of roots and
// rewrites the schema to keep only that part.
//
// Pruning is mark and sweep. Roots come from rules.PruningRules: every type or member
// the rules include seeds a work queue. Marking follows field types, map keys and
// values, rpc request and response types, and every member referenced by an option
// value. Reaching a type reaches all of its members; reaching a member reaches only
// that member and the options of its declaring type. The sweep is schema.Retain driven
// by the resulting MarkSet.
//
// Partition runs one prune per module of a module graph and assigns each retained type
// to exactly one module, upstream modules first.
//
// # Usage Example
//
//	r, err := rules.NewBuilder().
//		AddRoot("squareup.dinosaurs.Dinosaur").
//		AddPrune("squareup.dinosaurs.Dinosaur#picture_urls").
//		Build()
//	if err != nil {
//		return err
//	}
//
//	result := prune.Prune(s, r)
//	for _, rule := range result.UnusedRoots {
//		log.Warnf("unused root: %s", rule)
//	}
//	pruned := result.Schema
package prune
