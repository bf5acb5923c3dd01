// Package schema is the in-memory model of a linked protobuf schema.
//
// # Overview
//
// A Schema is a list of ProtoFiles. Each file declares Types (messages, enums and
// namespace-only enclosing types), Services and Extend blocks. Types are addressed by
// ProtoType, members (fields, enum constants, rpcs) by ProtoMember.
//
// Files are produced by a loader with every field, rpc and extend type already resolved.
// Link finishes the job: it canonicalizes option assignments into a value graph keyed by
// ProtoMember, derives field flags from options, and merges extension fields into the
// messages they extend. Every node is treated as immutable after Link; rewrites produce
// new nodes and never touch the input.
//
// # Rewrites
//
// Schema.Retain copies the schema keeping only what a Retainer accepts. It is the sweep
// half of pruning and also backs Schema.RetainLinked, which keeps an exact set of types.
// A message that is not retained but has retained nested types becomes an EnclosingType,
// and imports are recomputed so that no file imports a file it no longer needs.
//
// # Usage Example
//
//	s, err := schema.Link(files)
//	if err != nil {
//		var linkErrs *schema.LinkErrors
//		if errors.As(err, &linkErrs) {
//			for _, e := range linkErrs.Errors {
//				log.Println(e)
//			}
//		}
//		return err
//	}
//
//	msg := s.GetMessageType(schema.Get("squareup.Dinosaur"))
//	for _, f := range msg.Fields() {
//		fmt.Println(f.Name, f.Type)
//	}
package schema
