// Package cli implements the protoprune command line.
//
// # Commands
//
// prune: Prune the configured sources and print the retained files
//
//	protoprune prune --config protoprune.yaml
//	protoprune prune \
//		--source protos \
//		--proto-path third_party \
//		--root 'squareup.dinosaurs.*' \
//		--prune squareup.dinosaurs.Legacy \
//		--since 20 \
//		--out build/pruned
//
// partition: Prune once per configured module
//
//	protoprune partition --config protoprune.yaml --out build/modules
//
// watch: Re-run on source changes and serve the result
//
//	protoprune watch --config protoprune.yaml
//	curl localhost:9464/types?package=squareup.dinosaurs
//	curl localhost:9464/files/squareup/dinosaurs/dinosaur.proto
//
// Flags override the configuration file, and every command accepts --log-level,
// --log-format and --metrics-file.
package cli
