// Package config loads protoprune's configuration from a YAML file and the environment.
//
// # File
//
// LoadFromDir looks for protoprune.yaml, .protoprune.yaml or protoprune.yml:
//
//	sources: [protos]
//	proto_path: [third_party]
//	roots: ["squareup.*"]
//	prunes: ["squareup.Old"]
//	since: "20"
//	out: build/pruned
//	modules:
//	  common: {roots: ["common.*"]}
//	  app: {roots: ["app.*"], depends_on: [common]}
//	log: {level: info, format: text}
//	tracing: {enabled: false, endpoint: "localhost:4317"}
//	watch: {delay: 2s, listen: ":9464", cache_size: 256, schedule: "@hourly"}
//	cache: {redis_url: "redis://localhost:6379/0", ttl: 24h}
//
// Relative directories are resolved against the file's directory.
//
// # Environment
//
//	PROTOPRUNE_LOG_LEVEL="debug"  # trace, debug, info, warn, error
//	PROTOPRUNE_LOG_FORMAT="json"  # text, json
//	PROTOPRUNE_OUT="build/pruned"
//	PROTOPRUNE_METRICS_FILE="build/metrics.prom"
//	PROTOPRUNE_TRACING_ENABLED="true"
//	PROTOPRUNE_TRACING_ENDPOINT="otel-collector:4317"
//	PROTOPRUNE_WATCH_DELAY="500ms"
//	PROTOPRUNE_WATCH_SCHEDULE="@every 30m"
//	PROTOPRUNE_CACHE_REDIS_URL="redis://cache:6379/0"
//
// # Usage Example
//
//	cfg, err := config.LoadFromDir(".")
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//		log.Fatal(err)
//	}
//	pruningRules, err := cfg.PruningRules()
package config
