// Package main provides the entry point for the settingsd application.
// It runs a settings store that keeps JSON values per key, either globally
// or attached to an owner model, with nested dot-notation access, key and
// value validation, a TTL cache with tag invalidation and cancellable change
// notifications. The store is reachable through a Fiber based REST API and
// through one-shot CLI commands, and settings can be moved between instances
// with the export and import commands.
package main
