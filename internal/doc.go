// Package internal contains the core implementation packages for stencil.
//
// This package follows Go's internal package convention, making these
// packages unavailable for import by external modules while providing
// all the core functionality for the stencil engine and CLI.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - environment: Template load orchestration, cache identity, globals
//     and memoized instances
//   - loader: Template name resolution against filesystem, in-memory
//     and chained sources
//   - compile: Lexer, parser, executable programs and the artifact codec
//   - extension: Pluggable filters, functions, tests and globals with a
//     frozen-composition registry
//   - cache: Persistent artifact stores (filesystem, memory, disabled)
//   - config: Configuration management with validation and security
//   - errors: The loader/syntax/logic/runtime error taxonomy
//   - server: Preview HTTP server with WebSocket live reload
//   - watcher: File system monitoring with debouncing
//
// # Inter-Package Communication
//
// Packages communicate through well-defined interfaces:
//
//   - The environment orchestrates loader, compile pipeline, extension
//     registry and artifact store through their contracts
//   - Cache identity couples the loader's per-name key with the
//     extension composition signature and the engine version
//   - The preview server rebuilds whole environments on watcher events
//     so memoized templates never outlive their sources
//
// # Security Considerations
//
// Security is implemented at multiple layers:
//
//   - Config package validates all configuration inputs
//   - Loader and watcher packages validate paths and prevent traversal
//   - Artifact writes are atomic so readers never observe partial files
//
// For detailed documentation, see the individual package documentation.
package internal
