// Package packaging resolves the provenance of code seen in stack frames:
// which Go module, and which version of it, supplied the package a frame's
// function belongs to.
//
// # Loaders
//
// A Loader is a named view of build metadata. The process loader reads the
// running binary's debug.BuildInfo; binary loaders read another executable's
// embedded build info. Loaders may have a parent, and module lookups walk the
// chain from the child upwards.
//
// # Strategies
//
// Two strategies are provided:
//
//   - ModuleStrategy: consults the module table of the loader chain
//     (main module, dependencies, replacements). Results are exact.
//   - PathStrategy: guesses from the frame's source file location
//     (module cache, -trimpath paths, GOROOT, vendor trees). Results are
//     marked inexact.
//
// # Registries
//
// Detect decides, per loader, which strategies are usable. RegistryFor keeps
// one immutable Registry per loader identity, created lazily on first use:
//
//	reg := packaging.RegistryFor(packaging.ProcessLoader())
//	for _, s := range reg.Strategies() {
//		fmt.Println(s.Name())
//	}
//
// Every registry carries a Cache shared by all calculators resolving frames
// against the same loader.
package packaging
