// Package language holds the registry of supported languages.
//
// Each language identifier maps to an execution recipe: the interpreter to
// run inside the sandbox, its fixed arguments and the extension of the
// source file. The registry is built once at startup from configuration and
// is never modified afterwards, so it is safe for concurrent reads without
// locking.
//
// Usage:
//
//	registry, err := language.NewFromConfig(cfg)
//	recipe, err := registry.Lookup("python")
//	argv := recipe.Command(recipe.Filename()) // python3 -S main.py
package language
