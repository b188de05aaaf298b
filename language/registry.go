package language

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/isdmx/coderun/config"
)

// ErrUnsupported is returned by Lookup for identifiers that are not registered.
var ErrUnsupported = errors.New("unsupported language")

// MemoryPlaceholder in a recipe argument is replaced by the configured memory ceiling in MB.
const MemoryPlaceholder = "${MEMORY_MB}"

// SourceBaseName is the base name of every submitted source file.
const SourceBaseName = "main"

var extensionPattern = regexp.MustCompile(`^[A-Za-z0-9]+$`)

// Recipe describes how to run a source file of one language.
type Recipe struct {
	Interpreter string
	Args        []string
	Extension   string
}

// Filename returns the canonical source file name, main.<ext>.
func (r Recipe) Filename() string {
	return SourceBaseName + "." + r.Extension
}

// Command returns the interpreter invocation for the given source file.
func (r Recipe) Command(filename string) []string {
	argv := make([]string, 0, len(r.Args)+2)
	argv = append(argv, r.Interpreter)
	argv = append(argv, r.Args...)
	return append(argv, filename)
}

// Registry is an immutable table of recipes keyed by language identifier.
type Registry struct {
	recipes map[string]Recipe
	ids     []string
}

// New validates the recipes and builds a registry. Arguments containing
// MemoryPlaceholder are expanded with memoryMB.
func New(recipes map[string]Recipe, memoryMB int) (*Registry, error) {
	if len(recipes) == 0 {
		return nil, fmt.Errorf("registry requires at least one language")
	}

	memory := strconv.Itoa(memoryMB)
	reg := &Registry{recipes: make(map[string]Recipe, len(recipes))}

	for id, recipe := range recipes {
		if id == "" {
			return nil, fmt.Errorf("empty language identifier")
		}
		if recipe.Interpreter == "" {
			return nil, fmt.Errorf("language %s: interpreter is required", id)
		}
		if !extensionPattern.MatchString(recipe.Extension) {
			return nil, fmt.Errorf("language %s: invalid extension %q", id, recipe.Extension)
		}

		args := make([]string, len(recipe.Args))
		for i, arg := range recipe.Args {
			args[i] = strings.ReplaceAll(arg, MemoryPlaceholder, memory)
		}

		reg.recipes[id] = Recipe{
			Interpreter: recipe.Interpreter,
			Args:        args,
			Extension:   recipe.Extension,
		}
		reg.ids = append(reg.ids, id)
	}

	slices.Sort(reg.ids)
	return reg, nil
}

// NewFromConfig builds the registry from the languages section of the configuration
func NewFromConfig(cfg *config.Config) (*Registry, error) {
	recipes := make(map[string]Recipe, len(cfg.Languages))
	for id, lang := range cfg.Languages {
		recipes[id] = Recipe{
			Interpreter: lang.Interpreter,
			Args:        lang.Args,
			Extension:   lang.Extension,
		}
	}
	return New(recipes, cfg.Sandbox.MemoryMB)
}

// Lookup returns the recipe registered for id. The returned recipe is a copy;
// changing it does not affect the registry.
func (r *Registry) Lookup(id string) (Recipe, error) {
	recipe, ok := r.recipes[id]
	if !ok {
		return Recipe{}, fmt.Errorf("%w: %s", ErrUnsupported, id)
	}
	recipe.Args = slices.Clone(recipe.Args)
	return recipe, nil
}

// Languages returns the registered identifiers in sorted order.
func (r *Registry) Languages() []string {
	return slices.Clone(r.ids)
}
