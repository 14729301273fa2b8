package classify

import (
	"fmt"
	"os"
	"sync"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/tollsimy/rapid/internal/types"
)

// Plugin classifiers are ordinary Go source files interpreted at
// runtime with yaegi, so new benchmark formats can be supported without
// rebuilding the tool. A plugin is a `package main` file restricted to
// stdlib imports that defines two functions:
//
//	func Name() string
//	func Classify(blockText string, byteOffset int64, bitOffset int) (status string, tags []string, trapCause string, err error)
//
// The primitive signature keeps plugins decoupled from this module's
// types; the loader converts and validates the returned values.

type pluginClassifyFunc func(string, int64, int) (string, []string, string, error)

// PluginClassifier wraps an interpreted plugin behind the Classifier
// interface. yaegi interpreters are not safe for concurrent Eval, so
// calls are serialized with a mutex.
type PluginClassifier struct {
	name string

	mu       sync.Mutex
	classify pluginClassifyFunc
}

// LoadPlugin interprets the Go source file at path and binds its
// exported Name/Classify functions.
func LoadPlugin(path string) (*PluginClassifier, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plugin: %w", err)
	}

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("load stdlib symbols: %w", err)
	}
	if _, err := i.Eval(string(src)); err != nil {
		return nil, fmt.Errorf("evaluate plugin %s: %w", path, err)
	}

	nameVal, err := i.Eval("main.Name")
	if err != nil {
		return nil, fmt.Errorf("plugin %s: Name not found: %w", path, err)
	}
	nameFn, ok := nameVal.Interface().(func() string)
	if !ok {
		return nil, fmt.Errorf("plugin %s: Name has wrong signature, want func() string", path)
	}

	classifyVal, err := i.Eval("main.Classify")
	if err != nil {
		return nil, fmt.Errorf("plugin %s: Classify not found: %w", path, err)
	}
	classifyFn, ok := classifyVal.Interface().(func(string, int64, int) (string, []string, string, error))
	if !ok {
		return nil, fmt.Errorf("plugin %s: Classify has wrong signature", path)
	}

	name := nameFn()
	if name == "" {
		return nil, fmt.Errorf("plugin %s: Name returned an empty string", path)
	}
	return &PluginClassifier{name: name, classify: classifyFn}, nil
}

func (p *PluginClassifier) Name() string { return p.name }

func (p *PluginClassifier) Classify(block types.LogBlock, fault types.FaultRecord) (Outcome, error) {
	p.mu.Lock()
	status, tags, trapCause, err := p.classify(block.RawText, fault.ByteOffset, int(fault.BitOffset))
	p.mu.Unlock()
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{
		Status:    types.TopStatus(status),
		TrapCause: trapCause,
	}
	if !out.Status.Valid() {
		return Outcome{}, fmt.Errorf("plugin %s returned unknown status %q", p.name, status)
	}
	for _, t := range tags {
		tag := types.EventTag(t)
		if !tag.Valid() {
			return Outcome{}, fmt.Errorf("plugin %s returned unknown tag %q", p.name, t)
		}
		out.Tags = append(out.Tags, tag)
	}
	out.Tags = types.NormalizeTags(out.Tags)
	return out, nil
}
