package config

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/MrWong99/soundwatch/pkg/provider/classifier"
	"github.com/MrWong99/soundwatch/pkg/provider/embeddings"
	"github.com/MrWong99/soundwatch/pkg/provider/llm"
	"github.com/MrWong99/soundwatch/pkg/provider/recognizer"
	"github.com/MrWong99/soundwatch/pkg/provider/sentiment"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// factories is the name-to-constructor table of one provider kind.
type factories[T any] struct {
	kind string
	m    map[string]func(ProviderEntry) (T, error)
}

func newFactories[T any](kind string) factories[T] {
	return factories[T]{kind: kind, m: make(map[string]func(ProviderEntry) (T, error))}
}

func (f factories[T]) create(entry ProviderEntry) (T, error) {
	factory, ok := f.m[entry.Name]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s/%q", ErrProviderNotRegistered, f.kind, entry.Name)
	}
	return factory(entry)
}

func (f factories[T]) names() []string {
	out := make([]string, 0, len(f.m))
	for name := range f.m {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Registry maps provider names to their constructor functions for each
// provider kind. It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	recognizer factories[recognizer.Provider]
	sentiment  factories[sentiment.Provider]
	embeddings factories[embeddings.Provider]
	classifier factories[classifier.Provider]
	llm        factories[llm.Provider]
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		recognizer: newFactories[recognizer.Provider]("recognizer"),
		sentiment:  newFactories[sentiment.Provider]("sentiment"),
		embeddings: newFactories[embeddings.Provider]("embeddings"),
		classifier: newFactories[classifier.Provider]("classifier"),
		llm:        newFactories[llm.Provider]("llm"),
	}
}

// RegisterRecognizer registers a recognizer factory under name. A later
// registration under the same name replaces the earlier one; this holds for
// every Register* method.
func (r *Registry) RegisterRecognizer(name string, factory func(ProviderEntry) (recognizer.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recognizer.m[name] = factory
}

// RegisterSentiment registers a sentiment classifier factory under name.
func (r *Registry) RegisterSentiment(name string, factory func(ProviderEntry) (sentiment.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sentiment.m[name] = factory
}

// RegisterEmbeddings registers an embeddings provider factory under name.
func (r *Registry) RegisterEmbeddings(name string, factory func(ProviderEntry) (embeddings.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.embeddings.m[name] = factory
}

// RegisterClassifier registers an emotion model server factory under name.
func (r *Registry) RegisterClassifier(name string, factory func(ProviderEntry) (classifier.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classifier.m[name] = factory
}

// RegisterLLM registers an LLM provider factory under name.
func (r *Registry) RegisterLLM(name string, factory func(ProviderEntry) (llm.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm.m[name] = factory
}

// CreateRecognizer instantiates the recognizer registered under entry.Name.
// Like every Create* method it returns [ErrProviderNotRegistered] for an
// unknown name.
func (r *Registry) CreateRecognizer(entry ProviderEntry) (recognizer.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.recognizer.create(entry)
}

// CreateSentiment instantiates the sentiment classifier registered under
// entry.Name.
func (r *Registry) CreateSentiment(entry ProviderEntry) (sentiment.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sentiment.create(entry)
}

// CreateEmbeddings instantiates the embeddings provider registered under
// entry.Name.
func (r *Registry) CreateEmbeddings(entry ProviderEntry) (embeddings.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.embeddings.create(entry)
}

// CreateClassifier instantiates the model server client registered under
// entry.Name.
func (r *Registry) CreateClassifier(entry ProviderEntry) (classifier.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.classifier.create(entry)
}

// CreateLLM instantiates the LLM provider registered under entry.Name.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.llm.create(entry)
}

// Names lists the registered provider names per kind, sorted.
func (r *Registry) Names() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return map[string][]string{
		r.recognizer.kind: r.recognizer.names(),
		r.sentiment.kind:  r.sentiment.names(),
		r.embeddings.kind: r.embeddings.names(),
		r.classifier.kind: r.classifier.names(),
		r.llm.kind:        r.llm.names(),
	}
}
