package skill

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// RegistrationError describes one malformed skill registration. A failed
// registration is logged and skipped; it never aborts the rest of the load.
type RegistrationError struct {
	Name   string
	Reason string
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("register skill %q: %s", e.Name, e.Reason)
}

// Registration is one explicit registry entry. The constructor runs once at
// load time; the resulting instance lives for the process lifetime.
type Registration struct {
	Name     string
	Keywords []string
	Intents  []string
	New      func() (Skill, error)
}

// Registry holds the immutable set of registered skill descriptors.
// It is populated once at startup and read concurrently by the dispatcher
// and the monitor without locking.
type Registry struct {
	skills []*Descriptor
	byName map[string]*Descriptor
	logger *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		byName: make(map[string]*Descriptor),
		logger: logger,
	}
}

// Load registers each entry in order. Malformed entries are logged and
// skipped individually; the returned count is the number of skills actually
// loaded. Zero loaded skills is not an error — the system degrades to the
// generative fallback.
func (r *Registry) Load(regs []Registration) int {
	loaded := 0
	for _, reg := range regs {
		if err := r.register(reg); err != nil {
			r.logger.Warn("skill registration skipped", zap.Error(err))
			continue
		}
		loaded++
	}
	r.logger.Info("skill registry loaded",
		zap.Int("loaded", loaded),
		zap.Int("skipped", len(regs)-loaded))
	return loaded
}

func (r *Registry) register(reg Registration) error {
	if reg.Name == "" {
		return &RegistrationError{Name: "(unnamed)", Reason: "missing name"}
	}
	if len(reg.Intents) == 0 {
		return &RegistrationError{Name: reg.Name, Reason: "no supported intents declared"}
	}
	if reg.New == nil {
		return &RegistrationError{Name: reg.Name, Reason: "nil constructor"}
	}
	key := strings.ToLower(reg.Name)
	if _, exists := r.byName[key]; exists {
		return &RegistrationError{Name: reg.Name, Reason: "duplicate name"}
	}
	impl, err := reg.New()
	if err != nil {
		return &RegistrationError{Name: reg.Name, Reason: "constructor failed: " + err.Error()}
	}
	if impl == nil {
		return &RegistrationError{Name: reg.Name, Reason: "constructor returned nil skill"}
	}

	keywords := lowerAll(reg.Keywords)
	d := &Descriptor{
		Name:      reg.Name,
		Keywords:  keywords,
		Intents:   lowerAll(reg.Intents),
		keywordRe: compileKeywordMatcher(keywords),
		impl:      impl,
	}
	r.skills = append(r.skills, d)
	r.byName[key] = d
	r.logger.Info("skill registered",
		zap.String("name", d.Name),
		zap.Strings("intents", d.Intents))
	return nil
}

// Lookup returns all skills claiming the given intent, in registration
// order. Registration order doubles as the fallback priority order.
func (r *Registry) Lookup(intent string) []*Descriptor {
	intent = strings.ToLower(intent)
	var out []*Descriptor
	for _, d := range r.skills {
		for _, i := range d.Intents {
			if i == intent {
				out = append(out, d)
				break
			}
		}
	}
	return out
}

// LookupByName performs a case-insensitive exact match on skill names.
func (r *Registry) LookupByName(name string) (*Descriptor, bool) {
	d, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	return d, ok
}

// All returns every registered descriptor in registration order.
func (r *Registry) All() []*Descriptor {
	return r.skills
}

// Intents returns the deduplicated set of intents any skill supports.
func (r *Registry) Intents() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, d := range r.skills {
		for _, i := range d.Intents {
			if _, ok := seen[i]; !ok {
				seen[i] = struct{}{}
				out = append(out, i)
			}
		}
	}
	return out
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
