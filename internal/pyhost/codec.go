package pyhost

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/pyanalyze/internal/hostapi"
)

// ErrUnsupportedScope is returned by ScopeCodec.Encode when asked to encode
// a GlobalScope this host did not produce.
var ErrUnsupportedScope = errors.New("pyhost: codec only encodes pyhost scopes")

// scopeDoc is the YAML-serializable form of a scope, grounded on the
// teacher's checkpoint manifest's flat-struct-plus-yaml.v3 shape.
type scopeDoc struct {
	ModuleName string   `yaml:"module"`
	Classes    []string `yaml:"classes,omitempty"`
	Functions  []string `yaml:"functions,omitempty"`
	Assigned   []string `yaml:"assigned,omitempty"`
}

// ScopeCodec implements memcache.Codec for the reference scope type, so
// internal/memcache.Cache can store and restore this host's analyses.
type ScopeCodec struct{}

// NewScopeCodec creates the reference codec.
func NewScopeCodec() ScopeCodec { return ScopeCodec{} }

// Encode implements memcache.Codec.
func (ScopeCodec) Encode(s hostapi.GlobalScope) ([]byte, error) {
	sc, ok := s.(*scope)
	if !ok {
		return nil, fmt.Errorf("%w: got %T", ErrUnsupportedScope, s)
	}

	out, err := yaml.Marshal(scopeDoc{
		ModuleName: sc.moduleName,
		Classes:    sc.classes,
		Functions:  sc.functions,
		Assigned:   sc.assigned,
	})
	if err != nil {
		return nil, fmt.Errorf("pyhost: encode scope: %w", err)
	}

	return out, nil
}

// Decode implements memcache.Codec.
func (ScopeCodec) Decode(data []byte) (hostapi.GlobalScope, error) {
	var doc scopeDoc

	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("pyhost: decode scope: %w", err)
	}

	return &scope{
		moduleName: doc.ModuleName,
		classes:    doc.Classes,
		functions:  doc.Functions,
		assigned:   doc.Assigned,
	}, nil
}
