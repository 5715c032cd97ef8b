package certsource

import (
	"context"
	"errors"
)

var (
	ErrUnknownPackage = errors.New("package has no known signing certificates")
	ErrUnknownCaller  = errors.New("caller identity owns no packages")
)

// Source resolves the signing identity of calling applications: the SHA-256
// fingerprints a package is signed with, and the packages owned by a calling
// identity. The latter backs the spoofing check on the declared package name.
type Source interface {
	SigningCertificates(ctx context.Context, packageName string) ([]string, error)
	PackagesForCaller(ctx context.Context, callerID string) ([]string, error)
}

// Package declares the signing certificates of one application package.
type Package struct {
	Name         string   `mapstructure:"name"`
	Certificates []string `mapstructure:"certificates"`
}

// Caller declares which packages a calling identity owns.
type Caller struct {
	ID       string   `mapstructure:"id"`
	Packages []string `mapstructure:"packages"`
}

// Static is a configuration-backed Source for service deployments where the
// package inventory is known up front.
type Static struct {
	certs map[string][]string
	owned map[string][]string
}

func NewStatic(packages []Package, callers []Caller) *Static {
	certs := make(map[string][]string, len(packages))
	for _, p := range packages {
		certs[p.Name] = p.Certificates
	}

	owned := make(map[string][]string, len(callers))
	for _, c := range callers {
		owned[c.ID] = c.Packages
	}

	return &Static{certs: certs, owned: owned}
}

func (s *Static) SigningCertificates(_ context.Context, packageName string) ([]string, error) {
	certs, ok := s.certs[packageName]
	if !ok || len(certs) == 0 {
		return nil, ErrUnknownPackage
	}
	return certs, nil
}

func (s *Static) PackagesForCaller(_ context.Context, callerID string) ([]string, error) {
	packages, ok := s.owned[callerID]
	if !ok {
		return nil, ErrUnknownCaller
	}
	return packages, nil
}
