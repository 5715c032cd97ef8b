package auth

import (
	"bytes"
	"encoding/hex"
	"strings"
)

// authorize scans the allow-list for a fingerprint matching one of the
// caller's signing certificates. An empty allow-list trusts every caller and
// computes no match. Entries scoped to other packages are skipped; matching
// is byte-exact on the hex-decoded fingerprints, caller certificates iterated
// outer, first match wins.
func authorize(cfg *Config, callerPackage string, callerCerts []string) (string, bool) {
	if len(cfg.AllowedCertificates) == 0 {
		return "", true
	}

	for _, cert := range callerCerts {
		certBytes, err := hex.DecodeString(cert)
		if err != nil {
			continue
		}
		for _, entry := range cfg.AllowedCertificates {
			fingerprint, packages := splitAllowListEntry(entry)
			if len(packages) > 0 && !containsPackage(packages, callerPackage) {
				continue
			}
			allowedBytes, err := hex.DecodeString(fingerprint)
			if err != nil {
				continue
			}
			if bytes.Equal(certBytes, allowedBytes) {
				return cert, true
			}
		}
	}

	return "", false
}

// splitAllowListEntry parses "fingerprint" or "fingerprint:pkg1,pkg2,...".
// A fingerprint-only entry applies to every package.
func splitAllowListEntry(entry string) (string, []string) {
	fingerprint, packageList, found := strings.Cut(entry, ":")
	if !found || packageList == "" {
		return fingerprint, nil
	}
	return fingerprint, strings.Split(packageList, ",")
}

func containsPackage(packages []string, callerPackage string) bool {
	for _, p := range packages {
		if p == callerPackage {
			return true
		}
	}
	return false
}

// deriveAppName computes the app name sent to the entitlement server. The
// override wins outright; the matched fingerprint is appended only when the
// append flag is set and a match was actually computed.
func deriveAppName(cfg *Config, callerPackage, matchedFingerprint string) string {
	if cfg.OverrideAppName != "" {
		return cfg.OverrideAppName
	}
	if cfg.AppendShaToAppName && matchedFingerprint != "" {
		return matchedFingerprint + "|" + callerPackage
	}
	return callerPackage
}
