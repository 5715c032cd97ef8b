package auth

import "testing"

func TestAuthorize_EmptyAllowListAllowsAll(t *testing.T) {
	cfg := &Config{}

	for _, certs := range [][]string{nil, {"AA11"}, {"BB22", "CC33"}} {
		matched, ok := authorize(cfg, "com.example.app", certs)
		if !ok {
			t.Errorf("expected empty allow-list to authorize certs %v", certs)
		}
		if matched != "" {
			t.Errorf("expected no match to be computed, got %q", matched)
		}
	}
}

func TestAuthorize_FingerprintOnlyEntryAppliesToEveryPackage(t *testing.T) {
	cfg := &Config{AllowedCertificates: []string{"AA11"}}

	for _, pkg := range []string{"com.example.app", "com.other.app"} {
		matched, ok := authorize(cfg, pkg, []string{"AA11"})
		if !ok {
			t.Errorf("expected %s to be authorized", pkg)
		}
		if matched != "AA11" {
			t.Errorf("expected matched fingerprint AA11, got %q", matched)
		}
	}
}

func TestAuthorize_PackageScopedEntry(t *testing.T) {
	cfg := &Config{AllowedCertificates: []string{"AA11:com.example.app,com.example.other"}}

	if _, ok := authorize(cfg, "com.example.app", []string{"AA11"}); !ok {
		t.Error("expected scoped entry to authorize a listed package")
	}
	if _, ok := authorize(cfg, "com.example.other", []string{"AA11"}); !ok {
		t.Error("expected scoped entry to authorize the second listed package")
	}
	if _, ok := authorize(cfg, "com.stranger.app", []string{"AA11"}); ok {
		t.Error("expected scoped entry to reject an unlisted package")
	}
}

func TestAuthorize_NoMatchingFingerprint(t *testing.T) {
	cfg := &Config{AllowedCertificates: []string{"AA11:com.example.app"}}

	if _, ok := authorize(cfg, "com.example.app", []string{"BB22"}); ok {
		t.Error("expected mismatched fingerprint to be rejected")
	}
	if _, ok := authorize(cfg, "com.example.app", nil); ok {
		t.Error("expected caller without certificates to be rejected")
	}
}

func TestAuthorize_HexComparisonIsByteExact(t *testing.T) {
	cfg := &Config{AllowedCertificates: []string{"aa11"}}

	// Case differences in the hex encoding must not matter.
	matched, ok := authorize(cfg, "com.example.app", []string{"AA11"})
	if !ok {
		t.Fatal("expected hex-decoded comparison to match across case")
	}
	if matched != "AA11" {
		t.Errorf("expected the caller's own fingerprint back, got %q", matched)
	}

	// Entries that do not decode as hex never match.
	cfg = &Config{AllowedCertificates: []string{"not-hex"}}
	if _, ok := authorize(cfg, "com.example.app", []string{"AA11"}); ok {
		t.Error("expected non-hex allow-list entry to be skipped")
	}
}

func TestAuthorize_MonotonicInAllowList(t *testing.T) {
	base := []string{"AA11:com.example.app"}
	certs := []string{"AA11"}

	if _, ok := authorize(&Config{AllowedCertificates: base}, "com.example.app", certs); !ok {
		t.Fatal("expected base allow-list to authorize")
	}

	extended := append([]string{"DD44", "EE55:com.other.app"}, base...)
	if _, ok := authorize(&Config{AllowedCertificates: extended}, "com.example.app", certs); !ok {
		t.Error("adding allow-list entries must never revoke an existing authorization")
	}
}

func TestDeriveAppName(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		matched string
		want    string
	}{
		{
			name: "bare package by default",
			cfg:  Config{},
			want: "com.example.app",
		},
		{
			name:    "append sha with match",
			cfg:     Config{AppendShaToAppName: true},
			matched: "AA11",
			want:    "AA11|com.example.app",
		},
		{
			name: "append sha without match falls back to package",
			cfg:  Config{AppendShaToAppName: true},
			want: "com.example.app",
		},
		{
			name:    "override wins over everything",
			cfg:     Config{AppendShaToAppName: true, OverrideAppName: "custom-name"},
			matched: "AA11",
			want:    "custom-name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := deriveAppName(&tt.cfg, "com.example.app", tt.matched)
			if got != tt.want {
				t.Errorf("deriveAppName() = %q, want %q", got, tt.want)
			}
		})
	}
}
