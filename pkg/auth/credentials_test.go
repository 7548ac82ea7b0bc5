package auth

import "testing"

func TestHashCredential(t *testing.T) {
	hash1 := HashCredential("folio_abc123")
	hash2 := HashCredential("folio_abc123")

	if hash1 != hash2 {
		t.Error("Same credential should produce same hash")
	}
	if len(hash1) != 64 {
		t.Errorf("Hash length = %d, want 64", len(hash1))
	}
	if HashCredential("folio_abc124") == hash1 {
		t.Error("Different credentials should produce different hashes")
	}
}

func TestParseAPIKeyHeader(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{name: "valid", header: "tenants API-Key folio_abc123", want: "folio_abc123"},
		{name: "empty header", header: "", want: ""},
		{name: "bearer scheme", header: "Bearer folio_abc123", want: ""},
		{name: "wrong collection", header: "users API-Key folio_abc123", want: ""},
		{name: "wrong scheme", header: "tenants Token folio_abc123", want: ""},
		{name: "missing key", header: "tenants API-Key", want: ""},
		{name: "missing key with trailing space", header: "tenants API-Key ", want: ""},
		{name: "case sensitive scheme", header: "tenants api-key folio_abc123", want: ""},
		{name: "key with spaces kept whole", header: "tenants API-Key folio abc", want: "folio abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseAPIKeyHeader(tt.header); got != tt.want {
				t.Errorf("ParseAPIKeyHeader(%q) = %q, want %q", tt.header, got, tt.want)
			}
		})
	}
}

func TestGenerateAPIKey(t *testing.T) {
	key, keyHash, keyPrefix, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey() error = %v", err)
	}

	if err := ValidateAPIKeyFormat(key); err != nil {
		t.Errorf("Generated key failed format validation: %v", err)
	}
	if keyHash != HashCredential(key) {
		t.Error("Returned hash should match the key's hash")
	}
	if len(keyPrefix) != len(APIKeyPrefix)+8 {
		t.Errorf("Prefix length = %d, want %d", len(keyPrefix), len(APIKeyPrefix)+8)
	}

	// Keys must be unique.
	key2, _, _, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey() error = %v", err)
	}
	if key == key2 {
		t.Error("Two generated keys should differ")
	}
}

func TestValidateAPIKeyFormat(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{name: "valid", key: "folio_dGVzdC1rZXktbWF0ZXJpYWw", wantErr: false},
		{name: "wrong prefix", key: "acme_dGVzdA", wantErr: true},
		{name: "prefix only", key: "folio_", wantErr: true},
		{name: "bad encoding", key: "folio_!!!не-base64!!!", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAPIKeyFormat(tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAPIKeyFormat(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
			}
		})
	}
}
