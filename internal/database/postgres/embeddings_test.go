package postgres

import "testing"

func TestParseRef(t *testing.T) {
	tests := []struct {
		ref     string
		want    int64
		wantErr bool
	}{
		{"pg:1", 1, false},
		{"pg:4242", 4242, false},
		{"pg:", 0, true},
		{"pg:0", 0, true},
		{"pg:-3", 0, true},
		{"pg:abc", 0, true},
		{"/data/encodings/EMP001.emb", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got, err := ParseRef(tt.ref)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRef(%q) error = %v, wantErr %v", tt.ref, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseRef(%q) = %d, want %d", tt.ref, got, tt.want)
			}
		})
	}
}

func TestIsRef(t *testing.T) {
	if !IsRef("pg:12") {
		t.Error("expected pg:12 to be a database reference")
	}
	if IsRef("data/encodings/EMP001_20250101_000000_000000.emb") {
		t.Error("file path must not be a database reference")
	}
}
