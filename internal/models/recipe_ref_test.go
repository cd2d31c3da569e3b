package models

import "testing"

func TestParseRecipeRef(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    RecipeRef
		wantErr bool
	}{
		{"internal", "42", RecipeRef{Kind: RefInternal, ID: "42"}, false},
		{"external", "external_52772", RecipeRef{Kind: RefExternal, ID: "52772"}, false},
		{"external video", "external_video_dQw4w9WgXcQ", RecipeRef{Kind: RefExternalVideo, ID: "dQw4w9WgXcQ"}, false},
		{"video id with dash", "external_video_a-b_c", RecipeRef{Kind: RefExternalVideo, ID: "a-b_c"}, false},
		{"zero", "0", RecipeRef{}, true},
		{"negative", "-1", RecipeRef{}, true},
		{"empty", "", RecipeRef{}, true},
		{"empty external", "external_", RecipeRef{}, true},
		{"empty video", "external_video_", RecipeRef{}, true},
		{"bad characters", "external_52 772", RecipeRef{}, true},
		{"garbage", "abc", RecipeRef{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRecipeRef(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRecipeRef(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseRecipeRef(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestRecipeRef_StringRoundTrip(t *testing.T) {
	for _, s := range []string{"7", "external_52772", "external_video_abc123"} {
		ref, err := ParseRecipeRef(s)
		if err != nil {
			t.Fatalf("ParseRecipeRef(%q) error = %v", s, err)
		}
		if ref.String() != s {
			t.Errorf("String() = %q, want %q", ref.String(), s)
		}
	}
}

func TestRecipeRef_InternalID(t *testing.T) {
	if id, ok := InternalRef(9).InternalID(); !ok || id != 9 {
		t.Errorf("InternalID() = %d, %v; want 9, true", id, ok)
	}
	if _, ok := ExternalRef("52772").InternalID(); ok {
		t.Error("InternalID() should be false for external refs")
	}
}
