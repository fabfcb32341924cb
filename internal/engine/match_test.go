package engine

import "testing"

func TestFold(t *testing.T) {
	tests := []struct {
		in   string
		m    StringMatch
		want string
	}{
		{"Café  de   Flore", MatchFoldCase | MatchFoldAccents, "cafe de flore"},
		{"Café  de   Flore", DefaultMatch, "cafedeflore"},
		{"St. Paul's", MatchFoldCase | MatchIgnoreSymbols, "st pauls"},
		{"St. Paul's", MatchFoldCase, "st. paul's"},
	}
	for _, tt := range tests {
		if got := Fold(tt.in, tt.m); got != tt.want {
			t.Errorf("Fold(%q, %b) = %q, want %q", tt.in, tt.m, got, tt.want)
		}
	}
}

func TestMatches(t *testing.T) {
	if !Matches("Musée du Louvre, Paris", "musee du louvre", DefaultMatch) {
		t.Error("accent and case folding should match")
	}
	if Matches("Gare du Nord", "louvre", DefaultMatch) {
		t.Error("unrelated text should not match")
	}
	if !Matches("Gare du Nord", "louvre", DefaultMatch|MatchFuzzy) {
		t.Error("fuzzy matching defers to the engine's ranking")
	}
	if Matches("St. Paul's Cathedral", "st pauls", DefaultMatch) {
		t.Error("symbols should count unless ignored")
	}
	if !Matches("St. Paul's Cathedral", "st pauls", DefaultMatch|MatchIgnoreSymbols) {
		t.Error("ignoring symbols should match")
	}
}

func TestParseProfile(t *testing.T) {
	for name, want := range map[string]Profile{"car": ProfileCar, "cycle": ProfileBike, "Bike": ProfileBike, " ski ": ProfileSki} {
		got, err := ParseProfile(name)
		if err != nil || got != want {
			t.Errorf("ParseProfile(%q) = %q, %v", name, got, err)
		}
	}
	if _, err := ParseProfile("boat"); err != ErrUnknownProfile {
		t.Errorf("expected ErrUnknownProfile, got %v", err)
	}
}

func TestSubmitCode(t *testing.T) {
	if SubmitCode(nil) != ResultOK {
		t.Error("nil error should be ok")
	}
	if SubmitCode(&SubmitError{Code: ResultBusy}) != ResultBusy {
		t.Error("submit error code not extracted")
	}
}
