package command

import (
	"reflect"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"empty", "", nil},
		{"spaces only", "   \t ", nil},
		{"single word", "start", []string{"start"}},
		{"multiple words", "routes search catacombs", []string{"routes", "search", "catacombs"}},
		{"collapses runs of spaces", "save   now", []string{"save", "now"}},
		{"quoted field", `save "night run"`, []string{"save", "night run"}},
		{"doubled quote escape", `save "the ""short"" way"`, []string{"save", `the "short" way`}},
		{"empty quoted field", `save ""`, []string{"save", ""}},
		{"adjacent quoted", `a"b c"d`, []string{"ab cd"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.input)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Tokenize(%q) = %#v, want %#v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParse_Valid(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Command
	}{
		{"blank", "", Command{Kind: None}},
		{"start", "start", Command{Kind: Start}},
		{"stop", "stop", Command{Kind: Stop}},
		{"verb case folds", "STOP", Command{Kind: Stop}},
		{"save default name", "save", Command{Kind: Save}},
		{"save custom name", `save "night run"`, Command{Kind: Save, Name: "night run"}},
		{"clear", "clear", Command{Kind: Clear}},
		{"status", "status", Command{Kind: Status}},
		{"pos", "pos", Command{Kind: Pos}},
		{"dist", "dist 100.5,-200,30", Command{Kind: Dist, X: 100.5, Z: -200, Y: 30}},
		{"dist without elevation", "dist 10,20", Command{Kind: Dist, X: 10, Z: 20}},
		{"debug", "debug", Command{Kind: Debug}},
		{"routes defaults to list", "routes", Command{Kind: RoutesList}},
		{"routes list", "routes list", Command{Kind: RoutesList}},
		{"routes search", "routes search cata", Command{Kind: RoutesSearch, Name: "cata"}},
		{"routes show", "routes show 7", Command{Kind: RoutesShow, ID: 7}},
		{"routes delete", "routes delete 12", Command{Kind: RoutesDelete, ID: 12}},
		{"routes rescan", "routes rescan", Command{Kind: RoutesRescan}},
		{"export", "export 3", Command{Kind: Export, ID: 3}},
		{"export with path", "export 3 out.geojson", Command{Kind: Export, ID: 3, Path: "out.geojson"}},
		{"upload", "upload 4", Command{Kind: Upload, ID: 4}},
		{"quit", "quit", Command{Kind: Quit}},
		{"exit aliases quit", "exit", Command{Kind: Quit}},
		{"help", "help", Command{Kind: Help}},
		{"question mark aliases help", "?", Command{Kind: Help}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"unknown verb", "launch"},
		{"start with args", "start now"},
		{"save two names", "save a b"},
		{"dist missing target", "dist"},
		{"dist bad coords", "dist abc"},
		{"routes bad subcommand", "routes frobnicate"},
		{"routes show missing id", "routes show"},
		{"routes show bad id", "routes show seven"},
		{"routes delete zero id", "routes delete 0"},
		{"export missing id", "export"},
		{"export too many args", "export 1 a b"},
		{"upload bad id", "upload x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.input); err == nil {
				t.Errorf("Parse(%q): expected error", tt.input)
			}
		})
	}
}
