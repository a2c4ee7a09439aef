package commands

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		content  string
		wantName string
		wantArgs []string
		wantOK   bool
	}{
		{"b!approve", "approve", nil, true},
		{"b!approve <@123>", "approve", []string{"<@123>"}, true},
		{"b!DENY  extra   words", "deny", []string{"extra", "words"}, true},
		{"b!", "", nil, false},
		{"b! ", "", nil, false},
		{"hello there", "", nil, false},
		{"!approve", "", nil, false},
		{"", "", nil, false},
	}

	for _, tt := range tests {
		name, args, ok := Parse(tt.content, "b!")
		if ok != tt.wantOK {
			t.Errorf("Parse(%q) ok = %v; want %v", tt.content, ok, tt.wantOK)
			continue
		}
		if !ok {
			continue
		}
		if name != tt.wantName {
			t.Errorf("Parse(%q) name = %q; want %q", tt.content, name, tt.wantName)
		}
		if len(args) != len(tt.wantArgs) {
			t.Errorf("Parse(%q) args = %v; want %v", tt.content, args, tt.wantArgs)
			continue
		}
		for i := range args {
			if args[i] != tt.wantArgs[i] {
				t.Errorf("Parse(%q) args[%d] = %q; want %q", tt.content, i, args[i], tt.wantArgs[i])
			}
		}
	}
}

func TestParseEmptyPrefix(t *testing.T) {
	if _, _, ok := Parse("approve", ""); ok {
		t.Fatal("Parse with empty prefix must never match")
	}
}

func TestParseUserID(t *testing.T) {
	tests := []struct {
		arg    string
		wantID string
		wantOK bool
	}{
		{"<@123456789>", "123456789", true},
		{"<@!123456789>", "123456789", true},
		{"123456789", "123456789", true},
		{"<@abc>", "", false},
		{"notanid", "", false},
		{"", "", false},
		{"123abc", "", false},
	}

	for _, tt := range tests {
		id, ok := ParseUserID(tt.arg)
		if ok != tt.wantOK || id != tt.wantID {
			t.Errorf("ParseUserID(%q) = %q, %v; want %q, %v", tt.arg, id, ok, tt.wantID, tt.wantOK)
		}
	}
}
