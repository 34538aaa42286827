package extract

import "testing"

func TestExtract(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		text   string
		expect Handle
		found  bool
	}{
		{
			name:   "single handle",
			text:   "Hiring UI/UX designer, DM @janedoe",
			expect: "@janedoe",
			found:  true,
		},
		{
			name:   "first of several in reading order",
			text:   "contact @alice or @bobby",
			expect: "@alice",
			found:  true,
		},
		{
			name:  "no handle",
			text:  "Need UI/UX help, call me",
			found: false,
		},
		{
			name:  "empty text",
			text:  "",
			found: false,
		},
		{
			name:   "too short run is skipped not truncated",
			text:   "ping @bob or @designhiring",
			expect: "@designhiring",
			found:  true,
		},
		{
			name:  "run above the maximum length is skipped",
			text:  "@a123456789012345678901234567890123 is not a real username",
			found: false,
		},
		{
			name:   "digits and underscores allowed",
			text:   "reach out to @jane_doe_99 today",
			expect: "@jane_doe_99",
			found:  true,
		},
		{
			name:   "handle followed by punctuation",
			text:   "send a message to @janedoe, please",
			expect: "@janedoe",
			found:  true,
		},
		{
			name:  "lone sigil",
			text:  "mention @ someone",
			found: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			handle, found := Extract(tt.text)
			if found != tt.found {
				t.Fatalf("Extract(%q) found = %v, expected %v", tt.text, found, tt.found)
			}
			if handle != tt.expect {
				t.Fatalf("Extract(%q) = %q, expected %q", tt.text, handle, tt.expect)
			}
		})
	}
}

func TestHandleBare(t *testing.T) {
	t.Parallel()

	if got := Handle("@janedoe").Bare(); got != "janedoe" {
		t.Fatalf("expected bare handle janedoe, got %q", got)
	}
}
