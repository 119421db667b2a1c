package normalize

import "testing"

func TestEmail(t *testing.T) {
	in := "  John.DOE@Example.COM  "
	want := "john.doe@example.com"
	got := Email(in)
	if got != want {
		t.Fatalf("Normalize.Email(%q) = %q, want %q", in, got, want)
	}
}

func TestValidEmail(t *testing.T) {
	for _, e := range []string{"a@b.co", " User@Example.com "} {
		if !ValidEmail(e) {
			t.Fatalf("expected %q to be valid", e)
		}
	}
	for _, e := range []string{"", "nope", "a@b", "Name <a@b.co>", "a@@b.co"} {
		if ValidEmail(e) {
			t.Fatalf("expected %q to be invalid", e)
		}
	}
}

func TestDisplayName(t *testing.T) {
	if got := DisplayName("  neo   the  one "); got != "neo the one" {
		t.Fatalf("DisplayName = %q", got)
	}
}
