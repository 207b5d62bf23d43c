package urlnorm

import "testing"

func TestStoredFormSubURL(t *testing.T) {
	u, err := Parse("https://example.com/a/b?x=1#frag")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got, err := StoredForm(u, "example.com")
	if err != nil {
		t.Fatalf("StoredForm: %v", err)
	}
	if want := "/a/b?x=1"; got != want {
		t.Errorf("StoredForm = %q, want %q", got, want)
	}
}

func TestStoredFormSubURLWithWWW(t *testing.T) {
	u, err := Parse("https://www.example.com/a")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := StoredForm(u, "example.com"); err != nil {
		t.Errorf("expected www.example.com to match domain example.com, got: %v", err)
	}
}

func TestStoredFormRejectsOtherHost(t *testing.T) {
	u, err := Parse("https://other.test/c")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := StoredForm(u, "example.com"); err == nil {
		t.Error("expected StoredForm to reject a URL for a different host, got nil error")
	}
}

func TestStoredFormAbsoluteWithoutProtocol(t *testing.T) {
	u, err := Parse("https://example.com/a/b?x=1")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got, err := StoredForm(u, "")
	if err != nil {
		t.Fatalf("StoredForm: %v", err)
	}
	if want := "example.com/a/b?x=1"; got != want {
		t.Errorf("StoredForm = %q, want %q", got, want)
	}
}

func TestStoredFormAbsoluteRequiredForCrossDomain(t *testing.T) {
	u, err := Parse("/a/b")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := StoredForm(u, ""); err == nil {
		t.Error("expected an error storing a relative URL for a cross-domain list, got nil")
	}
}

func TestResolveRelativeAgainstBase(t *testing.T) {
	base, err := Parse("https://example.com/news/today")
	if err != nil {
		t.Fatalf("Parse base: %v", err)
	}
	resolved, err := Resolve(base, "/other")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if want := "https://example.com/other"; resolved.String() != want {
		t.Errorf("Resolve = %q, want %q", resolved.String(), want)
	}
}

func TestResolveAlreadyAbsolute(t *testing.T) {
	base, err := Parse("https://example.com/")
	if err != nil {
		t.Fatalf("Parse base: %v", err)
	}
	resolved, err := Resolve(base, "https://other.test/x")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if want := "https://other.test/x"; resolved.String() != want {
		t.Errorf("Resolve = %q, want %q", resolved.String(), want)
	}
}

func TestToAbsoluteRoundTripsSubURL(t *testing.T) {
	abs, err := ToAbsolute("/a/b?x=1", "example.com", "https")
	if err != nil {
		t.Fatalf("ToAbsolute: %v", err)
	}
	stored, err := StoredForm(abs, "example.com")
	if err != nil {
		t.Fatalf("StoredForm: %v", err)
	}
	if want := "/a/b?x=1"; stored != want {
		t.Errorf("round trip = %q, want %q", stored, want)
	}
}

func TestToAbsoluteRoundTripsCrossDomain(t *testing.T) {
	abs, err := ToAbsolute("example.com/a/b", "", "https")
	if err != nil {
		t.Fatalf("ToAbsolute: %v", err)
	}
	stored, err := StoredForm(abs, "")
	if err != nil {
		t.Fatalf("StoredForm: %v", err)
	}
	if want := "example.com/a/b"; stored != want {
		t.Errorf("round trip = %q, want %q", stored, want)
	}
}

func TestSameHostIgnoresWWWAndCase(t *testing.T) {
	if !SameHost("WWW.Example.com", "example.com") {
		t.Error("expected SameHost to ignore case and leading www.")
	}
	if SameHost("example.com", "other.test") {
		t.Error("expected SameHost to reject distinct hosts")
	}
}
