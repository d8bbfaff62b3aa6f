package urlnorm

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase-scheme", "HTTP://A.Example/Path", "http://a.example/Path"},
		{"default-port-http", "http://a.example:80/x", "http://a.example/x"},
		{"default-port-https", "https://a.example:443/x", "https://a.example/x"},
		{"non-default-port-kept", "http://a.example:8080/x", "http://a.example:8080/x"},
		{"bare-authority-trailing-slash", "http://a.example/", "http://a.example"},
		{"no-trailing-slash-already", "http://a.example", "http://a.example"},
		{"deep-path-trailing-slash-kept", "http://a.example/dir/", "http://a.example/dir/"},
		{"fragment-dropped", "http://a.example/x#section", "http://a.example/x"},
		{"percent-decode-unreserved", "http://a.example/%7Euser", "http://a.example/~user"},
		{"percent-keep-reserved", "http://a.example/a%2Fb", "http://a.example/a%2Fb"},
		{"dot-segments-resolved", "http://a.example/a/../b", "http://a.example/b"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Normalize(tc.in)
			if err != nil {
				t.Fatalf("Normalize(%q) error: %v", tc.in, err)
			}
			if got != tc.want {
				t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"HTTP://A.Example:80/Path/../b/?x=1#frag",
		"https://Example.COM/",
		"http://example.com/a/b/",
	}

	for _, in := range inputs {
		once, err := Normalize(in)
		if err != nil {
			t.Fatalf("Normalize(%q): %v", in, err)
		}
		twice, err := Normalize(once)
		if err != nil {
			t.Fatalf("Normalize(%q) second pass: %v", once, err)
		}
		if once != twice {
			t.Errorf("normalization not idempotent: %q != %q", once, twice)
		}
	}
}

func TestNormalizeRejectsNonHTTP(t *testing.T) {
	if _, err := Normalize("ftp://a.example/x"); err != ErrUnsupportedScheme {
		t.Errorf("expected ErrUnsupportedScheme, got %v", err)
	}
}

func TestNormalizeRejectsEmpty(t *testing.T) {
	if _, err := Normalize(""); err != ErrEmpty {
		t.Errorf("expected ErrEmpty, got %v", err)
	}
}

func TestRegistrableDomain(t *testing.T) {
	cases := map[string]string{
		"http://a.b.foo.co.uk/x": "foo.co.uk",
		"http://example.com/x":   "example.com",
		"https://www.example.com": "example.com",
	}

	for in, want := range cases {
		got, err := RegistrableDomain(in)
		if err != nil {
			t.Fatalf("RegistrableDomain(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("RegistrableDomain(%q) = %q, want %q", in, got, want)
		}
	}
}
