package s3blob

import "testing"

func TestParseURI(t *testing.T) {
	bucket, key, err := ParseURI("s3://wallets/prod/bot.enc.json")
	if err != nil {
		t.Fatalf("ParseURI: %v", err)
	}
	if bucket != "wallets" || key != "prod/bot.enc.json" {
		t.Fatalf("got %q %q", bucket, key)
	}

	for _, bad := range []string{"", "/tmp/key.json", "s3://wallets", "s3:///key", "https://wallets/key"} {
		if _, _, err := ParseURI(bad); err == nil {
			t.Fatalf("ParseURI(%q) should fail", bad)
		}
	}
}

func TestNormaliseEndpoint(t *testing.T) {
	cases := []struct {
		in     string
		ssl    bool
		expect string
	}{
		{"minio:9000", false, "http://minio:9000"},
		{"r2.example.com", true, "https://r2.example.com"},
		{"http://localhost:9000", true, "http://localhost:9000"},
	}
	for _, c := range cases {
		if got := normaliseEndpoint(c.in, c.ssl); got != c.expect {
			t.Fatalf("normaliseEndpoint(%q, %v) = %q, want %q", c.in, c.ssl, got, c.expect)
		}
	}
}
