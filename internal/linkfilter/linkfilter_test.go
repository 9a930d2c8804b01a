package linkfilter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"sync/atomic"
	"testing"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"strips fragment", "http://a.com/x#section", "http://a.com/x"},
		{"strips trailing slash", "http://a.com/x/", "http://a.com/x"},
		{"root slash", "http://a.com/", "http://a.com"},
		{"root fragment", "http://a.com/#top", "http://a.com"},
		{"keeps query", "http://a.com/x?page=2#c", "http://a.com/x?page=2"},
		{"lowercases host", "HTTP://A.Com/Path", "http://a.com/Path"},
		{"trims space", "  http://a.com/x  ", "http://a.com/x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize_Equivalences(t *testing.T) {
	t.Parallel()

	for _, u := range []string{"http://a.com", "http://a.com/", "https://a.com/b/c", "https://a.com/b?x=1"} {
		if Normalize(u+"#frag") != Normalize(u) {
			t.Errorf("fragment changed normalization of %q", u)
		}
		if Normalize(u+"/") != Normalize(u) {
			t.Errorf("trailing slash changed normalization of %q", u)
		}
		if Normalize(Normalize(u)) != Normalize(u) {
			t.Errorf("Normalize not idempotent for %q", u)
		}
	}
}

func TestPathDepth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want int
	}{
		{"/a/b/c", 3},
		{"/a/b/c/", 3},
		{"/a", 1},
		{"/", 0},
		{"http://a.com", 0},
		{"http://a.com/", 0},
		{"http://a.com/docs/guide", 2},
		{"http://a.com/docs/guide?x=/y", 2},
	}
	for _, tt := range tests {
		if got := PathDepth(tt.in); got != tt.want {
			t.Errorf("PathDepth(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestRegistrableDomain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"https://www.example.com/a", "example.com"},
		{"https://news.example.co.uk/", "example.co.uk"},
		{"http://EXAMPLE.org:8080/x", "example.org"},
		{"http://127.0.0.1:4000/", "127.0.0.1"},
		{"http://localhost/", "localhost"},
		{"not a url", ""},
	}
	for _, tt := range tests {
		if got := RegistrableDomain(tt.in); got != tt.want {
			t.Errorf("RegistrableDomain(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	if !SameDomain("https://blog.example.com/p", "example.com") {
		t.Error("subdomain not treated as same domain")
	}
	if SameDomain("https://example.net/p", "example.com") {
		t.Error("other domain treated as same domain")
	}
}

func TestIsLink(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want bool
	}{
		{"http://a.com/x", true},
		{"https://a.com", true},
		{"mailto:me@a.com", false},
		{"javascript:void(0)", false},
		{"/relative", false},
		{"", false},
		{"ftp://a.com/file", false},
		{"http://", false},
	}
	for _, tt := range tests {
		if got := IsLink(tt.in); got != tt.want {
			t.Errorf("IsLink(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestClassifier_Extensions(t *testing.T) {
	t.Parallel()

	var probes atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		probes.Add(1)
		w.Header().Set("Content-Type", "text/html")
	}))
	defer srv.Close()

	c := NewClassifier(WithProbeClient(srv.Client()))

	tests := []struct {
		path string
		want Classification
	}{
		{"/report.pdf", Classification{IsDownload: true}},
		{"/archive.ZIP", Classification{IsDownload: true}},
		{"/index.html", Classification{}},
		{"/page.php", Classification{}},
		{"/account/login", Classification{IsLoginPage: true}},
		{"/SignIn.html", Classification{IsLoginPage: true}},
	}
	for _, tt := range tests {
		if got := c.Classify(context.Background(), srv.URL+tt.path); got != tt.want {
			t.Errorf("Classify(%q) = %+v, want %+v", tt.path, got, tt.want)
		}
	}

	if n := probes.Load(); n != 0 {
		t.Errorf("extension verdicts sent %d probes, want 0", n)
	}
}

func TestClassifier_Probe(t *testing.T) {
	t.Parallel()

	var probes atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/file", func(w http.ResponseWriter, _ *http.Request) {
		probes.Add(1)
		w.Header().Set("Content-Disposition", `attachment; filename="data.bin"`)
	})
	mux.HandleFunc("/blob", func(w http.ResponseWriter, _ *http.Request) {
		probes.Add(1)
		w.Header().Set("Content-Type", "application/octet-stream")
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, _ *http.Request) {
		probes.Add(1)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClassifier(WithProbeClient(srv.Client()))
	ctx := context.Background()

	if !c.Classify(ctx, srv.URL+"/file").IsDownload {
		t.Error("attachment not classified as download")
	}
	if !c.Classify(ctx, srv.URL+"/blob").IsDownload {
		t.Error("octet-stream not classified as download")
	}
	if c.Classify(ctx, srv.URL+"/about").IsDownload {
		t.Error("html page classified as download")
	}

	before := probes.Load()
	c.Classify(ctx, srv.URL+"/file")
	if probes.Load() != before {
		t.Error("cached probe result was not reused")
	}
}

func TestClassifier_ProbeDisabled(t *testing.T) {
	t.Parallel()

	c := NewClassifier(WithProbe(false))
	got := c.Classify(context.Background(), "http://unreachable.invalid/about")
	if got != (Classification{}) {
		t.Errorf("Classify() = %+v, want zero value", got)
	}
}

func TestIsDownloadResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		header http.Header
		want   bool
	}{
		{"empty", http.Header{}, false},
		{"html", http.Header{"Content-Type": {"text/html"}}, false},
		{"pdf", http.Header{"Content-Type": {"application/pdf"}}, true},
		{"image", http.Header{"Content-Type": {"image/png"}}, true},
		{"inline disposition", http.Header{"Content-Disposition": {"inline"}}, false},
		{"attachment", http.Header{"Content-Disposition": {"ATTACHMENT"}}, true},
		{"malformed type", http.Header{"Content-Type": {";;"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := IsDownloadResponse(tt.header); got != tt.want {
				t.Errorf("IsDownloadResponse() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsLoginPath(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]bool{
		"http://a.com/login":          true,
		"http://a.com/user/sign-in":   true,
		"http://a.com/x?next=logon":   true,
		"http://a.com/blog/logistics": false,
		"https://login.a.com/":        true,
		"https://signin.a.com/start":  true,
		"https://blog.a.com/":         false,
	} {
		u, err := url.Parse(in)
		if err != nil {
			t.Fatal(err)
		}
		if got := IsLoginPath(u); got != want {
			t.Errorf("IsLoginPath(%q) = %v, want %v", in, got, want)
		}
	}
}

// stubClassifier classifies by a fixed table and records calls.
type stubClassifier struct {
	verdicts map[string]Classification
	calls    atomic.Int32
}

func (s *stubClassifier) Classify(_ context.Context, rawURL string) Classification {
	s.calls.Add(1)
	return s.verdicts[rawURL]
}

func TestFilter_Candidates(t *testing.T) {
	t.Parallel()

	stub := &stubClassifier{verdicts: map[string]Classification{
		"https://a.com/file": {IsDownload: true},
	}}
	f := NewFilter(stub)

	hrefs := []string{
		"https://a.com/one",
		"https://a.com/one/#dup",
		"mailto:me@a.com",
		"https://a.com/report.pdf",
		"https://a.com/file",
		"https://a.com/login",
		"https://other.com/x",
		"https://www.a.com/two",
	}

	got := f.Candidates(context.Background(), hrefs, "a.com")
	want := []string{"https://a.com/one", "https://a.com/report.pdf", "https://a.com/login", "https://www.a.com/two"}
	// The stub only knows "file"; real extension and login checks live in Classifier.
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Candidates() = %v, want %v", got, want)
	}
	if n := stub.calls.Load(); n != 5 {
		t.Errorf("classifier called %d times, want 5 (off-site links skip classification)", n)
	}
}

func TestFilter_CandidatesWithDefaultClassifier(t *testing.T) {
	t.Parallel()

	f := NewFilter(nil)
	hrefs := []string{
		"https://a.com/docs/",
		"https://a.com/report.pdf",
		"https://a.com/login",
		"https://login.a.com/",
		"mailto:x@a.com",
		"https://b.com/",
	}
	got := f.Candidates(context.Background(), hrefs, "a.com")
	want := []string{"https://a.com/docs"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Candidates() = %v, want %v", got, want)
	}

	if f.Passes(context.Background(), "mailto:x@a.com") {
		t.Error("mailto link passed")
	}
	if f.Passes(context.Background(), "https://a.com/report.pdf") {
		t.Error(".pdf link passed")
	}
	if !f.Passes(context.Background(), "https://a.com/about") {
		t.Error("plain page rejected")
	}
}

func TestFilter_CandidatesCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := NewFilter(nil).Candidates(ctx, []string{"https://a.com/x"}, "a.com")
	if len(got) != 0 {
		t.Errorf("Candidates() on canceled context = %v, want none", got)
	}
}
