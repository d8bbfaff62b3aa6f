package htmlparse

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const samplePage = `<html><head><title>Example Page</title></head>
<body><nav>skip me</nav>
<article><p>Hello world.</p>
<a href="/next">Next</a>
<a href="https://other.example/x">Other</a>
<a href="#frag">Fragment</a>
</article>
</body></html>`

func TestExtractLinksAndText(t *testing.T) {
	p := New()
	extracted, err := p.Extract("http://a.example/page", []byte(samplePage))
	require.NoError(t, err)

	require.Equal(t, "Example Page", extracted.Title)
	require.Contains(t, extracted.Text, "Hello world.")
	require.NotContains(t, extracted.Text, "skip me")
	require.ElementsMatch(t, []string{"http://a.example/next", "https://other.example/x"}, extracted.Links)
}

func TestExtractDropsNonHTTPLinks(t *testing.T) {
	p := New()
	page := `<html><body><a href="mailto:a@example.com">mail</a><a href="javascript:void(0)">js</a></body></html>`
	extracted, err := p.Extract("http://a.example/page", []byte(page))
	require.NoError(t, err)
	require.Empty(t, extracted.Links)
}
