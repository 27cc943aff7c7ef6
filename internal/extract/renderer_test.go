package extract

import (
	"errors"
	"testing"

	"github.com/nao1215/docmirror/internal/model"
)

func TestRendererRender(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		strategies []Strategy
		page       model.Page
		want       string
	}{
		{
			name:       "page title is prefixed",
			strategies: []Strategy{stubStrategy{name: "selector", html: "<p>Body text</p>"}},
			page:       model.Page{URL: "https://example.com/docs/intro", Title: "Intro"},
			want:       "# Intro\n\nBody text\n",
		},
		{
			name:       "existing top heading is kept",
			strategies: []Strategy{stubStrategy{name: "selector", html: "<h1>Real</h1><p>x</p>"}},
			page:       model.Page{URL: "https://example.com/docs/intro", Title: "Intro"},
			want:       "# Real\n\nx\n",
		},
		{
			name:       "readability title wins when readability extracted",
			strategies: []Strategy{stubStrategy{name: "readability", html: "<p>x</p>", title: "Readable"}},
			page:       model.Page{URL: "https://example.com/docs/intro", Title: "Page"},
			want:       "# Readable\n\nx\n",
		},
		{
			name:       "readability title ignored for other strategies",
			strategies: []Strategy{stubStrategy{name: "raw", html: "<p>x</p>", title: "Readable"}},
			page:       model.Page{URL: "https://example.com/docs/intro", Title: "Page"},
			want:       "# Page\n\nx\n",
		},
		{
			name:       "slug title from final URL",
			strategies: []Strategy{stubStrategy{name: "raw", html: "<p>x</p>"}},
			page: model.Page{
				URL:      "https://example.com/docs/old",
				FinalURL: "https://example.com/docs/getting-started/",
			},
			want: "# Getting Started\n\nx\n",
		},
		{
			name:       "title only",
			strategies: []Strategy{stubStrategy{name: "raw", html: "<script>x()</script>"}},
			page:       model.Page{URL: "https://example.com/docs/intro", Title: "Intro"},
			want:       "# Intro\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := NewRenderer(WithStrategies(tt.strategies...))
			got, err := r.Render(&tt.page)
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRendererRenderErrors(t *testing.T) {
	t.Parallel()

	t.Run("no strategy applies", func(t *testing.T) {
		t.Parallel()

		r := NewRenderer(WithStrategies(stubStrategy{name: "selector", err: ErrNoMatch}))
		_, err := r.Render(&model.Page{URL: "https://example.com/docs/x"})
		if !errors.Is(err, ErrEmptyContent) {
			t.Errorf("Render() error = %v, want ErrEmptyContent", err)
		}
	})

	t.Run("nothing to write", func(t *testing.T) {
		t.Parallel()

		r := NewRenderer(WithStrategies(stubStrategy{name: "raw", html: "<style>a{}</style>"}))
		_, err := r.Render(&model.Page{URL: "https://example.com/"})
		if !errors.Is(err, ErrEmptyContent) {
			t.Errorf("Render() error = %v, want ErrEmptyContent", err)
		}
	})
}

func TestRendererWithSelector(t *testing.T) {
	t.Parallel()

	r := NewRenderer(WithSelector(".content"))
	got, err := r.Render(&model.Page{
		URL:   "https://example.com/docs/a",
		Title: "A",
		HTML:  `<html><body><nav>Menu</nav><div class="content"><p>Only this</p></div></body></html>`,
	})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if got != "# A\n\nOnly this\n" {
		t.Errorf("Render() = %q", got)
	}
}

func TestCompose(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		title string
		body  string
		want  string
	}{
		{name: "title and body", title: "T", body: "text", want: "# T\n\ntext\n"},
		{name: "body has heading", title: "T", body: "# Own\n\ntext", want: "# Own\n\ntext\n"},
		{name: "level two heading still prefixed", title: "T", body: "## Sub", want: "# T\n\n## Sub\n"},
		{name: "no title", title: "", body: "text\n\n", want: "text\n"},
		{name: "nothing", title: " ", body: "\n", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := Compose(tt.title, tt.body); got != tt.want {
				t.Errorf("Compose() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSlugTitle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url  string
		want string
	}{
		{url: "https://example.com/docs/getting-started", want: "Getting Started"},
		{url: "https://example.com/docs/api_reference/", want: "Api Reference"},
		{url: "https://example.com/docs/setup.html", want: "Setup"},
		{url: "https://example.com/", want: ""},
		{url: "https://example.com", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			t.Parallel()

			if got := SlugTitle(tt.url); got != tt.want {
				t.Errorf("SlugTitle(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}
