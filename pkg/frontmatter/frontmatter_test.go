package frontmatter

import (
	"errors"
	"strings"
	"testing"
)

type header struct {
	Title    string   `yaml:"title"`
	Messages int      `yaml:"messages"`
	Tags     []string `yaml:"tags,omitempty"`
}

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		want     header
		wantBody string
		wantErr  error
	}{
		{
			name:     "header and body",
			input:    "---\ntitle: Seraphina\nmessages: 2\n---\n\n**Seraphina:** Hello\n",
			want:     header{Title: "Seraphina", Messages: 2},
			wantBody: "**Seraphina:** Hello\n",
		},
		{
			name:     "crlf",
			input:    "---\r\ntitle: Seraphina\r\ntags:\r\n  - forest\r\n---\r\n\r\nbody\r\n",
			want:     header{Title: "Seraphina", Tags: []string{"forest"}},
			wantBody: "body\r\n",
		},
		{
			name:     "empty header",
			input:    "---\n---\nbody",
			wantBody: "body",
		},
		{
			name:  "header only",
			input: "---\ntitle: x\n---",
			want:  header{Title: "x"},
		},
		{
			name:     "only the first blank line is separator",
			input:    "---\ntitle: x\n---\n\n\nbody\n",
			want:     header{Title: "x"},
			wantBody: "\nbody\n",
		},
		{
			name:    "no header",
			input:   "# Just markdown\n",
			wantErr: ErrMissingFrontmatter,
		},
		{
			name:    "empty input",
			input:   "",
			wantErr: ErrMissingFrontmatter,
		},
		{
			name:    "unterminated",
			input:   "---\ntitle: x\nbody\n",
			wantErr: ErrUnterminated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got header
			body, err := Parse(strings.NewReader(tt.input), &got)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Parse() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse() unexpected error: %v", err)
			}
			if got.Title != tt.want.Title || got.Messages != tt.want.Messages || len(got.Tags) != len(tt.want.Tags) {
				t.Errorf("Parse() header = %+v, want %+v", got, tt.want)
			}
			if string(body) != tt.wantBody {
				t.Errorf("Parse() body = %q, want %q", body, tt.wantBody)
			}
		})
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	var got header
	_, err := Parse(strings.NewReader("---\ntitle: [\n---\n"), &got)
	if err == nil {
		t.Fatal("Parse() expected error for invalid YAML")
	}
}

func TestFormat(t *testing.T) {
	data, err := Format(header{Title: "Seraphina", Messages: 2}, "**Seraphina:** Hello")
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	want := "---\ntitle: Seraphina\nmessages: 2\n---\n\n**Seraphina:** Hello\n"
	if string(data) != want {
		t.Errorf("Format() = %q, want %q", data, want)
	}

	data, err = Format(header{Title: "x"}, "")
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if !strings.HasSuffix(string(data), "---\n") {
		t.Errorf("Format() without body = %q, want it to end at the delimiter", data)
	}
}

func TestFormat_RoundTrip(t *testing.T) {
	in := header{Title: "party", Messages: 7, Tags: []string{"group"}}
	data, err := Format(in, "line one\nline two\n")
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	var out header
	body, err := Parse(strings.NewReader(string(data)), &out)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if out.Title != in.Title || out.Messages != in.Messages || len(out.Tags) != 1 {
		t.Errorf("round trip header = %+v, want %+v", out, in)
	}
	if string(body) != "line one\nline two\n" {
		t.Errorf("round trip body = %q", body)
	}
}
