// Package frontmatter reads and writes documents that start with a YAML
// header between "---" lines, such as Markdown chat transcripts.
//
//	type Header struct {
//		Title string `yaml:"title"`
//	}
//
//	data, err := frontmatter.Format(Header{Title: "Seraphina"}, "**Seraphina:** Hello\n")
//
//	var h Header
//	body, err := frontmatter.Parse(bytes.NewReader(data), &h)
//
// Both LF and CRLF line endings are accepted when parsing. Format always
// writes LF.
package frontmatter
