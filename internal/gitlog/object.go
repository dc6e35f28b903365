// internal/gitlog/object.go
package gitlog

import (
	"bytes"
	"fmt"
	"strings"
)

// RawCommit is a commit object as stored by git, headers unparsed beyond their names.
type RawCommit struct {
	SHA     string
	Tree    string
	Parents []string
	// Author and Committer hold the raw ident, e.g. "Jane Doe <jane@example.com> 1700000000 +0100".
	Author    string
	Committer string
	// Encoding is the value of the encoding header, empty when the text is UTF-8.
	Encoding string
	Message  string
}

// parseCommitObject splits a raw commit object body into its headers and message.
func parseCommitObject(sha string, body []byte) (RawCommit, error) {
	c := RawCommit{SHA: sha}

	header, message, found := bytes.Cut(body, []byte("\n\n"))
	if !found {
		// A commit without a message still ends its headers with a newline.
		header = bytes.TrimSuffix(body, []byte("\n"))
	}
	c.Message = string(message)

	lines := strings.Split(string(header), "\n")
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		name, value, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}
		switch name {
		case "tree":
			c.Tree = value
		case "parent":
			c.Parents = append(c.Parents, value)
		case "author":
			c.Author = value
		case "committer":
			c.Committer = value
		case "encoding":
			c.Encoding = value
		case "gpgsig", "gpgsig-sha256", "mergetag":
			// Multi-line headers continue on lines starting with a space.
			for i+1 < len(lines) && strings.HasPrefix(lines[i+1], " ") {
				i++
			}
		}
	}
	if c.Tree == "" {
		return RawCommit{}, fmt.Errorf("object %s: no tree header, not a commit", sha)
	}
	return c, nil
}
