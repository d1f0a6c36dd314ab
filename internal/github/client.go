// Package github shares saved playground files as GitHub gists.
package github

import (
	"context"
	"errors"
	"fmt"

	gogh "github.com/google/go-github/v68/github"

	"github.com/jxucoder/codegrounds/internal/language"
	"github.com/jxucoder/codegrounds/internal/store"
)

// ErrNoToken is returned when sharing is attempted without a token.
var ErrNoToken = errors.New("github token is not configured")

// problemFile holds the problem statement next to the source in a gist.
const problemFile = "PROBLEM.md"

// Client wraps the GitHub API for sharing files.
type Client struct {
	gh    *gogh.Client
	token string
}

// NewClient creates a GitHub client authenticated with the given token.
func NewClient(token string) *Client {
	return &Client{
		gh:    gogh.NewClient(nil).WithAuthToken(token),
		token: token,
	}
}

// ShareFile publishes f as a secret gist and returns its URL.
func (c *Client) ShareFile(ctx context.Context, f *store.File) (string, error) {
	if c.token == "" {
		return "", ErrNoToken
	}
	gist := newGist(f)
	created, _, err := c.gh.Gists.Create(ctx, gist)
	if err != nil {
		return "", fmt.Errorf("creating gist: %w", err)
	}
	return created.GetHTMLURL(), nil
}

func newGist(f *store.File) *gogh.Gist {
	name := "main.txt"
	if lang, ok := language.Lookup(f.Language); ok {
		name = lang.FileName()
	}
	files := map[gogh.GistFilename]gogh.GistFile{
		gogh.GistFilename(name): {Content: gogh.Ptr(f.Code)},
	}
	if f.ProblemStatement != "" {
		files[problemFile] = gogh.GistFile{Content: gogh.Ptr(f.ProblemStatement + "\n")}
	}
	return &gogh.Gist{
		Description: gogh.Ptr(f.Name),
		Public:      gogh.Ptr(false),
		Files:       files,
	}
}
