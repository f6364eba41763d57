//go:build mage

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

func cli(args ...string) error {
	mg.Deps(Build)
	return sh.RunV(filepath.Join(binDir, binName), args...)
}

// Index indexes every Markdown and text file under context/.
func Index() error {
	var files []string
	for _, pattern := range []string{"context/*.md", "context/*.txt"} {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return err
		}
		files = append(files, matches...)
	}
	if len(files) == 0 {
		fmt.Println("No documents under context/.")
		return nil
	}
	return cli(append([]string{"index"}, files...)...)
}

// Blueprint extracts a blueprint from a funding call and starts a session.
func Blueprint(call string) error {
	return cli("blueprint", call)
}

// Draft generates every section of a session.
func Draft(session string) error {
	return cli("generate", session, "--all")
}

// Export writes the assembled proposal for a session as Markdown.
func Export(session string) error {
	return cli("export", session, "--format", "markdown")
}
