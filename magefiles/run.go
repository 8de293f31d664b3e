//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Builds and starts the demo with dsdemo.toml.
func (Run) Demo() error {
	mg.Deps(Build.All)
	fmt.Println("Run demo...")
	_, err := executeCmd("bin/dsdemo", withArgs("-config", "dsdemo.toml"), withStream())
	return err
}
