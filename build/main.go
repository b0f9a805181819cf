package main

import (
	"os"
	"os/exec"

	"github.com/goyek/goyek/v2"
)

// run executes a go subcommand in the repository root.
func run(a *goyek.A, args ...string) {
	a.Log("go ", args)
	cmd := exec.CommandContext(a.Context(), "go", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		a.Error(err)
	}
}

var vet = goyek.Define(goyek.Task{
	Name:  "vet",
	Usage: "Run go vet on all packages",
	Action: func(a *goyek.A) {
		run(a, "vet", "./...")
		run(a, "vet", "-tags", "property", "./...")
	},
})

var test = goyek.Define(goyek.Task{
	Name:  "test",
	Usage: "Run unit tests with the race detector",
	Action: func(a *goyek.A) {
		run(a, "test", "-race", "./...")
	},
})

var property = goyek.Define(goyek.Task{
	Name:  "property",
	Usage: "Run gopter property tests",
	Action: func(a *goyek.A) {
		run(a, "test", "-tags", "property", "-run", "Propert", "./...")
	},
})

var all = goyek.Define(goyek.Task{
	Name:  "all",
	Usage: "Vet, then run unit and property tests",
	Deps:  goyek.Deps{vet, test, property},
})

func main() {
	goyek.SetDefault(all)
	goyek.Main(os.Args[1:])
}
