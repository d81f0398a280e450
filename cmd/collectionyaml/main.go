// Command collectionyaml migrates and validates collection YAML files
// offline.
//
//	collectionyaml migrate [--id ID] FILE
//	collectionyaml validate [--strict] FILE
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	cli "github.com/jawher/mow.cli"

	"github.com/openlearn/openlearn/backend/go-services/internal/collection"
	"github.com/openlearn/openlearn/backend/go-services/pkg/logger"
)

func main() {
	logger.Init(os.Getenv("LOG_LEVEL"))
	os.Exit(run(os.Args, os.Stdout))
}

// run executes the CLI and returns the process exit code.
func run(args []string, out io.Writer) int {
	var failed error
	app := cli.App("collectionyaml", "Migrate and validate collection YAML files")
	app.ErrorHandling = flag.ContinueOnError

	app.Command("migrate", "Print the file upgraded to the latest schema version", func(cmd *cli.Cmd) {
		cmd.Spec = "[--id] FILE"
		id := cmd.StringOpt("id", "collection", "id given to the collection")
		file := cmd.StringArg("FILE", "", "collection YAML file")
		cmd.Action = func() {
			c, err := load(*id, *file)
			if err != nil {
				failed = err
				return
			}
			text, err := c.ToYAML()
			if err != nil {
				failed = err
				return
			}
			fmt.Fprint(out, text)
		}
	})

	app.Command("validate", "Check the file against the collection rules", func(cmd *cli.Cmd) {
		cmd.Spec = "[--strict] FILE"
		strict := cmd.BoolOpt("strict", false, "also require the fields needed for publishing")
		file := cmd.StringArg("FILE", "", "collection YAML file")
		cmd.Action = func() {
			c, err := load("collection", *file)
			if err == nil {
				err = c.Validate(*strict)
			}
			if err != nil {
				failed = err
				return
			}
			fmt.Fprintf(out, "%s: ok\n", *file)
		}
	})

	if err := app.Run(args); err != nil {
		logger.Errorf("%v", err)
		return 1
	}
	if failed != nil {
		logger.With("cmd", "collectionyaml").Errorf("%v", failed)
		return 1
	}
	return 0
}

func load(id, path string) (*collection.Collection, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return collection.FromYAML(id, string(b))
}
