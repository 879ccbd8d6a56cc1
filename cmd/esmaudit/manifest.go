package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/esmaudit/pkg/manifest"
)

func manifestCmd() *cli.Command {
	return &cli.Command{
		Name:      "manifest",
		Usage:     "Generate a package.json depending on every package in a list",
		ArgsUsage: "<list.json>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "out",
				Value: manifest.FileName,
				Usage: "Path of the generated manifest",
			},
			&cli.StringSliceFlag{
				Name:  "exclude",
				Value: cli.NewStringSlice(manifest.DefaultExclude...),
				Usage: "Package names to leave out",
			},
			&cli.StringFlag{
				Name:  "name",
				Value: manifest.DefaultName,
				Usage: "Name of the generated manifest",
			},
			&cli.StringSliceFlag{
				Name:  "skip",
				Usage: "List index ranges to leave out, as start:end (end exclusive)",
			},
		},
		Action: runManifestCmd,
	}
}

func runManifestCmd(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return errors.New("expected exactly one package list file")
	}
	listPath := c.Args().First()

	data, err := os.ReadFile(listPath)
	if err != nil {
		return fmt.Errorf("reading package list: %w", err)
	}
	list, err := manifest.ParseList(data)
	if err != nil {
		return err
	}

	ranges, err := parseRanges(c.StringSlice("skip"))
	if err != nil {
		return err
	}

	m := manifest.Generate(list, manifest.GenerateOptions{
		Name:    c.String("name"),
		Exclude: c.StringSlice("exclude"),
		Skip:    ranges,
	})

	out := c.String("out")
	if err := manifest.Write(out, m); err != nil {
		return err
	}

	color.New(color.FgGreen).Fprintf(c.App.Writer, "Wrote %s with %d dependencies\n", out, len(m.Dependencies))
	return nil
}

// parseRanges parses "start:end" pairs into half-open index ranges.
func parseRanges(specs []string) ([]manifest.Range, error) {
	ranges := make([]manifest.Range, 0, len(specs))
	for _, spec := range specs {
		startStr, endStr, ok := strings.Cut(spec, ":")
		if !ok {
			return nil, fmt.Errorf("invalid range %q: want start:end", spec)
		}
		start, err := strconv.Atoi(strings.TrimSpace(startStr))
		if err != nil {
			return nil, fmt.Errorf("invalid range %q: %w", spec, err)
		}
		end, err := strconv.Atoi(strings.TrimSpace(endStr))
		if err != nil {
			return nil, fmt.Errorf("invalid range %q: %w", spec, err)
		}
		if start < 0 || end < start {
			return nil, fmt.Errorf("invalid range %q: need 0 <= start <= end", spec)
		}
		ranges = append(ranges, manifest.Range{Start: start, End: end})
	}
	return ranges, nil
}
